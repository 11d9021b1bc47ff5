package gradeentry

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/gradebook/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to stderr and, when logFile is set, to that
// file as well. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, file)
		closeFn = file.Close
	}

	if err := logger.InitWithWriter(w, logger.FormatText); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	_ = logger.SetLevelString(level)

	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the grade-entry tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Gradebook Grade Entry Tool
==========================

Enters the scores of one evaluation against a running gradebook service.

Usage:
  go run ./cmd/grade-entry [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -curriculum string
        Curriculum id
  -year string
        Academic year id
  -schedule string
        Schedule (term) id
  -evaluation string
        Evaluation id
  -scores string
        CSV file with "enrollment_code,score" lines, or an xlsx sheet
        exported by GET /api/evaluations/{id}/sheet.xlsx with scores filled in
  -list
        Print the available curricula, years, schedules, evaluations or
        sheet rows for the ids given so far, then exit
  -strict
        Do not submit anything when a line is rejected
  -timeout duration
        HTTP request timeout (default 15s)
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Score files:
  The first column is an enrollment code or a student number. A blank score
  leaves the grade as it is. Decimal commas are accepted; use ';' as the CSV
  separator in that case. Lines starting with '#' are ignored.

Examples:
  # Browse the cascade
  go run ./cmd/grade-entry -list
  go run ./cmd/grade-entry -list -curriculum cur-1 -year ay-1 -schedule sc-1

  # Submit scores
  go run ./cmd/grade-entry -curriculum cur-1 -year ay-1 -schedule sc-1 \
        -evaluation ev-1 -scores quiz.csv
`)
}
