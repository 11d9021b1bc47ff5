package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/gradebook/internal/gradeentry"
	"github.com/okian/gradebook/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", gradeentry.DefaultBaseURL, "Base URL of the service")
		curriculum = flag.String("curriculum", "", "Curriculum id")
		year       = flag.String("year", "", "Academic year id")
		schedule   = flag.String("schedule", "", "Schedule (term) id")
		evaluation = flag.String("evaluation", "", "Evaluation id")
		scores     = flag.String("scores", "", "CSV or xlsx file with scores")
		list       = flag.Bool("list", false, "Print the options for the ids given so far")
		strict     = flag.Bool("strict", false, "Do not submit when a line is rejected")
		timeout    = flag.Duration("timeout", gradeentry.DefaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		gradeentry.ShowHelp(os.Stdout)
		return 0
	}

	closeLog, err := gradeentry.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, gradeentry.DefaultRunTime)
	defer cancel()

	cfg := &gradeentry.Config{
		BaseURL:        *baseURL,
		CurriculumID:   *curriculum,
		AcademicYearID: *year,
		ScheduleID:     *schedule,
		EvaluationID:   *evaluation,
		ScoresFile:     *scores,
		List:           *list,
		Strict:         *strict,
		Timeout:        *timeout,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	stats, err := gradeentry.Run(ctx, cfg, os.Stdout)
	if !cfg.List {
		logger.Get().Info(ctx, "grade entry finished", logger.String("stats", stats.String()))
	}
	if err != nil {
		if errors.Is(err, gradeentry.ErrMissingSelection) {
			gradeentry.ShowHelp(os.Stderr)
		}
		os.Stderr.WriteString("Grade entry failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
