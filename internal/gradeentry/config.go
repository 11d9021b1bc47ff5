// Package gradeentry is a command line front end for the grade-entry
// workflow: it walks the curriculum, year, schedule and evaluation cascade
// against a running gradebook and submits scores read from a file.
package gradeentry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults used by cmd/grade-entry.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultTimeout = 15 * time.Second
	DefaultRunTime = 5 * time.Minute
)

// ErrMissingSelection is returned when a submission lacks one of the ids.
var ErrMissingSelection = errors.New("curriculum, year, schedule and evaluation are required")

// ErrInvalidLines is returned when some score lines could not be staged.
var ErrInvalidLines = errors.New("some score lines were not accepted")

// Config holds configuration for one grade-entry run
type Config struct {
	BaseURL        string        // Base URL of the service
	CurriculumID   string        // Curriculum to select
	AcademicYearID string        // Academic year to select
	ScheduleID     string        // Schedule (term) to select
	EvaluationID   string        // Evaluation to grade
	ScoresFile     string        // CSV or xlsx file with scores
	List           bool          // Print the cascade options instead of submitting
	Strict         bool          // Do not submit when any line is rejected
	Timeout        time.Duration // HTTP request timeout
	LogFile        string        // Optional log file
	Verbose        bool          // Enable debug logging
}

// Validate checks that a submission run has what it needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("url is required")
	}
	if c.List {
		return nil
	}
	if c.CurriculumID == "" || c.AcademicYearID == "" || c.ScheduleID == "" || c.EvaluationID == "" {
		return ErrMissingSelection
	}
	if strings.TrimSpace(c.ScoresFile) == "" {
		return errors.New("scores file is required")
	}
	return nil
}

// Stats holds the outcome of a run
type Stats struct {
	Lines     int
	Staged    int
	Blank     int
	Invalid   int
	Unknown   int
	Saved     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Rejected is the number of lines that were not staged.
func (s Stats) Rejected() int { return s.Invalid + s.Unknown }

func (s Stats) String() string {
	return fmt.Sprintf("lines=%d staged=%d blank=%d invalid=%d unknown=%d saved=%d duration=%s",
		s.Lines, s.Staged, s.Blank, s.Invalid, s.Unknown, s.Saved, s.Duration.Round(time.Millisecond))
}
