// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/gradebook/internal/domain/types"
)

// Curriculum is the root of the selection cascade (a program or class level).
type Curriculum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AcademicYear is a school year, e.g. "2025-2026".
type AcademicYear struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Current   bool      `json:"current"`
}

// Schedule is a term belonging to one curriculum and academic year pair.
type Schedule struct {
	ID             string               `json:"id"`
	CurriculumID   string               `json:"curriculum_id"`
	AcademicYearID string               `json:"academic_year_id"`
	Name           string               `json:"name"`
	StartDate      time.Time            `json:"start_date"`
	EndDate        time.Time            `json:"end_date"`
	Status         types.ScheduleStatus `json:"status"`
}

// Evaluation is an exam within a schedule.
type Evaluation struct {
	ID          string                 `json:"id"`
	ScheduleID  string                 `json:"schedule_id"`
	Title       string                 `json:"title"`
	MaxScore    float64                `json:"max_score"`
	Coefficient float64                `json:"coefficient"`
	Status      types.EvaluationStatus `json:"status"`
	Date        time.Time              `json:"date"`
}

// Validate checks that the evaluation can bound score input.
func (e Evaluation) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("evaluation: %w", ErrMissingID)
	}
	if !positiveFinite(e.MaxScore) {
		return fmt.Errorf("evaluation %s: %w", e.ID, ErrInvalidMaxScore)
	}
	if !positiveFinite(e.Coefficient) {
		return fmt.Errorf("evaluation %s: %w", e.ID, ErrInvalidCoefficient)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// StudentRow is one enrolled student in an evaluation sheet.
// Score is nil until a grade has been persisted.
type StudentRow struct {
	EnrollmentID  string            `json:"enrollment_id"`
	StudentNumber string            `json:"student_number"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Graded        bool              `json:"graded"`
	Score         *float64          `json:"score"`
	Status        types.GradeStatus `json:"status"`
	Comments      string            `json:"comments,omitempty"`
}

// FullName returns "Last First", the order rosters are printed in.
func (r StudentRow) FullName() string {
	return strings.TrimSpace(r.LastName + " " + r.FirstName)
}

// Sheet is an evaluation together with its student rows.
type Sheet struct {
	Evaluation Evaluation   `json:"evaluation"`
	Students   []StudentRow `json:"students"`
}

// Row returns the row with the given enrollment id.
func (s Sheet) Row(enrollmentID string) (StudentRow, bool) {
	for _, r := range s.Students {
		if r.EnrollmentID == enrollmentID {
			return r, true
		}
	}
	return StudentRow{}, false
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
