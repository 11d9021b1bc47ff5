// Package repository defines the school store interface and its
// implementations: an in-memory store and a gorm/postgres store.
package repository

import (
	"context"

	"github.com/okian/gradebook/internal/domain/model"
)

// Store provides read/write access to curricula, schedules, evaluations and
// grades.
type Store interface {
	Curricula(ctx context.Context) ([]model.Curriculum, error)
	AcademicYears(ctx context.Context) ([]model.AcademicYear, error)
	// Schedules returns the schedules of one curriculum and academic year pair.
	Schedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error)
	// Evaluations returns ErrNotFound if the schedule is unknown.
	Evaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error)
	// Sheet returns the evaluation with one row per enrolled student.
	// Returns ErrNotFound if the evaluation is unknown.
	Sheet(ctx context.Context, evaluationID string) (model.Sheet, error)

	// SaveGrades validates and persists a batch atomically. A batch that fails
	// validation is reported through SaveResult; the error return is kept for
	// storage failures.
	SaveGrades(ctx context.Context, evaluationID string, entries []model.GradeEntry) (model.SaveResult, error)

	PutStatistics(ctx context.Context, stats model.EvaluationStatistics) error
	// Statistics returns ErrNotFound when nothing was computed yet.
	Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error)

	// Load imports a dataset. Existing ids are left untouched.
	Load(ctx context.Context, ds Dataset) error
	// Count returns the number of evaluations tracked.
	Count(ctx context.Context) int
	Close() error
}

// Student is a person that can be enrolled.
type Student struct {
	ID            string
	StudentNumber string
	FirstName     string
	LastName      string
}

// Enrollment places a student in a curriculum for an academic year. Its id is
// the enrollment code grades are keyed by.
type Enrollment struct {
	ID             string
	StudentID      string
	CurriculumID   string
	AcademicYearID string
}

// Grade is a persisted score.
type Grade struct {
	EvaluationID string
	EnrollmentID string
	Score        float64
	Status       string
	Comments     string
}

// Dataset is a bulk import, used for seeding.
type Dataset struct {
	Curricula     []model.Curriculum
	AcademicYears []model.AcademicYear
	Schedules     []model.Schedule
	Evaluations   []model.Evaluation
	Students      []Student
	Enrollments   []Enrollment
	Grades        []Grade
}
