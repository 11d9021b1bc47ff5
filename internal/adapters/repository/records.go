package repository

import (
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

// Table records for GormStore. Statuses are stored as their canonical codes.

type curriculumRecord struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string `gorm:"not null"`
}

func (curriculumRecord) TableName() string { return "curricula" }

type academicYearRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Label     string `gorm:"not null"`
	StartDate time.Time
	EndDate   time.Time
	Current   bool
}

func (academicYearRecord) TableName() string { return "academic_years" }

type scheduleRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	CurriculumID   string `gorm:"size:64;not null;index:idx_schedules_cohort"`
	AcademicYearID string `gorm:"size:64;not null;index:idx_schedules_cohort"`
	Name           string `gorm:"not null"`
	StartDate      time.Time
	EndDate        time.Time
	Status         string `gorm:"size:32"`
}

func (scheduleRecord) TableName() string { return "schedules" }

type evaluationRecord struct {
	ID          string  `gorm:"primaryKey;size:64"`
	ScheduleID  string  `gorm:"size:64;not null;index"`
	Title       string  `gorm:"not null"`
	MaxScore    float64 `gorm:"not null"`
	Coefficient float64 `gorm:"not null"`
	Status      string  `gorm:"size:32"`
	Date        time.Time
}

func (evaluationRecord) TableName() string { return "evaluations" }

type studentRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	StudentNumber string `gorm:"size:64;uniqueIndex"`
	FirstName     string
	LastName      string
}

func (studentRecord) TableName() string { return "students" }

type enrollmentRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	StudentID      string `gorm:"size:64;not null;index"`
	CurriculumID   string `gorm:"size:64;not null;index:idx_enrollments_cohort"`
	AcademicYearID string `gorm:"size:64;not null;index:idx_enrollments_cohort"`
}

func (enrollmentRecord) TableName() string { return "enrollments" }

type gradeRecord struct {
	EvaluationID string  `gorm:"primaryKey;size:64"`
	EnrollmentID string  `gorm:"primaryKey;size:64"`
	Score        float64 `gorm:"not null"`
	Status       string  `gorm:"size:32"`
	Comments     string
	UpdatedAt    time.Time
}

func (gradeRecord) TableName() string { return "grades" }

type statisticsRecord struct {
	EvaluationID   string `gorm:"primaryKey;size:64"`
	Students       int
	Graded         int
	Mean           float64
	Median         float64
	Min            float64
	Max            float64
	MaxScore       float64
	PassThreshold  float64
	Passed         int
	Scale          float64
	NormalizedMean float64
	ComputedAt     time.Time
}

func (statisticsRecord) TableName() string { return "evaluation_statistics" }

func allRecords() []any {
	return []any{
		&curriculumRecord{}, &academicYearRecord{}, &scheduleRecord{}, &evaluationRecord{},
		&studentRecord{}, &enrollmentRecord{}, &gradeRecord{}, &statisticsRecord{},
	}
}

func (r scheduleRecord) model() model.Schedule {
	return model.Schedule{
		ID: r.ID, CurriculumID: r.CurriculumID, AcademicYearID: r.AcademicYearID, Name: r.Name,
		StartDate: r.StartDate, EndDate: r.EndDate, Status: types.ParseScheduleStatus(r.Status),
	}
}

func (r evaluationRecord) model() model.Evaluation {
	return model.Evaluation{
		ID: r.ID, ScheduleID: r.ScheduleID, Title: r.Title, MaxScore: r.MaxScore,
		Coefficient: r.Coefficient, Status: types.ParseEvaluationStatus(r.Status), Date: r.Date,
	}
}

func (r statisticsRecord) model() model.EvaluationStatistics {
	return model.EvaluationStatistics(r)
}

func toStatisticsRecord(s model.EvaluationStatistics) statisticsRecord {
	return statisticsRecord(s)
}
