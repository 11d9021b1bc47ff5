package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

// seedDocument mirrors the YAML seed layout. Dates are "2006-01-02" or RFC 3339.
type seedDocument struct {
	Curricula []struct {
		ID   string `koanf:"id"`
		Name string `koanf:"name"`
	} `koanf:"curricula"`
	AcademicYears []struct {
		ID        string `koanf:"id"`
		Label     string `koanf:"label"`
		StartDate string `koanf:"start_date"`
		EndDate   string `koanf:"end_date"`
		Current   bool   `koanf:"current"`
	} `koanf:"academic_years"`
	Schedules []struct {
		ID             string `koanf:"id"`
		CurriculumID   string `koanf:"curriculum_id"`
		AcademicYearID string `koanf:"academic_year_id"`
		Name           string `koanf:"name"`
		StartDate      string `koanf:"start_date"`
		EndDate        string `koanf:"end_date"`
		Status         string `koanf:"status"`
	} `koanf:"schedules"`
	Evaluations []struct {
		ID          string  `koanf:"id"`
		ScheduleID  string  `koanf:"schedule_id"`
		Title       string  `koanf:"title"`
		MaxScore    float64 `koanf:"max_score"`
		Coefficient float64 `koanf:"coefficient"`
		Status      string  `koanf:"status"`
		Date        string  `koanf:"date"`
	} `koanf:"evaluations"`
	Students []struct {
		ID            string `koanf:"id"`
		StudentNumber string `koanf:"student_number"`
		FirstName     string `koanf:"first_name"`
		LastName      string `koanf:"last_name"`
	} `koanf:"students"`
	Enrollments []struct {
		ID             string `koanf:"id"`
		StudentID      string `koanf:"student_id"`
		CurriculumID   string `koanf:"curriculum_id"`
		AcademicYearID string `koanf:"academic_year_id"`
	} `koanf:"enrollments"`
	Grades []struct {
		EvaluationID string  `koanf:"evaluation_id"`
		EnrollmentID string  `koanf:"enrollment_id"`
		Score        float64 `koanf:"score"`
		Status       string  `koanf:"status"`
		Comments     string  `koanf:"comments"`
	} `koanf:"grades"`
}

// LoadSeed reads a YAML dataset from path.
func LoadSeed(_ context.Context, path string) (Dataset, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Dataset{}, fmt.Errorf("%w: read seed %s: %w", ErrInvalidDataset, path, err)
	}
	var doc seedDocument
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Dataset{}, fmt.Errorf("%w: decode seed %s: %w", ErrInvalidDataset, path, err)
	}
	ds, err := doc.dataset()
	if err != nil {
		return Dataset{}, err
	}
	if err := checkDataset(ds, nil); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func (doc seedDocument) dataset() (Dataset, error) {
	var ds Dataset
	var err error
	date := func(field, v string) time.Time {
		if err != nil || strings.TrimSpace(v) == "" {
			return time.Time{}
		}
		t, perr := parseDate(v)
		if perr != nil {
			err = fmt.Errorf("%w: %s: %w", ErrInvalidDataset, field, perr)
		}
		return t
	}

	for _, c := range doc.Curricula {
		ds.Curricula = append(ds.Curricula, model.Curriculum{ID: c.ID, Name: c.Name})
	}
	for _, y := range doc.AcademicYears {
		ds.AcademicYears = append(ds.AcademicYears, model.AcademicYear{
			ID: y.ID, Label: y.Label, Current: y.Current,
			StartDate: date("academic_years.start_date", y.StartDate),
			EndDate:   date("academic_years.end_date", y.EndDate),
		})
	}
	for _, s := range doc.Schedules {
		ds.Schedules = append(ds.Schedules, model.Schedule{
			ID: s.ID, CurriculumID: s.CurriculumID, AcademicYearID: s.AcademicYearID, Name: s.Name,
			StartDate: date("schedules.start_date", s.StartDate),
			EndDate:   date("schedules.end_date", s.EndDate),
			Status:    types.ParseScheduleStatus(s.Status),
		})
	}
	for _, e := range doc.Evaluations {
		ds.Evaluations = append(ds.Evaluations, model.Evaluation{
			ID: e.ID, ScheduleID: e.ScheduleID, Title: e.Title, MaxScore: e.MaxScore, Coefficient: e.Coefficient,
			Status: types.ParseEvaluationStatus(e.Status),
			Date:   date("evaluations.date", e.Date),
		})
	}
	for _, s := range doc.Students {
		ds.Students = append(ds.Students, Student(s))
	}
	for _, e := range doc.Enrollments {
		ds.Enrollments = append(ds.Enrollments, Enrollment(e))
	}
	for _, g := range doc.Grades {
		status := types.ParseGradeStatus(g.Status)
		if status == types.GradeUnknown {
			status = types.GradeSubmitted
		}
		ds.Grades = append(ds.Grades, Grade{
			EvaluationID: g.EvaluationID, EnrollmentID: g.EnrollmentID, Score: g.Score,
			Status: status.String(), Comments: g.Comments,
		})
	}
	return ds, err
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
