package repository

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

// checkBatch returns a user-facing message describing the first problem
// with entries, or "" when the batch can be saved.
func checkBatch(sheet model.Sheet, entries []model.GradeEntry) string {
	ev := sheet.Evaluation
	if len(entries) == 0 {
		return "no grades to save"
	}
	if ev.Status == types.EvaluationCancelled {
		return fmt.Sprintf("evaluation %s is cancelled", ev.ID)
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		code := strings.TrimSpace(e.EnrollmentCode)
		switch {
		case code == "":
			return fmt.Sprintf("entry %d: enrollment_code is required", i)
		case !hasRow(sheet, code):
			return fmt.Sprintf("entry %d: enrollment %s is not part of evaluation %s", i, code, ev.ID)
		}
		if _, dup := seen[code]; dup {
			return fmt.Sprintf("entry %d: duplicate enrollment %s", i, code)
		}
		seen[code] = struct{}{}
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) || e.Score < 0 || e.Score > ev.MaxScore {
			return fmt.Sprintf("entry %d: score %v must be between 0 and %v", i, e.Score, ev.MaxScore)
		}
		if e.StatusCode == types.GradeUnknown {
			return fmt.Sprintf("entry %d: unknown status_code", i)
		}
	}
	return ""
}

func hasRow(sheet model.Sheet, enrollmentID string) bool {
	_, ok := sheet.Row(enrollmentID)
	return ok
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// checkDataset verifies references inside ds against ids already known
// (known may be nil).
func checkDataset(ds Dataset, known func(kind, id string) bool) error {
	has := func(kind, id string, local map[string]bool) bool {
		return local[id] || (known != nil && known(kind, id))
	}
	curricula := map[string]bool{}
	for _, c := range ds.Curricula {
		curricula[c.ID] = true
	}
	years := map[string]bool{}
	for _, y := range ds.AcademicYears {
		years[y.ID] = true
	}
	schedules := map[string]bool{}
	for _, s := range ds.Schedules {
		if !has("curriculum", s.CurriculumID, curricula) || !has("academic_year", s.AcademicYearID, years) {
			return fmt.Errorf("%w: schedule %s references an unknown curriculum or academic year", ErrInvalidDataset, s.ID)
		}
		schedules[s.ID] = true
	}
	evaluations := map[string]bool{}
	for _, e := range ds.Evaluations {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDataset, err)
		}
		if !has("schedule", e.ScheduleID, schedules) {
			return fmt.Errorf("%w: evaluation %s references unknown schedule %s", ErrInvalidDataset, e.ID, e.ScheduleID)
		}
		evaluations[e.ID] = true
	}
	students := map[string]bool{}
	for _, s := range ds.Students {
		students[s.ID] = true
	}
	enrollments := map[string]bool{}
	for _, e := range ds.Enrollments {
		if !has("student", e.StudentID, students) || !has("curriculum", e.CurriculumID, curricula) || !has("academic_year", e.AcademicYearID, years) {
			return fmt.Errorf("%w: enrollment %s has unknown references", ErrInvalidDataset, e.ID)
		}
		enrollments[e.ID] = true
	}
	for _, g := range ds.Grades {
		if !has("evaluation", g.EvaluationID, evaluations) || !has("enrollment", g.EnrollmentID, enrollments) {
			return fmt.Errorf("%w: grade %s/%s has unknown references", ErrInvalidDataset, g.EvaluationID, g.EnrollmentID)
		}
	}
	return nil
}

func sortSchedules(list []model.Schedule) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartDate.Equal(list[j].StartDate) {
			return list[i].StartDate.Before(list[j].StartDate)
		}
		return list[i].Name < list[j].Name
	})
}

func sortEvaluations(list []model.Evaluation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].Title < list[j].Title
	})
}

// sortRows orders a roster by last name, first name, then student number.
func sortRows(rows []model.StudentRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.StudentNumber < b.StudentNumber
	})
}
