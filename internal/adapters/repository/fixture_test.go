package repository

import (
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fixture is one curriculum and year with two terms, two evaluations in the
// first term and three enrolled students. en-3 belongs to another curriculum.
func fixture() Dataset {
	return Dataset{
		Curricula: []model.Curriculum{{ID: "cur-1", Name: "Science"}, {ID: "cur-2", Name: "Arts"}},
		AcademicYears: []model.AcademicYear{
			{ID: "ay-1", Label: "2024-2025", StartDate: day("2024-09-01"), EndDate: day("2025-06-30")},
			{ID: "ay-2", Label: "2025-2026", StartDate: day("2025-09-01"), EndDate: day("2026-06-30"), Current: true},
		},
		Schedules: []model.Schedule{
			{ID: "sc-2", CurriculumID: "cur-1", AcademicYearID: "ay-2", Name: "Term 2", StartDate: day("2025-12-01"), Status: types.SchedulePlanned},
			{ID: "sc-1", CurriculumID: "cur-1", AcademicYearID: "ay-2", Name: "Term 1", StartDate: day("2025-09-01"), Status: types.ScheduleOpen},
			{ID: "sc-x", CurriculumID: "cur-2", AcademicYearID: "ay-2", Name: "Term 1", StartDate: day("2025-09-01"), Status: types.ScheduleOpen},
		},
		Evaluations: []model.Evaluation{
			{ID: "ev-2", ScheduleID: "sc-1", Title: "Lab", MaxScore: 100, Coefficient: 1, Status: types.EvaluationScheduled, Date: day("2025-10-20")},
			{ID: "ev-1", ScheduleID: "sc-1", Title: "Quiz", MaxScore: 20, Coefficient: 2, Status: types.EvaluationInProgress, Date: day("2025-10-01")},
			{ID: "ev-c", ScheduleID: "sc-1", Title: "Cancelled", MaxScore: 20, Coefficient: 1, Status: types.EvaluationCancelled, Date: day("2025-11-01")},
		},
		Students: []Student{
			{ID: "st-1", StudentNumber: "S001", FirstName: "Zoe", LastName: "Adams"},
			{ID: "st-2", StudentNumber: "S002", FirstName: "Ali", LastName: "Brown"},
			{ID: "st-3", StudentNumber: "S003", FirstName: "Ana", LastName: "Adams"},
			{ID: "st-4", StudentNumber: "S004", FirstName: "Kim", LastName: "Cole"},
		},
		Enrollments: []Enrollment{
			{ID: "en-1", StudentID: "st-1", CurriculumID: "cur-1", AcademicYearID: "ay-2"},
			{ID: "en-2", StudentID: "st-2", CurriculumID: "cur-1", AcademicYearID: "ay-2"},
			{ID: "en-4", StudentID: "st-3", CurriculumID: "cur-1", AcademicYearID: "ay-2"},
			{ID: "en-3", StudentID: "st-4", CurriculumID: "cur-2", AcademicYearID: "ay-2"},
		},
		Grades: []Grade{
			{EvaluationID: "ev-1", EnrollmentID: "en-2", Score: 14.5, Status: "VALIDATED", Comments: "good"},
		},
	}
}
