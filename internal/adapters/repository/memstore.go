package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/okian/gradebook/pkg/metrics"
)

// MemStore is an in-memory Store. Reads take a shared lock; a save batch is
// validated and applied under one exclusive lock, so it is atomic.
type MemStore struct {
	mu          sync.RWMutex
	curricula   map[string]model.Curriculum
	years       map[string]model.AcademicYear
	schedules   map[string]model.Schedule
	evaluations map[string]model.Evaluation
	students    map[string]Student
	enrollments map[string]Enrollment
	grades      map[string]map[string]Grade // evaluation -> enrollment -> grade
	stats       map[string]model.EvaluationStatistics
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		curricula:   make(map[string]model.Curriculum),
		years:       make(map[string]model.AcademicYear),
		schedules:   make(map[string]model.Schedule),
		evaluations: make(map[string]model.Evaluation),
		students:    make(map[string]Student),
		enrollments: make(map[string]Enrollment),
		grades:      make(map[string]map[string]Grade),
		stats:       make(map[string]model.EvaluationStatistics),
	}
}

// Curricula returns all curricula ordered by name.
func (s *MemStore) Curricula(ctx context.Context) ([]model.Curriculum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Curriculum, 0, len(s.curricula))
	for _, c := range s.curricula {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AcademicYears returns all academic years, most recent first.
func (s *MemStore) AcademicYears(ctx context.Context) ([]model.AcademicYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AcademicYear, 0, len(s.years))
	for _, y := range s.years {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

// Schedules implements Store.
func (s *MemStore) Schedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Schedule
	for _, sc := range s.schedules {
		if sc.CurriculumID == curriculumID && sc.AcademicYearID == academicYearID {
			out = append(out, sc)
		}
	}
	sortSchedules(out)
	return out, nil
}

// Evaluations implements Store.
func (s *MemStore) Evaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.schedules[scheduleID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, notFound("schedule", scheduleID)
	}
	var out []model.Evaluation
	for _, ev := range s.evaluations {
		if ev.ScheduleID == scheduleID {
			out = append(out, ev)
		}
	}
	sortEvaluations(out)
	return out, nil
}

// Sheet implements Store.
func (s *MemStore) Sheet(ctx context.Context, evaluationID string) (model.Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheetLocked(evaluationID)
}

func (s *MemStore) sheetLocked(evaluationID string) (model.Sheet, error) {
	ev, ok := s.evaluations[evaluationID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Sheet{}, notFound("evaluation", evaluationID)
	}
	sc := s.schedules[ev.ScheduleID]
	grades := s.grades[evaluationID]

	rows := []model.StudentRow{}
	for _, en := range s.enrollments {
		if en.CurriculumID != sc.CurriculumID || en.AcademicYearID != sc.AcademicYearID {
			continue
		}
		st := s.students[en.StudentID]
		row := model.StudentRow{
			EnrollmentID:  en.ID,
			StudentNumber: st.StudentNumber,
			FirstName:     st.FirstName,
			LastName:      st.LastName,
		}
		if g, ok := grades[en.ID]; ok {
			row.Graded = true
			row.Score = model.Float(g.Score)
			row.Status = types.ParseGradeStatus(g.Status)
			row.Comments = g.Comments
		}
		rows = append(rows, row)
	}
	sortRows(rows)
	return model.Sheet{Evaluation: ev, Students: rows}, nil
}

// SaveGrades implements Store.
func (s *MemStore) SaveGrades(ctx context.Context, evaluationID string, entries []model.GradeEntry) (model.SaveResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSaveLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, err := s.sheetLocked(evaluationID)
	if err != nil {
		metrics.RecordGradeBatch("rejected", len(entries))
		return model.Rejected(err.Error()), nil
	}
	if msg := checkBatch(sheet, entries); msg != "" {
		metrics.RecordGradeBatch("rejected", len(entries))
		return model.Rejected(msg), nil
	}

	byEnrollment := s.grades[evaluationID]
	if byEnrollment == nil {
		byEnrollment = make(map[string]Grade, len(entries))
		s.grades[evaluationID] = byEnrollment
	}
	for _, e := range entries {
		byEnrollment[e.EnrollmentCode] = Grade{
			EvaluationID: evaluationID,
			EnrollmentID: e.EnrollmentCode,
			Score:        e.Score,
			Status:       e.StatusCode.String(),
			Comments:     e.Comments,
		}
	}
	metrics.RecordGradeBatch("success", len(entries))
	return model.Saved(len(entries)), nil
}

// PutStatistics implements Store.
func (s *MemStore) PutStatistics(ctx context.Context, stats model.EvaluationStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluations[stats.EvaluationID]; !ok {
		return notFound("evaluation", stats.EvaluationID)
	}
	s.stats[stats.EvaluationID] = stats
	return nil
}

// Statistics implements Store.
func (s *MemStore) Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[evaluationID]
	if !ok {
		return model.EvaluationStatistics{}, notFound("statistics", evaluationID)
	}
	return st, nil
}

// Load implements Store.
func (s *MemStore) Load(ctx context.Context, ds Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkDataset(ds, s.knownLocked); err != nil {
		return err
	}
	for _, c := range ds.Curricula {
		putIfAbsent(s.curricula, c.ID, c)
	}
	for _, y := range ds.AcademicYears {
		putIfAbsent(s.years, y.ID, y)
	}
	for _, sc := range ds.Schedules {
		putIfAbsent(s.schedules, sc.ID, sc)
	}
	for _, ev := range ds.Evaluations {
		putIfAbsent(s.evaluations, ev.ID, ev)
	}
	for _, st := range ds.Students {
		putIfAbsent(s.students, st.ID, st)
	}
	for _, en := range ds.Enrollments {
		putIfAbsent(s.enrollments, en.ID, en)
	}
	for _, g := range ds.Grades {
		if s.grades[g.EvaluationID] == nil {
			s.grades[g.EvaluationID] = make(map[string]Grade)
		}
		putIfAbsent(s.grades[g.EvaluationID], g.EnrollmentID, g)
	}
	metrics.UpdateEvaluationsTracked(len(s.evaluations))
	return nil
}

func (s *MemStore) knownLocked(kind, id string) bool {
	var ok bool
	switch kind {
	case "curriculum":
		_, ok = s.curricula[id]
	case "academic_year":
		_, ok = s.years[id]
	case "schedule":
		_, ok = s.schedules[id]
	case "evaluation":
		_, ok = s.evaluations[id]
	case "student":
		_, ok = s.students[id]
	case "enrollment":
		_, ok = s.enrollments[id]
	}
	return ok
}

func putIfAbsent[T any](m map[string]T, id string, v T) {
	if _, ok := m[id]; !ok {
		m[id] = v
	}
}

// Count implements Store.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.evaluations)
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
