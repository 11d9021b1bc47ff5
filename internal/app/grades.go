package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/scoring"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// Curricula lists curricula.
func (s *Service) Curricula(ctx context.Context) ([]model.Curriculum, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return nil, err
	}
	return store.Curricula(ctx)
}

// AcademicYears lists academic years.
func (s *Service) AcademicYears(ctx context.Context) ([]model.AcademicYear, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return nil, err
	}
	return store.AcademicYears(ctx)
}

// Schedules lists the schedules of a curriculum and academic year.
func (s *Service) Schedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return nil, err
	}
	return store.Schedules(ctx, curriculumID, academicYearID)
}

// Evaluations lists the evaluations of a schedule.
func (s *Service) Evaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return nil, err
	}
	return store.Evaluations(ctx, scheduleID)
}

// Sheet returns the grading sheet of an evaluation.
func (s *Service) Sheet(ctx context.Context, evaluationID string) (model.Sheet, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return model.Sheet{}, err
	}
	return store.Sheet(ctx, evaluationID)
}

// SaveGrades persists a batch and schedules a statistics recompute.
//
// A non-empty idempotency key is scoped to the evaluation. A key already seen
// is answered as a replayed success without touching the store. The key is
// released again when the batch is rejected or fails so the client can retry.
func (s *Service) SaveGrades(ctx context.Context, evaluationID, idempotencyKey string, entries []model.GradeEntry) (model.SaveResult, error) {
	s.mu.RLock()
	store, deduper, q := s.store, s.deduper, s.eventQueue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.SaveResult{}, ErrNotStarted
	}

	scoped := ""
	if idempotencyKey != "" {
		scoped = evaluationID + ":" + idempotencyKey
		seen, err := deduper.SeenAndRecord(ctx, scoped)
		if err != nil {
			return model.SaveResult{}, fmt.Errorf("check idempotency key: %w", err)
		}
		if seen {
			metrics.RecordIdempotentReplay()
			s.logger.Debug(ctx, "idempotent replay",
				logger.String("evaluationID", evaluationID),
				logger.String("key", idempotencyKey),
			)
			res := model.Saved(len(entries))
			res.Replayed = true
			return res, nil
		}
	}

	res, err := store.SaveGrades(ctx, evaluationID, entries)
	if err != nil || !res.OK() {
		if scoped != "" {
			if uerr := deduper.Unrecord(ctx, scoped); uerr != nil {
				s.logger.Warn(ctx, "release idempotency key failed", logger.Error(uerr))
			}
		}
		return res, err
	}

	ev := model.GradeEvent{
		ID:           uuid.NewString(),
		EvaluationID: evaluationID,
		Entries:      len(entries),
		TS:           time.Now().UTC(),
	}
	if qerr := q.Enqueue(ctx, ev); qerr != nil {
		// Statistics are then recomputed on the next read.
		s.stale.Store(evaluationID, struct{}{})
		s.logger.Warn(ctx, "statistics event dropped",
			logger.String("evaluationID", evaluationID),
			logger.Error(qerr),
		)
	}
	return res, nil
}

// Statistics returns the stored statistics of an evaluation, computing them
// on demand when none exist yet or the last recompute was missed.
func (s *Service) Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return model.EvaluationStatistics{}, err
	}

	if _, stale := s.stale.LoadAndDelete(evaluationID); !stale {
		st, err := store.Statistics(ctx, evaluationID)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return model.EvaluationStatistics{}, err
		}
	}

	sheet, err := store.Sheet(ctx, evaluationID)
	if err != nil {
		return model.EvaluationStatistics{}, err
	}
	st, err := s.summarizer.Summarize(ctx, sheet)
	if err != nil {
		return model.EvaluationStatistics{}, err
	}
	if err := store.PutStatistics(ctx, st); err != nil {
		s.logger.Warn(ctx, "store statistics failed",
			logger.String("evaluationID", evaluationID),
			logger.Error(err),
		)
	}
	metrics.RecordStatisticsRecomputed()
	return st, nil
}

// Averages computes coefficient-weighted averages across the gradable
// evaluations of a schedule.
func (s *Service) Averages(ctx context.Context, scheduleID string) ([]model.StudentAverage, error) {
	store, err := s.storeOrErr()
	if err != nil {
		return nil, err
	}
	evaluations, err := store.Evaluations(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	sheets := make([]model.Sheet, 0, len(evaluations))
	for _, ev := range evaluations {
		if !ev.Status.Gradable() {
			continue
		}
		sheet, err := store.Sheet(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return scoring.WeightedAverages(sheets, s.summarizer.Scale()), nil
}

func (s *Service) storeOrErr() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}
