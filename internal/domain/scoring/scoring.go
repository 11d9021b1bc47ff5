// Package scoring computes statistics over persisted grades.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultScale     = 20
	defaultPassRatio = 0.5
)

// Option applies a configuration option to the GradeSummarizer.
type Option func(*GradeSummarizer)

// WithScale sets the scale means are normalized to (e.g. 20 or 100).
func WithScale(scale float64) Option {
	return func(s *GradeSummarizer) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

// WithPassRatio sets the fraction of max_score counted as a pass.
func WithPassRatio(ratio float64) Option {
	return func(s *GradeSummarizer) {
		if ratio >= 0 && ratio <= 1 {
			s.passRatio = ratio
		}
	}
}

// WithClock overrides the time source for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(s *GradeSummarizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Summarizer computes statistics for an evaluation sheet.
type Summarizer interface {
	// Summarize computes statistics, honoring ctx for cancellation.
	Summarize(ctx context.Context, sheet model.Sheet) (model.EvaluationStatistics, error)
}

// GradeSummarizer implements Summarizer.
type GradeSummarizer struct {
	scale     float64
	passRatio float64
	now       func() time.Time
}

// NewSummarizer creates a summarizer with configuration options.
func NewSummarizer(opts ...Option) *GradeSummarizer {
	s := &GradeSummarizer{
		scale:     defaultScale,
		passRatio: defaultPassRatio,
		now:       time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scale returns the normalization scale.
func (s *GradeSummarizer) Scale() float64 { return s.scale }

// Summarize computes statistics over the rows that carry a score.
func (s *GradeSummarizer) Summarize(ctx context.Context, sheet model.Sheet) (model.EvaluationStatistics, error) {
	if err := ctx.Err(); err != nil {
		return model.EvaluationStatistics{}, fmt.Errorf("context cancelled: %w", err)
	}
	ev := sheet.Evaluation
	if err := ev.Validate(); err != nil {
		return model.EvaluationStatistics{}, err
	}

	st := model.EvaluationStatistics{
		EvaluationID:  ev.ID,
		Students:      len(sheet.Students),
		MaxScore:      ev.MaxScore,
		PassThreshold: s.passRatio * ev.MaxScore,
		Scale:         s.scale,
		ComputedAt:    s.now().UTC(),
	}

	scores := make([]float64, 0, len(sheet.Students))
	for _, r := range sheet.Students {
		if r.Score == nil {
			continue
		}
		scores = append(scores, *r.Score)
	}
	st.Graded = len(scores)
	if st.Graded == 0 {
		return st, nil
	}

	sort.Float64s(scores)
	sum := 0.0
	for _, v := range scores {
		sum += v
		if v >= st.PassThreshold {
			st.Passed++
		}
	}
	st.Min = scores[0]
	st.Max = scores[len(scores)-1]
	st.Mean = round2(sum / float64(len(scores)))
	st.Median = median(scores)
	st.NormalizedMean = round2(sum / float64(len(scores)) / ev.MaxScore * s.scale)
	return st, nil
}

// WeightedAverages computes, per enrollment, the coefficient-weighted average
// of its scores across sheets, each score first normalized to scale. Rows
// without a score are skipped. Results are ordered by student number.
func WeightedAverages(sheets []model.Sheet, scale float64) []model.StudentAverage {
	if scale <= 0 {
		scale = defaultScale
	}
	type acc struct {
		avg   model.StudentAverage
		total float64
	}
	byID := make(map[string]*acc)
	for _, sh := range sheets {
		if sh.Evaluation.Validate() != nil {
			continue
		}
		coef := sh.Evaluation.Coefficient
		for _, r := range sh.Students {
			a, ok := byID[r.EnrollmentID]
			if !ok {
				a = &acc{avg: model.StudentAverage{
					EnrollmentID:  r.EnrollmentID,
					StudentNumber: r.StudentNumber,
					FullName:      r.FullName(),
				}}
				byID[r.EnrollmentID] = a
			}
			if r.Score == nil {
				continue
			}
			a.total += *r.Score / sh.Evaluation.MaxScore * scale * coef
			a.avg.Weight += coef
			a.avg.Evaluations++
		}
	}

	out := make([]model.StudentAverage, 0, len(byID))
	for _, a := range byID {
		if a.avg.Weight > 0 {
			a.avg.Average = round2(a.total / a.avg.Weight)
		}
		out = append(out, a.avg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentNumber != out[j].StudentNumber {
			return out[i].StudentNumber < out[j].StudentNumber
		}
		return out[i].EnrollmentID < out[j].EnrollmentID
	})
	return out
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return round2((sorted[n/2-1] + sorted[n/2]) / 2)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
