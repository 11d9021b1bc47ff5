package model

import (
	"time"

	"github.com/okian/gradebook/internal/domain/types"
)

// GradeEntry is one element of a save-grades batch.
type GradeEntry struct {
	EnrollmentCode string            `json:"enrollment_code" validate:"required"`
	Score          float64           `json:"score"`
	StatusCode     types.GradeStatus `json:"status_code"`
	Comments       string            `json:"comments"`
}

// SaveResult is the discriminated response of a save-grades call.
type SaveResult struct {
	Code     types.ResultCode `json:"code"`
	Error    string           `json:"error,omitempty"`
	Saved    int              `json:"saved,omitempty"`
	Replayed bool             `json:"replayed,omitempty"`
}

// OK reports whether the save succeeded.
func (r SaveResult) OK() bool { return r.Code == types.ResultSuccess }

// Saved builds a success result.
func Saved(n int) SaveResult { return SaveResult{Code: types.ResultSuccess, Saved: n} }

// Rejected builds an error result carrying msg.
func Rejected(msg string) SaveResult { return SaveResult{Code: types.ResultError, Error: msg} }

// GradeEvent is emitted after a batch is persisted; workers recompute
// statistics for the evaluation it names.
type GradeEvent struct {
	ID           string
	EvaluationID string
	Entries      int
	TS           time.Time
}

// EvaluationStatistics summarizes the persisted grades of one evaluation.
type EvaluationStatistics struct {
	EvaluationID   string    `json:"evaluation_id"`
	Students       int       `json:"students"`
	Graded         int       `json:"graded"`
	Mean           float64   `json:"mean"`
	Median         float64   `json:"median"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	MaxScore       float64   `json:"max_score"`
	PassThreshold  float64   `json:"pass_threshold"`
	Passed         int       `json:"passed"`
	Scale          float64   `json:"scale"`
	NormalizedMean float64   `json:"normalized_mean"`
	ComputedAt     time.Time `json:"computed_at"`
}

// StudentAverage is a coefficient-weighted average across evaluations.
type StudentAverage struct {
	EnrollmentID  string  `json:"enrollment_id"`
	StudentNumber string  `json:"student_number"`
	FullName      string  `json:"full_name"`
	Average       float64 `json:"average"`
	Weight        float64 `json:"weight"`
	Evaluations   int     `json:"evaluations"`
}
