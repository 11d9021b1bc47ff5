// Package types contains the closed status enumerations shared across the
// application. Backend status strings are parsed once at the boundary; any
// value that is not recognized maps to the Unknown variant of its type.
package types

import (
	"fmt"
	"strings"
)

// Tone is the badge tone a status is rendered with.
type Tone string

// Badge tones.
const (
	ToneNeutral Tone = "neutral"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// normalize upper-cases s, trims it and folds spaces and dashes to underscores.
func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ScheduleStatus is the lifecycle status of a schedule (term).
type ScheduleStatus int

// Schedule statuses.
const (
	ScheduleUnknown ScheduleStatus = iota
	SchedulePlanned
	ScheduleOpen
	ScheduleClosed
	ScheduleArchived
)

var scheduleCodes = map[ScheduleStatus]string{
	SchedulePlanned:  "PLANNED",
	ScheduleOpen:     "OPEN",
	ScheduleClosed:   "CLOSED",
	ScheduleArchived: "ARCHIVED",
}

// ParseScheduleStatus maps a backend string to a ScheduleStatus.
func ParseScheduleStatus(s string) ScheduleStatus {
	switch normalize(s) {
	case "PLANNED", "UPCOMING":
		return SchedulePlanned
	case "OPEN", "ACTIVE", "IN_PROGRESS":
		return ScheduleOpen
	case "CLOSED", "FINISHED":
		return ScheduleClosed
	case "ARCHIVED":
		return ScheduleArchived
	}
	return ScheduleUnknown
}

// String returns the canonical code, or "UNKNOWN".
func (s ScheduleStatus) String() string {
	if c, ok := scheduleCodes[s]; ok {
		return c
	}
	return "UNKNOWN"
}

// Label returns a human readable label.
func (s ScheduleStatus) Label() string {
	switch s {
	case SchedulePlanned:
		return "Planned"
	case ScheduleOpen:
		return "Open"
	case ScheduleClosed:
		return "Closed"
	case ScheduleArchived:
		return "Archived"
	}
	return "Unknown"
}

// Tone returns the badge tone.
func (s ScheduleStatus) Tone() Tone {
	switch s {
	case SchedulePlanned:
		return ToneInfo
	case ScheduleOpen:
		return ToneSuccess
	case ScheduleClosed:
		return ToneWarning
	case ScheduleArchived:
		return ToneNeutral
	}
	return ToneNeutral
}

// MarshalText implements encoding.TextMarshaler.
func (s ScheduleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *ScheduleStatus) UnmarshalText(b []byte) error {
	*s = ParseScheduleStatus(string(b))
	return nil
}

// EvaluationStatus is the lifecycle status of an evaluation (exam).
type EvaluationStatus int

// Evaluation statuses.
const (
	EvaluationUnknown EvaluationStatus = iota
	EvaluationDraft
	EvaluationScheduled
	EvaluationInProgress
	EvaluationCompleted
	EvaluationCancelled
)

var evaluationCodes = map[EvaluationStatus]string{
	EvaluationDraft:      "DRAFT",
	EvaluationScheduled:  "SCHEDULED",
	EvaluationInProgress: "IN_PROGRESS",
	EvaluationCompleted:  "COMPLETED",
	EvaluationCancelled:  "CANCELLED",
}

// ParseEvaluationStatus maps a backend string to an EvaluationStatus.
func ParseEvaluationStatus(s string) EvaluationStatus {
	switch normalize(s) {
	case "DRAFT":
		return EvaluationDraft
	case "SCHEDULED", "PLANNED":
		return EvaluationScheduled
	case "IN_PROGRESS", "ONGOING", "OPEN":
		return EvaluationInProgress
	case "COMPLETED", "DONE", "FINISHED", "GRADED":
		return EvaluationCompleted
	case "CANCELLED", "CANCELED":
		return EvaluationCancelled
	}
	return EvaluationUnknown
}

// String returns the canonical code, or "UNKNOWN".
func (s EvaluationStatus) String() string {
	if c, ok := evaluationCodes[s]; ok {
		return c
	}
	return "UNKNOWN"
}

// Label returns a human readable label.
func (s EvaluationStatus) Label() string {
	switch s {
	case EvaluationDraft:
		return "Draft"
	case EvaluationScheduled:
		return "Scheduled"
	case EvaluationInProgress:
		return "In progress"
	case EvaluationCompleted:
		return "Completed"
	case EvaluationCancelled:
		return "Cancelled"
	}
	return "Unknown"
}

// Tone returns the badge tone.
func (s EvaluationStatus) Tone() Tone {
	switch s {
	case EvaluationScheduled:
		return ToneInfo
	case EvaluationInProgress:
		return ToneWarning
	case EvaluationCompleted:
		return ToneSuccess
	case EvaluationCancelled:
		return ToneDanger
	}
	return ToneNeutral
}

// Gradable reports whether grades may be entered for the evaluation.
func (s EvaluationStatus) Gradable() bool {
	return s != EvaluationCancelled
}

// MarshalText implements encoding.TextMarshaler.
func (s EvaluationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *EvaluationStatus) UnmarshalText(b []byte) error {
	*s = ParseEvaluationStatus(string(b))
	return nil
}

// GradeStatus is the status attached to a saved grade entry.
type GradeStatus int

// Grade statuses.
const (
	GradeUnknown GradeStatus = iota
	GradeDraft
	GradeSubmitted
	GradeValidated
)

var gradeCodes = map[GradeStatus]string{
	GradeDraft:     "DRAFT",
	GradeSubmitted: "SUBMITTED",
	GradeValidated: "VALIDATED",
}

// ParseGradeStatus maps a backend string to a GradeStatus.
func ParseGradeStatus(s string) GradeStatus {
	switch normalize(s) {
	case "DRAFT":
		return GradeDraft
	case "SUBMITTED":
		return GradeSubmitted
	case "VALIDATED", "APPROVED":
		return GradeValidated
	}
	return GradeUnknown
}

// String returns the canonical code, or "UNKNOWN".
func (s GradeStatus) String() string {
	if c, ok := gradeCodes[s]; ok {
		return c
	}
	return "UNKNOWN"
}

// Label returns a human readable label.
func (s GradeStatus) Label() string {
	switch s {
	case GradeDraft:
		return "Draft"
	case GradeSubmitted:
		return "Submitted"
	case GradeValidated:
		return "Validated"
	}
	return "Unknown"
}

// Tone returns the badge tone.
func (s GradeStatus) Tone() Tone {
	switch s {
	case GradeDraft:
		return ToneNeutral
	case GradeSubmitted:
		return ToneInfo
	case GradeValidated:
		return ToneSuccess
	}
	return ToneWarning
}

// MarshalText implements encoding.TextMarshaler.
func (s GradeStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *GradeStatus) UnmarshalText(b []byte) error {
	*s = ParseGradeStatus(string(b))
	return nil
}

// ResultCode discriminates collaborator responses.
type ResultCode string

// Result codes.
const (
	ResultSuccess ResultCode = "success"
	ResultError   ResultCode = "error"
)

// ParseResultCode maps a response code. Anything other than success is an error.
func ParseResultCode(s string) ResultCode {
	if strings.EqualFold(strings.TrimSpace(s), string(ResultSuccess)) {
		return ResultSuccess
	}
	return ResultError
}

// RowTone distinguishes the visual state of a grade matrix row.
type RowTone int

// Row tones. Invalid wins over modified, which wins over graded.
const (
	RowPending RowTone = iota
	RowModified
	RowGraded
	RowInvalid
)

// String returns the tone name.
func (t RowTone) String() string {
	switch t {
	case RowPending:
		return "pending"
	case RowModified:
		return "modified"
	case RowGraded:
		return "graded"
	case RowInvalid:
		return "invalid"
	}
	return fmt.Sprintf("RowTone(%d)", int(t))
}

// Tone returns the badge tone for the row state.
func (t RowTone) Tone() Tone {
	switch t {
	case RowModified:
		return ToneWarning
	case RowGraded:
		return ToneSuccess
	case RowInvalid:
		return ToneDanger
	}
	return ToneNeutral
}
