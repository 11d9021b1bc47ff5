package grading

import "errors"

// Sentinel errors returned by the workflow. Validation of typed score input
// never produces an error; it is reported through ScoreInput.
var (
	ErrCascadeOrder       = errors.New("upstream selection is not resolved")
	ErrUnknownSchedule    = errors.New("schedule is not in the loaded list")
	ErrUnknownEvaluation  = errors.New("evaluation is not in the loaded list")
	ErrUnknownEnrollment  = errors.New("enrollment is not part of the sheet")
	ErrDuplicateRow       = errors.New("duplicate enrollment in sheet")
	ErrSheetMismatch      = errors.New("sheet does not belong to the selected evaluation")
	ErrScoreOutOfRange    = errors.New("score is not a finite number within range")
	ErrNoEvaluation       = errors.New("no evaluation loaded")
	ErrNothingToSubmit    = errors.New("no modified scores to submit")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrSaveFailed         = errors.New("save grades failed")
	ErrSaveRejected       = errors.New("save grades rejected")
	ErrStale              = errors.New("response superseded by a newer selection")
	ErrNilCollaborators   = errors.New("collaborators must not be nil")
	errMatrixNotLoading   = errors.New("matrix is not waiting for a sheet")
)
