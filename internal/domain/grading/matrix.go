package grading

import (
	"fmt"
	"math"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

// MatrixState is the lifecycle state of the grade matrix for one evaluation.
type MatrixState int

// Matrix states.
const (
	Unloaded MatrixState = iota
	Loading
	Loaded
	Saving
)

func (s MatrixState) String() string {
	switch s {
	case Unloaded:
		return "UNLOADED"
	case Loading:
		return "LOADING"
	case Loaded:
		return "LOADED"
	case Saving:
		return "SAVING"
	}
	return fmt.Sprintf("MatrixState(%d)", int(s))
}

// Matrix holds the authoritative rows of an evaluation sheet, the overlay of
// pending scores and the dirty set. Rows change only through Populate and
// Commit; UpdateScore touches the overlay alone.
//
// Matrix is not safe for concurrent use; Workflow serializes access.
type Matrix struct {
	state        MatrixState
	evaluationID string
	evaluation   model.Evaluation
	rows         []model.StudentRow
	index        map[string]int
	overlay      map[string]float64
	dirty        map[string]struct{}
	inFlight     map[string]float64
}

// NewMatrix returns an unloaded matrix.
func NewMatrix() *Matrix {
	m := &Matrix{}
	m.Reset()
	return m
}

// State returns the lifecycle state.
func (m *Matrix) State() MatrixState { return m.state }

// EvaluationID returns the evaluation being loaded or shown.
func (m *Matrix) EvaluationID() string { return m.evaluationID }

// Evaluation returns the loaded evaluation metadata.
func (m *Matrix) Evaluation() (model.Evaluation, bool) {
	if m.state != Loaded && m.state != Saving {
		return model.Evaluation{}, false
	}
	return m.evaluation, true
}

// Reset discards everything and returns to UNLOADED.
func (m *Matrix) Reset() {
	m.state = Unloaded
	m.evaluationID = ""
	m.evaluation = model.Evaluation{}
	m.rows = nil
	m.index = make(map[string]int)
	m.overlay = make(map[string]float64)
	m.dirty = make(map[string]struct{})
	m.inFlight = nil
}

// Begin discards the current sheet and waits for evaluationID.
func (m *Matrix) Begin(evaluationID string) {
	m.Reset()
	m.evaluationID = evaluationID
	m.state = Loading
}

// Populate installs a fetched sheet. The overlay is seeded from persisted
// scores and the dirty set starts empty.
func (m *Matrix) Populate(sheet model.Sheet) error {
	if m.state != Loading {
		return errMatrixNotLoading
	}
	if sheet.Evaluation.ID != m.evaluationID {
		return fmt.Errorf("%w: got %q, want %q", ErrSheetMismatch, sheet.Evaluation.ID, m.evaluationID)
	}
	if err := sheet.Evaluation.Validate(); err != nil {
		return err
	}

	index := make(map[string]int, len(sheet.Students))
	overlay := make(map[string]float64, len(sheet.Students))
	rows := make([]model.StudentRow, len(sheet.Students))
	for i, r := range sheet.Students {
		if _, dup := index[r.EnrollmentID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRow, r.EnrollmentID)
		}
		index[r.EnrollmentID] = i
		rows[i] = copyRow(r)
		if r.Score != nil {
			overlay[r.EnrollmentID] = *r.Score
		}
	}

	m.evaluation = sheet.Evaluation
	m.rows = rows
	m.index = index
	m.overlay = overlay
	m.dirty = make(map[string]struct{})
	m.state = Loaded
	return nil
}

func (m *Matrix) editable() error {
	if m.state != Loaded && m.state != Saving {
		return fmt.Errorf("%w: matrix is %s", ErrNoEvaluation, m.state)
	}
	return nil
}

// Has reports whether enrollmentID is a row of the sheet.
func (m *Matrix) Has(enrollmentID string) bool {
	_, ok := m.index[enrollmentID]
	return ok
}

// UpdateScore stages score for enrollmentID and marks it dirty. Edits are
// allowed while a save is in flight; they stay dirty after it resolves.
func (m *Matrix) UpdateScore(enrollmentID string, score float64) error {
	if err := m.editable(); err != nil {
		return err
	}
	if !m.Has(enrollmentID) {
		return fmt.Errorf("%w: %s", ErrUnknownEnrollment, enrollmentID)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > m.evaluation.MaxScore {
		return fmt.Errorf("%w: %v", ErrScoreOutOfRange, score)
	}
	m.overlay[enrollmentID] = score
	m.dirty[enrollmentID] = struct{}{}
	return nil
}

// ClearScore drops the pending edit for enrollmentID; the persisted score
// (if any) is displayed again.
func (m *Matrix) ClearScore(enrollmentID string) error {
	if err := m.editable(); err != nil {
		return err
	}
	i, ok := m.index[enrollmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEnrollment, enrollmentID)
	}
	delete(m.dirty, enrollmentID)
	if s := m.rows[i].Score; s != nil {
		m.overlay[enrollmentID] = *s
	} else {
		delete(m.overlay, enrollmentID)
	}
	return nil
}

// DisplayedScore returns overlay[id] if present, else the persisted score.
func (m *Matrix) DisplayedScore(enrollmentID string) (float64, bool) {
	if v, ok := m.overlay[enrollmentID]; ok {
		return v, true
	}
	if i, ok := m.index[enrollmentID]; ok && m.rows[i].Score != nil {
		return *m.rows[i].Score, true
	}
	return 0, false
}

// Rows returns a copy of the authoritative rows.
func (m *Matrix) Rows() []model.StudentRow {
	out := make([]model.StudentRow, len(m.rows))
	for i, r := range m.rows {
		out[i] = copyRow(r)
	}
	return out
}

// Overlay returns a copy of the overlay map.
func (m *Matrix) Overlay() map[string]float64 {
	out := make(map[string]float64, len(m.overlay))
	for k, v := range m.overlay {
		out[k] = v
	}
	return out
}

// Dirty returns the dirty enrollment ids in row order.
func (m *Matrix) Dirty() []string {
	out := make([]string, 0, len(m.dirty))
	for _, r := range m.rows {
		if _, ok := m.dirty[r.EnrollmentID]; ok {
			out = append(out, r.EnrollmentID)
		}
	}
	return out
}

// IsDirty reports whether enrollmentID has an unsaved edit.
func (m *Matrix) IsDirty(enrollmentID string) bool {
	_, ok := m.dirty[enrollmentID]
	return ok
}

// DirtyCount returns the size of the dirty set.
func (m *Matrix) DirtyCount() int { return len(m.dirty) }

// Snapshot freezes the dirty entries for submission and enters SAVING.
func (m *Matrix) Snapshot() ([]model.GradeEntry, error) {
	switch m.state {
	case Saving:
		return nil, ErrSubmissionInFlight
	case Loaded:
	default:
		return nil, fmt.Errorf("%w: matrix is %s", ErrNoEvaluation, m.state)
	}
	if len(m.dirty) == 0 {
		return nil, ErrNothingToSubmit
	}

	entries := make([]model.GradeEntry, 0, len(m.dirty))
	m.inFlight = make(map[string]float64, len(m.dirty))
	for _, r := range m.rows {
		if _, ok := m.dirty[r.EnrollmentID]; !ok {
			continue
		}
		score := m.overlay[r.EnrollmentID] // 0 when absent
		m.inFlight[r.EnrollmentID] = score
		entries = append(entries, model.GradeEntry{
			EnrollmentCode: r.EnrollmentID,
			Score:          score,
			StatusCode:     types.GradeSubmitted,
			Comments:       r.Comments,
		})
	}
	m.state = Saving
	return entries, nil
}

// InFlight returns the number of entries in the pending submission.
func (m *Matrix) InFlight() int { return len(m.inFlight) }

// Commit merges the submitted scores into the rows and returns to LOADED.
// A submitted key leaves the dirty set only if its overlay value is still
// the submitted one.
func (m *Matrix) Commit() int {
	if m.state != Saving {
		return 0
	}
	cleared := 0
	for id, score := range m.inFlight {
		i := m.index[id]
		m.rows[i].Score = model.Float(score)
		m.rows[i].Graded = true
		m.rows[i].Status = types.GradeSubmitted
		if _, dirty := m.dirty[id]; !dirty {
			m.overlay[id] = score
			continue
		}
		if m.overlay[id] == score {
			delete(m.dirty, id)
			cleared++
		}
	}
	m.inFlight = nil
	m.state = Loaded
	return cleared
}

// Abort returns to LOADED leaving overlay and dirty set untouched.
func (m *Matrix) Abort() {
	if m.state != Saving {
		return
	}
	m.inFlight = nil
	m.state = Loaded
}

func copyRow(r model.StudentRow) model.StudentRow {
	if r.Score != nil {
		r.Score = model.Float(*r.Score)
	}
	return r
}
