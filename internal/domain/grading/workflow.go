// Package grading implements the grade-entry workflow: the selection cascade
// (curriculum and academic year, schedule, evaluation), the grade matrix with
// its overlay of unsaved scores, score input validation, and batch
// submission through a save collaborator.
package grading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// Tier names, used for Pending handles, logs and metrics.
const (
	TierSchedules   = "schedules"
	TierEvaluations = "evaluations"
	TierSheet       = "sheet"
	tierSave        = "save"
)

const genericSaveError = "Failed to save grades. Please try again."

// Collaborators are the remote calls the workflow depends on.
type Collaborators interface {
	LoadSchedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error)
	LoadEvaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error)
	LoadEvaluationSheet(ctx context.Context, evaluationID string) (model.Sheet, error)
	// SaveGrades returns an error for transport failures; a rejected batch
	// is reported through SaveResult.
	SaveGrades(ctx context.Context, evaluationID string, entries []model.GradeEntry) (model.SaveResult, error)
}

type tier int

const (
	tierSchedules tier = iota
	tierEvaluations
	tierSheet
	tierCount
)

var tierNames = [tierCount]string{TierSchedules, TierEvaluations, TierSheet}

// Workflow owns the selection cascade and the grade matrix. All methods are
// safe for concurrent use. Selecting a value clears everything downstream
// before the triggered fetch starts; responses that arrive after a newer
// selection are discarded.
type Workflow struct {
	mu sync.Mutex

	collab        Collaborators
	loadTimeout   time.Duration
	saveTimeout   time.Duration
	notifier      Notifier
	log           logger.Logger
	validatorOpts []ValidatorOption

	curriculumID   string
	academicYearID string
	scheduleID     string
	evaluationID   string
	schedules      []model.Schedule
	evaluations    []model.Evaluation

	// per tier: generation of the latest request, its cancel func and loading flag
	gen     [tierCount]uint64
	cancel  [tierCount]context.CancelFunc
	loading [tierCount]bool

	matrix    *Matrix
	validator *Validator
	echo      map[string]ScoreInput
}

// New creates a Workflow on top of collab.
func New(collab Collaborators, opts ...Option) (*Workflow, error) {
	if collab == nil {
		return nil, ErrNilCollaborators
	}
	w := &Workflow{
		collab:      collab,
		loadTimeout: DefaultLoadTimeout,
		saveTimeout: DefaultSaveTimeout,
		log:         logger.OrNop(),
		matrix:      NewMatrix(),
		echo:        make(map[string]ScoreInput),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}
	if w.notifier == nil {
		w.notifier = LogNotifier{Logger: w.log}
	}
	return w, nil
}

// SelectCurriculum sets the curriculum. Schedules, evaluations and the matrix
// are cleared; schedules are fetched once an academic year is also set.
func (w *Workflow) SelectCurriculum(ctx context.Context, curriculumID string) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.curriculumID = curriculumID
	w.clearSchedules()
	return w.loadSchedulesLocked(ctx), nil
}

// SelectAcademicYear sets the academic year with the same reset rules as
// SelectCurriculum.
func (w *Workflow) SelectAcademicYear(ctx context.Context, academicYearID string) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.academicYearID = academicYearID
	w.clearSchedules()
	return w.loadSchedulesLocked(ctx), nil
}

// SelectSchedule sets the schedule, clears the evaluation tier and fetches
// its evaluations. An empty id deselects.
func (w *Workflow) SelectSchedule(ctx context.Context, scheduleID string) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if scheduleID == "" {
		w.clearEvaluations()
		w.scheduleID = ""
		return resolved(TierEvaluations, nil), nil
	}
	if w.curriculumID == "" || w.academicYearID == "" || w.loading[tierSchedules] {
		return nil, fmt.Errorf("select schedule %s: %w", scheduleID, ErrCascadeOrder)
	}
	if !containsSchedule(w.schedules, scheduleID) {
		return nil, fmt.Errorf("select schedule %s: %w", scheduleID, ErrUnknownSchedule)
	}

	w.clearEvaluations()
	w.scheduleID = scheduleID
	return w.launch(ctx, tierEvaluations, func(ctx context.Context) (func() error, error) {
		list, err := w.collab.LoadEvaluations(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
		return func() error {
			w.evaluations = list
			return nil
		}, nil
	}), nil
}

// SelectEvaluation sets the evaluation and loads its sheet into the matrix.
// Any unsaved edits of the previous evaluation are discarded. An empty id
// deselects.
func (w *Workflow) SelectEvaluation(ctx context.Context, evaluationID string) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if evaluationID == "" {
		w.clearSheet()
		return resolved(TierSheet, nil), nil
	}
	if w.scheduleID == "" || w.loading[tierEvaluations] {
		return nil, fmt.Errorf("select evaluation %s: %w", evaluationID, ErrCascadeOrder)
	}
	if !containsEvaluation(w.evaluations, evaluationID) {
		return nil, fmt.Errorf("select evaluation %s: %w", evaluationID, ErrUnknownEvaluation)
	}

	w.clearSheet()
	w.evaluationID = evaluationID
	w.matrix.Begin(evaluationID)
	return w.launch(ctx, tierSheet, func(ctx context.Context) (func() error, error) {
		sheet, err := w.collab.LoadEvaluationSheet(ctx, evaluationID)
		if err != nil {
			return nil, err
		}
		return func() error {
			if err := w.matrix.Populate(sheet); err != nil {
				return err
			}
			w.validator = NewValidator(sheet.Evaluation.MaxScore, w.validatorOpts...)
			return nil
		}, nil
	}), nil
}

func (w *Workflow) loadSchedulesLocked(ctx context.Context) *Pending {
	curriculumID, academicYearID := w.curriculumID, w.academicYearID
	if curriculumID == "" || academicYearID == "" {
		return resolved(TierSchedules, nil)
	}
	return w.launch(ctx, tierSchedules, func(ctx context.Context) (func() error, error) {
		list, err := w.collab.LoadSchedules(ctx, curriculumID, academicYearID)
		if err != nil {
			return nil, err
		}
		return func() error {
			w.schedules = list
			return nil
		}, nil
	})
}

// launch runs fetch in the background for tier t. The returned apply func is
// run under the lock, and only if no newer request for t was issued since.
// Must be called with w.mu held and after invalidate(t).
func (w *Workflow) launch(parent context.Context, t tier, fetch func(context.Context) (func() error, error)) *Pending {
	name := tierNames[t]
	gen := w.gen[t]
	ctx, cancel := context.WithTimeout(parent, w.loadTimeout)
	w.cancel[t] = cancel
	w.loading[t] = true
	p := newPending(name)

	go func() {
		defer cancel()
		start := time.Now()
		apply, err := fetch(ctx)
		latency := float64(time.Since(start).Milliseconds())

		w.mu.Lock()
		if w.gen[t] != gen {
			w.mu.Unlock()
			metrics.RecordStaleResponse(name)
			metrics.RecordCollaboratorLoad(name, "stale", latency)
			w.log.Debug(ctx, "discarded stale response", logger.String("tier", name))
			p.resolve(ErrStale)
			return
		}
		w.loading[t] = false
		w.cancel[t] = nil
		if err == nil {
			err = apply()
		}
		var note *Notification
		outcome := "success"
		if err != nil {
			outcome = "error"
			w.failLocked(t)
			note = &Notification{Level: LevelError, Title: "Could not load " + name, Message: err.Error()}
			w.log.Error(ctx, "load failed", logger.String("tier", name), logger.Error(err))
		} else if w.emptyLocked(t) {
			outcome = "empty"
			w.log.Debug(ctx, "no items found", logger.String("tier", name))
		}
		w.mu.Unlock()

		metrics.RecordCollaboratorLoad(name, outcome, latency)
		if note != nil {
			w.notifier.Notify(context.WithoutCancel(ctx), *note)
		}
		p.resolve(err)
	}()
	return p
}

// failLocked leaves tier t empty after a failed load.
func (w *Workflow) failLocked(t tier) {
	switch t {
	case tierSchedules:
		w.schedules = nil
	case tierEvaluations:
		w.evaluations = nil
	case tierSheet:
		w.matrix.Reset()
		w.validator = nil
	}
}

func (w *Workflow) emptyLocked(t tier) bool {
	switch t {
	case tierSchedules:
		return len(w.schedules) == 0
	case tierEvaluations:
		return len(w.evaluations) == 0
	case tierSheet:
		return len(w.matrix.rows) == 0
	}
	return false
}

// invalidate makes any in-flight response for t stale and cancels it.
func (w *Workflow) invalidate(t tier) {
	w.gen[t]++
	if w.cancel[t] != nil {
		w.cancel[t]()
		w.cancel[t] = nil
	}
	w.loading[t] = false
}

func (w *Workflow) clearSheet() {
	w.invalidate(tierSheet)
	w.evaluationID = ""
	w.matrix.Reset()
	w.validator = nil
	w.echo = make(map[string]ScoreInput)
	metrics.UpdateDirtyRows(0)
}

func (w *Workflow) clearEvaluations() {
	w.invalidate(tierEvaluations)
	w.evaluations = nil
	w.clearSheet()
}

func (w *Workflow) clearSchedules() {
	w.invalidate(tierSchedules)
	w.schedules = nil
	w.scheduleID = ""
	w.clearEvaluations()
}

// Close cancels every in-flight load.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for t := tier(0); t < tierCount; t++ {
		w.invalidate(t)
	}
}

// Curriculum returns the selected curriculum id.
func (w *Workflow) Curriculum() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.curriculumID
}

// AcademicYear returns the selected academic year id.
func (w *Workflow) AcademicYear() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.academicYearID
}

// Schedule returns the selected schedule id.
func (w *Workflow) Schedule() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scheduleID
}

// Evaluation returns the selected evaluation id.
func (w *Workflow) Evaluation() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.evaluationID
}

// EvaluationMeta returns the metadata of the loaded sheet.
func (w *Workflow) EvaluationMeta() (model.Evaluation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.matrix.Evaluation()
}

// Schedules returns the loaded schedules. The list is empty until both
// curriculum and academic year are selected and the fetch has resolved.
func (w *Workflow) Schedules() []model.Schedule {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Schedule(nil), w.schedules...)
}

// Evaluations returns the loaded evaluations of the selected schedule.
func (w *Workflow) Evaluations() []model.Evaluation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Evaluation(nil), w.evaluations...)
}

// SchedulesLoading reports whether a schedules fetch is in flight.
func (w *Workflow) SchedulesLoading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading[tierSchedules]
}

// EvaluationsLoading reports whether an evaluations fetch is in flight.
func (w *Workflow) EvaluationsLoading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading[tierEvaluations]
}

// EnterScore handles typed input for a row. Valid input is staged, blank
// input drops the pending edit, invalid input is only echoed: the last valid
// value stays in effect. The typed text is kept as the row's local echo.
func (w *Workflow) EnterScore(enrollmentID, raw string) (ScoreInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.validator == nil {
		return ScoreInput{}, ErrNoEvaluation
	}
	if !w.matrix.Has(enrollmentID) {
		return ScoreInput{}, fmt.Errorf("%w: %s", ErrUnknownEnrollment, enrollmentID)
	}

	in := w.validator.Parse(raw)
	w.echo[enrollmentID] = in
	var err error
	switch in.State {
	case InputValid:
		err = w.matrix.UpdateScore(enrollmentID, in.Value)
	case InputUngraded:
		err = w.matrix.ClearScore(enrollmentID)
	case InputInvalid:
	}
	metrics.UpdateDirtyRows(w.matrix.DirtyCount())
	return in, err
}

// UpdateScore stages a numeric score for a row.
func (w *Workflow) UpdateScore(enrollmentID string, score float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.validator == nil {
		return ErrNoEvaluation
	}
	if err := w.validator.Check(score); err != nil {
		return err
	}
	if err := w.matrix.UpdateScore(enrollmentID, score); err != nil {
		return err
	}
	w.echo[enrollmentID] = ScoreInput{Raw: formatScore(score), State: InputValid, Value: score}
	metrics.UpdateDirtyRows(w.matrix.DirtyCount())
	return nil
}

// RowView is a row as presented to the user.
type RowView struct {
	Row       model.StudentRow
	Displayed *float64
	Input     string
	Reason    string
	Dirty     bool
	Tone      types.RowTone
}

// RowViews returns the rows with their displayed score and visual state.
func (w *Workflow) RowViews() []RowView {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := w.matrix.Rows()
	out := make([]RowView, len(rows))
	for i, r := range rows {
		v := RowView{Row: r, Dirty: w.matrix.IsDirty(r.EnrollmentID)}
		if s, ok := w.matrix.DisplayedScore(r.EnrollmentID); ok {
			v.Displayed = model.Float(s)
			v.Input = formatScore(s)
		}
		echo, typed := w.echo[r.EnrollmentID]
		if typed {
			v.Input = echo.Raw
		}
		switch {
		case typed && echo.State == InputInvalid:
			v.Tone = types.RowInvalid
			v.Reason = echo.Reason
		case v.Dirty:
			v.Tone = types.RowModified
		case r.Graded:
			v.Tone = types.RowGraded
		default:
			v.Tone = types.RowPending
		}
		out[i] = v
	}
	return out
}

// CanSubmit reports whether Submit would send a batch.
func (w *Workflow) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.matrix.State() == Loaded && w.matrix.DirtyCount() > 0
}

// Submit sends every dirty row in one SaveGrades call. On success the
// submitted scores are merged into the rows; on failure overlay and dirty set
// are left untouched. Edits made while the call is in flight stay dirty.
func (w *Workflow) Submit(ctx context.Context) (model.SaveResult, error) {
	w.mu.Lock()
	entries, err := w.matrix.Snapshot()
	if err != nil {
		w.mu.Unlock()
		return model.SaveResult{}, err
	}
	gen := w.gen[tierSheet]
	evaluationID := w.evaluationID
	w.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(ctx, w.saveTimeout)
	defer cancel()
	start := time.Now()
	res, callErr := w.collab.SaveGrades(saveCtx, evaluationID, entries)
	latency := float64(time.Since(start).Milliseconds())

	w.mu.Lock()
	stale := w.gen[tierSheet] != gen
	var note Notification
	var out error
	outcome := "success"
	switch {
	case callErr != nil:
		outcome = "error"
		if !stale {
			w.matrix.Abort()
		}
		note = Notification{Level: LevelError, Title: "Grades not saved", Message: saveMessage(callErr.Error())}
		out = fmt.Errorf("%w: %w", ErrSaveFailed, callErr)
	case !res.OK():
		outcome = "rejected"
		if !stale {
			w.matrix.Abort()
		}
		note = Notification{Level: LevelError, Title: "Grades not saved", Message: saveMessage(res.Error)}
		out = fmt.Errorf("%w: %s", ErrSaveRejected, note.Message)
	default:
		if !stale {
			w.matrix.Commit()
		}
		note = Notification{Level: LevelSuccess, Title: "Grades saved", Message: fmt.Sprintf("%d grade(s) saved", len(entries))}
	}
	dirty := w.matrix.DirtyCount()
	w.mu.Unlock()

	metrics.RecordSubmission(outcome)
	metrics.RecordCollaboratorLoad(tierSave, outcome, latency)
	metrics.UpdateDirtyRows(dirty)
	if stale {
		metrics.RecordStaleResponse(tierSave)
		w.log.Warn(ctx, "evaluation changed while saving; result not merged",
			logger.String("evaluation", evaluationID))
	}
	if out != nil && !errors.Is(out, ErrSaveRejected) {
		w.log.Error(ctx, "save grades failed", logger.String("evaluation", evaluationID), logger.Error(out))
	}
	w.notifier.Notify(context.WithoutCancel(ctx), note)
	return res, out
}

func saveMessage(msg string) string {
	if msg == "" {
		return genericSaveError
	}
	return msg
}

// StateView is a consistent snapshot of the workflow.
type StateView struct {
	CurriculumID       string
	AcademicYearID     string
	ScheduleID         string
	EvaluationID       string
	SchedulesLoading   bool
	EvaluationsLoading bool
	Matrix             MatrixState
	Dirty              int
	InFlight           int
}

// State returns a snapshot of selections, loading flags and matrix state.
func (w *Workflow) State() StateView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return StateView{
		CurriculumID:       w.curriculumID,
		AcademicYearID:     w.academicYearID,
		ScheduleID:         w.scheduleID,
		EvaluationID:       w.evaluationID,
		SchedulesLoading:   w.loading[tierSchedules],
		EvaluationsLoading: w.loading[tierEvaluations],
		Matrix:             w.matrix.State(),
		Dirty:              w.matrix.DirtyCount(),
		InFlight:           w.matrix.InFlight(),
	}
}

func containsSchedule(list []model.Schedule, id string) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}

func containsEvaluation(list []model.Evaluation, id string) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}
