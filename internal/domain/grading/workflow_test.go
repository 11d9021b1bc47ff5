package grading_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/domain/grading"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeCollab serves canned data. A call for a key listed in gates blocks
// until the gate is closed or its context ends.
type fakeCollab struct {
	mu          sync.Mutex
	schedules   map[string][]model.Schedule
	evaluations map[string][]model.Evaluation
	sheets      map[string]model.Sheet
	loadErr     map[string]error
	gates       map[string]chan struct{}
	saveResult  model.SaveResult
	saveErr     error
	saves       [][]model.GradeEntry
	saveStarted chan struct{}
}

func newFakeCollab() *fakeCollab {
	return &fakeCollab{
		schedules: map[string][]model.Schedule{
			"c1|y1": {{ID: "s-1", CurriculumID: "c1", AcademicYearID: "y1", Name: "Term 1", Status: types.ScheduleOpen}},
			"c2|y1": {{ID: "s-2", CurriculumID: "c2", AcademicYearID: "y1", Name: "Term 1", Status: types.ScheduleOpen}},
		},
		evaluations: map[string][]model.Evaluation{
			"s-1": {
				{ID: "ev-1", ScheduleID: "s-1", Title: "Algebra", MaxScore: 20, Coefficient: 2},
				{ID: "ev-2", ScheduleID: "s-1", Title: "Geometry", MaxScore: 20, Coefficient: 1},
			},
		},
		sheets: map[string]model.Sheet{
			"ev-1": testSheet(),
			"ev-2": {Evaluation: model.Evaluation{ID: "ev-2", MaxScore: 20, Coefficient: 1}, Students: testSheet().Students},
		},
		loadErr:     map[string]error{},
		gates:       map[string]chan struct{}{},
		saveResult:  model.Saved(0),
		saveStarted: make(chan struct{}, 8),
	}
}

func (f *fakeCollab) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	gate := f.gates[key]
	err := f.loadErr[key]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeCollab) LoadSchedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error) {
	key := curriculumID + "|" + academicYearID
	if err := f.wait(ctx, key); err != nil {
		return nil, err
	}
	return f.schedules[key], nil
}

func (f *fakeCollab) LoadEvaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error) {
	if err := f.wait(ctx, scheduleID); err != nil {
		return nil, err
	}
	return f.evaluations[scheduleID], nil
}

func (f *fakeCollab) LoadEvaluationSheet(ctx context.Context, evaluationID string) (model.Sheet, error) {
	if err := f.wait(ctx, evaluationID); err != nil {
		return model.Sheet{}, err
	}
	return f.sheets[evaluationID], nil
}

func (f *fakeCollab) SaveGrades(ctx context.Context, _ string, entries []model.GradeEntry) (model.SaveResult, error) {
	f.mu.Lock()
	f.saves = append(f.saves, entries)
	f.mu.Unlock()
	f.saveStarted <- struct{}{}
	if err := f.wait(ctx, "save"); err != nil {
		return model.SaveResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveResult, f.saveErr
}

func (f *fakeCollab) gate(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func wait(p *grading.Pending, err error) error {
	So(err, ShouldBeNil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

// loadedWorkflow walks the cascade down to ev-1.
func loadedWorkflow(f *fakeCollab, notes *grading.Notifications) *grading.Workflow {
	w, err := grading.New(f, grading.WithNotifier(notes))
	So(err, ShouldBeNil)
	ctx := context.Background()
	So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)
	So(wait(w.SelectAcademicYear(ctx, "y1")), ShouldBeNil)
	So(wait(w.SelectSchedule(ctx, "s-1")), ShouldBeNil)
	So(wait(w.SelectEvaluation(ctx, "ev-1")), ShouldBeNil)
	return w
}

func TestWorkflowCascade(t *testing.T) {
	Convey("Given a workflow", t, func() {
		f := newFakeCollab()
		notes := &grading.Notifications{}
		w, err := grading.New(f, grading.WithNotifier(notes))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When constructed without collaborators", func() {
			_, err := grading.New(nil)
			So(errors.Is(err, grading.ErrNilCollaborators), ShouldBeTrue)
		})

		Convey("When only the curriculum is set", func() {
			So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)

			Convey("Then no schedules are fetched", func() {
				So(w.Schedules(), ShouldBeEmpty)
				So(w.SchedulesLoading(), ShouldBeFalse)
			})

			Convey("Then a schedule cannot be selected", func() {
				_, err := w.SelectSchedule(ctx, "s-1")
				So(errors.Is(err, grading.ErrCascadeOrder), ShouldBeTrue)
			})
		})

		Convey("When curriculum and academic year are set", func() {
			So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)
			So(wait(w.SelectAcademicYear(ctx, "y1")), ShouldBeNil)

			Convey("Then schedules are loaded", func() {
				So(len(w.Schedules()), ShouldEqual, 1)
				So(w.Schedules()[0].ID, ShouldEqual, "s-1")
			})

			Convey("Then an unknown schedule is rejected", func() {
				_, err := w.SelectSchedule(ctx, "s-9")
				So(errors.Is(err, grading.ErrUnknownSchedule), ShouldBeTrue)
			})

			Convey("Then an evaluation cannot be selected before a schedule", func() {
				_, err := w.SelectEvaluation(ctx, "ev-1")
				So(errors.Is(err, grading.ErrCascadeOrder), ShouldBeTrue)
			})
		})

		Convey("When the whole cascade is resolved", func() {
			w := loadedWorkflow(f, notes)

			Convey("Then the matrix is loaded", func() {
				st := w.State()
				So(st.Matrix, ShouldEqual, grading.Loaded)
				So(st.EvaluationID, ShouldEqual, "ev-1")
				So(len(w.RowViews()), ShouldEqual, 3)
				ev, ok := w.EvaluationMeta()
				So(ok, ShouldBeTrue)
				So(ev.Title, ShouldEqual, "Algebra")
			})

			Convey("Then an unknown evaluation is rejected", func() {
				_, err := w.SelectEvaluation(ctx, "ev-9")
				So(errors.Is(err, grading.ErrUnknownEvaluation), ShouldBeTrue)
			})

			Convey("When the curriculum changes", func() {
				_, err := w.EnterScore("E1", "15")
				So(err, ShouldBeNil)
				So(wait(w.SelectCurriculum(ctx, "c2")), ShouldBeNil)

				Convey("Then every downstream selection and the matrix are cleared", func() {
					So(w.Curriculum(), ShouldEqual, "c2")
					So(w.AcademicYear(), ShouldEqual, "y1")
					So(w.Schedule(), ShouldBeEmpty)
					So(w.Evaluation(), ShouldBeEmpty)
					So(w.Evaluations(), ShouldBeEmpty)
					So(w.State().Matrix, ShouldEqual, grading.Unloaded)
					So(w.State().Dirty, ShouldEqual, 0)
					So(w.RowViews(), ShouldBeEmpty)
					So(w.Schedules()[0].ID, ShouldEqual, "s-2")
				})
			})

			Convey("When the schedule is deselected", func() {
				So(wait(w.SelectSchedule(ctx, "")), ShouldBeNil)

				So(w.Evaluation(), ShouldBeEmpty)
				So(w.Evaluations(), ShouldBeEmpty)
				So(w.State().Matrix, ShouldEqual, grading.Unloaded)
			})

			Convey("When another evaluation is selected", func() {
				_, err := w.EnterScore("E1", "15")
				So(err, ShouldBeNil)
				So(wait(w.SelectEvaluation(ctx, "ev-2")), ShouldBeNil)

				Convey("Then the previous overlay and dirty set are discarded", func() {
					So(w.State().Dirty, ShouldEqual, 0)
					So(w.RowViews()[0].Displayed, ShouldBeNil)
				})
			})
		})
	})
}

func TestWorkflowLoads(t *testing.T) {
	Convey("Given a workflow with a slow collaborator", t, func() {
		f := newFakeCollab()
		notes := &grading.Notifications{}
		w, err := grading.New(f, grading.WithNotifier(notes), grading.WithLoadTimeout(100*time.Millisecond))
		So(err, ShouldBeNil)
		ctx := context.Background()
		_, err = w.SelectAcademicYear(ctx, "y1")
		So(err, ShouldBeNil)

		Convey("When the curriculum changes before the first response arrives", func() {
			gate := f.gate("c1|y1")
			defer close(gate)
			first, err := w.SelectCurriculum(ctx, "c1")
			So(err, ShouldBeNil)
			So(w.SchedulesLoading(), ShouldBeTrue)

			So(wait(w.SelectCurriculum(ctx, "c2")), ShouldBeNil)

			Convey("Then the first response is discarded as stale", func() {
				So(errors.Is(first.Wait(ctx), grading.ErrStale), ShouldBeTrue)
				So(w.Schedules()[0].ID, ShouldEqual, "s-2")
				So(w.SchedulesLoading(), ShouldBeFalse)
				_, failed := notes.Last()
				So(failed, ShouldBeFalse)
			})
		})

		Convey("When a load never answers", func() {
			gate := f.gate("c1|y1")
			defer close(gate)
			err := wait(w.SelectCurriculum(ctx, "c1"))

			Convey("Then it times out into an empty list", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(w.Schedules(), ShouldBeEmpty)
				So(w.SchedulesLoading(), ShouldBeFalse)
			})
		})

		Convey("When the evaluations load fails", func() {
			f.loadErr["s-1"] = errors.New("backend down")
			So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)
			err := wait(w.SelectSchedule(ctx, "s-1"))

			Convey("Then the tier is empty and an error is notified", func() {
				So(err, ShouldNotBeNil)
				So(w.Evaluations(), ShouldBeEmpty)
				So(w.EvaluationsLoading(), ShouldBeFalse)
				n, ok := notes.Last()
				So(ok, ShouldBeTrue)
				So(n.Level, ShouldEqual, grading.LevelError)
				So(n.Message, ShouldContainSubstring, "backend down")
			})
		})

		Convey("When the sheet contains a duplicate row", func() {
			sheet := testSheet()
			sheet.Students = append(sheet.Students, sheet.Students[0])
			f.sheets["ev-1"] = sheet
			So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)
			So(wait(w.SelectSchedule(ctx, "s-1")), ShouldBeNil)
			err := wait(w.SelectEvaluation(ctx, "ev-1"))

			Convey("Then the sheet is rejected and the matrix stays unloaded", func() {
				So(errors.Is(err, grading.ErrDuplicateRow), ShouldBeTrue)
				So(w.State().Matrix, ShouldEqual, grading.Unloaded)
				_, err := w.EnterScore("E1", "10")
				So(errors.Is(err, grading.ErrNoEvaluation), ShouldBeTrue)
			})
		})
	})
}

func TestWorkflowScoreEntry(t *testing.T) {
	Convey("Given a loaded evaluation with max score 20", t, func() {
		f := newFakeCollab()
		notes := &grading.Notifications{}
		w := loadedWorkflow(f, notes)

		Convey("When 15 is entered for E1", func() {
			in, err := w.EnterScore("E1", "15")

			Convey("Then E1 is dirty and displays 15", func() {
				So(err, ShouldBeNil)
				So(in.Valid(), ShouldBeTrue)
				row := w.RowViews()[0]
				So(row.Dirty, ShouldBeTrue)
				So(*row.Displayed, ShouldEqual, 15)
				So(row.Tone, ShouldEqual, types.RowModified)
				So(w.State().Dirty, ShouldEqual, 1)
				So(w.CanSubmit(), ShouldBeTrue)
			})
		})

		Convey("When 25 is entered for E1", func() {
			in, err := w.EnterScore("E1", "25")

			Convey("Then the input is invalid and nothing is staged", func() {
				So(err, ShouldBeNil)
				So(in.State, ShouldEqual, grading.InputInvalid)
				row := w.RowViews()[0]
				So(row.Dirty, ShouldBeFalse)
				So(row.Displayed, ShouldBeNil)
				So(row.Tone, ShouldEqual, types.RowInvalid)
				So(row.Input, ShouldEqual, "25")
				So(row.Reason, ShouldNotBeEmpty)
				So(w.CanSubmit(), ShouldBeFalse)
			})
		})

		Convey("When a valid value is followed by an invalid one", func() {
			_, _ = w.EnterScore("E1", "15")
			_, _ = w.EnterScore("E1", "abc")

			Convey("Then the last valid value stays in effect", func() {
				row := w.RowViews()[0]
				So(*row.Displayed, ShouldEqual, 15)
				So(row.Dirty, ShouldBeTrue)
				So(row.Input, ShouldEqual, "abc")
				So(row.Tone, ShouldEqual, types.RowInvalid)
			})
		})

		Convey("When an edit of a graded row is blanked", func() {
			_, _ = w.EnterScore("E3", "19")
			in, err := w.EnterScore("E3", "")

			Convey("Then the pending edit is dropped, not turned into zero", func() {
				So(err, ShouldBeNil)
				So(in.State, ShouldEqual, grading.InputUngraded)
				row := w.RowViews()[2]
				So(row.Dirty, ShouldBeFalse)
				So(*row.Displayed, ShouldEqual, 11)
				So(row.Tone, ShouldEqual, types.RowGraded)
			})
		})

		Convey("When the same score is set twice", func() {
			So(w.UpdateScore("E2", 12), ShouldBeNil)
			So(w.UpdateScore("E2", 12), ShouldBeNil)

			So(w.State().Dirty, ShouldEqual, 1)
		})

		Convey("When UpdateScore gets an out of range value", func() {
			So(errors.Is(w.UpdateScore("E2", -1), grading.ErrScoreOutOfRange), ShouldBeTrue)
			So(w.State().Dirty, ShouldEqual, 0)
		})

		Convey("When the enrollment is unknown", func() {
			_, err := w.EnterScore("E9", "10")
			So(errors.Is(err, grading.ErrUnknownEnrollment), ShouldBeTrue)
		})
	})

	Convey("Given a workflow using the legacy blank policy", t, func() {
		f := newFakeCollab()
		w, err := grading.New(f, grading.WithValidatorOptions(grading.WithBlankAsZero()), grading.WithNotifier(&grading.Notifications{}))
		So(err, ShouldBeNil)
		ctx := context.Background()
		So(wait(w.SelectCurriculum(ctx, "c1")), ShouldBeNil)
		So(wait(w.SelectAcademicYear(ctx, "y1")), ShouldBeNil)
		So(wait(w.SelectSchedule(ctx, "s-1")), ShouldBeNil)
		So(wait(w.SelectEvaluation(ctx, "ev-1")), ShouldBeNil)

		_, err = w.EnterScore("E1", "")
		So(err, ShouldBeNil)
		So(*w.RowViews()[0].Displayed, ShouldEqual, 0)
		So(w.State().Dirty, ShouldEqual, 1)
	})
}

func TestWorkflowSubmit(t *testing.T) {
	Convey("Given a loaded evaluation", t, func() {
		f := newFakeCollab()
		notes := &grading.Notifications{}
		w := loadedWorkflow(f, notes)
		ctx := context.Background()

		Convey("When nothing is dirty", func() {
			_, err := w.Submit(ctx)
			So(errors.Is(err, grading.ErrNothingToSubmit), ShouldBeTrue)
			So(f.saves, ShouldBeEmpty)
		})

		Convey("When E1=15 and E2=18 are saved successfully", func() {
			So(w.UpdateScore("E1", 15), ShouldBeNil)
			So(w.UpdateScore("E2", 18), ShouldBeNil)
			res, err := w.Submit(ctx)

			Convey("Then both rows are graded and the dirty set is empty", func() {
				So(err, ShouldBeNil)
				So(res.OK(), ShouldBeTrue)
				rows := w.RowViews()
				So(rows[0].Row.Graded, ShouldBeTrue)
				So(*rows[0].Row.Score, ShouldEqual, 15)
				So(rows[1].Row.Graded, ShouldBeTrue)
				So(*rows[1].Row.Score, ShouldEqual, 18)
				So(rows[0].Tone, ShouldEqual, types.RowGraded)
				So(w.State().Dirty, ShouldEqual, 0)
				So(w.State().Matrix, ShouldEqual, grading.Loaded)
			})

			Convey("Then one batch was sent with SUBMITTED entries", func() {
				So(len(f.saves), ShouldEqual, 1)
				So(f.saves[0], ShouldResemble, []model.GradeEntry{
					{EnrollmentCode: "E1", Score: 15, StatusCode: types.GradeSubmitted},
					{EnrollmentCode: "E2", Score: 18, StatusCode: types.GradeSubmitted},
				})
			})

			Convey("Then a success notification is shown", func() {
				n, _ := notes.Last()
				So(n.Level, ShouldEqual, grading.LevelSuccess)
			})
		})

		Convey("When the save is rejected with a message", func() {
			f.saveResult = model.Rejected("Network timeout")
			So(w.UpdateScore("E1", 15), ShouldBeNil)
			_, err := w.Submit(ctx)

			Convey("Then E1 is unchanged and still dirty", func() {
				So(errors.Is(err, grading.ErrSaveRejected), ShouldBeTrue)
				row := w.RowViews()[0]
				So(row.Row.Graded, ShouldBeFalse)
				So(row.Row.Score, ShouldBeNil)
				So(row.Dirty, ShouldBeTrue)
				So(*row.Displayed, ShouldEqual, 15)
				n, _ := notes.Last()
				So(n.Level, ShouldEqual, grading.LevelError)
				So(n.Message, ShouldContainSubstring, "Network timeout")
				So(w.CanSubmit(), ShouldBeTrue)
			})
		})

		Convey("When the save is rejected without a message", func() {
			f.saveResult = model.SaveResult{Code: types.ResultError}
			So(w.UpdateScore("E1", 15), ShouldBeNil)
			_, _ = w.Submit(ctx)

			n, _ := notes.Last()
			So(n.Message, ShouldEqual, "Failed to save grades. Please try again.")
		})

		Convey("When the transport fails", func() {
			f.saveErr = errors.New("connection refused")
			So(w.UpdateScore("E1", 15), ShouldBeNil)
			_, err := w.Submit(ctx)

			So(errors.Is(err, grading.ErrSaveFailed), ShouldBeTrue)
			So(w.State().Dirty, ShouldEqual, 1)
			n, _ := notes.Last()
			So(n.Message, ShouldContainSubstring, "connection refused")
		})

		Convey("When rows are edited while the save is in flight", func() {
			gate := f.gate("save")
			So(w.UpdateScore("E1", 15), ShouldBeNil)

			type outcome struct {
				res model.SaveResult
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				res, err := w.Submit(ctx)
				done <- outcome{res, err}
			}()
			<-f.saveStarted

			So(w.CanSubmit(), ShouldBeFalse)
			_, err := w.Submit(ctx)
			So(errors.Is(err, grading.ErrSubmissionInFlight), ShouldBeTrue)
			So(w.State().Matrix, ShouldEqual, grading.Saving)

			_, err = w.EnterScore("E1", "18")
			So(err, ShouldBeNil)
			_, err = w.EnterScore("E2", "10")
			So(err, ShouldBeNil)
			close(gate)
			out := <-done

			Convey("Then only the submitted value is merged and later edits stay dirty", func() {
				So(out.err, ShouldBeNil)
				rows := w.RowViews()
				So(*rows[0].Row.Score, ShouldEqual, 15)
				So(rows[0].Row.Graded, ShouldBeTrue)
				So(*rows[0].Displayed, ShouldEqual, 18)
				So(rows[0].Dirty, ShouldBeTrue)
				So(rows[1].Dirty, ShouldBeTrue)
				So(w.State().Dirty, ShouldEqual, 2)
			})
		})

		Convey("When the evaluation changes while the save is in flight", func() {
			gate := f.gate("save")
			So(w.UpdateScore("E1", 15), ShouldBeNil)
			done := make(chan error, 1)
			go func() {
				_, err := w.Submit(ctx)
				done <- err
			}()
			<-f.saveStarted
			So(wait(w.SelectEvaluation(ctx, "ev-2")), ShouldBeNil)
			close(gate)

			Convey("Then the result is not merged into the new sheet", func() {
				So(<-done, ShouldBeNil)
				So(w.Evaluation(), ShouldEqual, "ev-2")
				So(w.RowViews()[0].Row.Graded, ShouldBeFalse)
				So(w.State().Matrix, ShouldEqual, grading.Loaded)
			})
		})
	})
}

func TestNotifiers(t *testing.T) {
	Convey("Given the notifier implementations", t, func() {
		ctx := context.Background()

		Convey("When the log notifier has no logger", func() {
			n := grading.LogNotifier{}
			So(func() { n.Notify(ctx, grading.Notification{Level: grading.LevelError, Message: "x"}) }, ShouldNotPanic)
		})

		Convey("When notifications are recorded", func() {
			rec := &grading.Notifications{}
			rec.Notify(ctx, grading.Notification{Level: grading.LevelInfo, Message: "a"})
			rec.Notify(ctx, grading.Notification{Level: grading.LevelSuccess, Message: "b"})

			So(len(rec.All()), ShouldEqual, 2)
			last, ok := rec.Last()
			So(ok, ShouldBeTrue)
			So(last.Message, ShouldEqual, "b")
			rec.Reset()
			_, ok = rec.Last()
			So(ok, ShouldBeFalse)
		})
	})
}
