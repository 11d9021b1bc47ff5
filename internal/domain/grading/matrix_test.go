package grading_test

import (
	"errors"
	"testing"

	"github.com/okian/gradebook/internal/domain/grading"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func testSheet() model.Sheet {
	return model.Sheet{
		Evaluation: model.Evaluation{ID: "ev-1", ScheduleID: "s-1", Title: "Algebra", MaxScore: 20, Coefficient: 2},
		Students: []model.StudentRow{
			{EnrollmentID: "E1", StudentNumber: "S001", FirstName: "Amina", LastName: "Diallo"},
			{EnrollmentID: "E2", StudentNumber: "S002", FirstName: "Yann", LastName: "Koffi"},
			{EnrollmentID: "E3", StudentNumber: "S003", FirstName: "Lea", LastName: "Mensah", Graded: true, Score: model.Float(11)},
		},
	}
}

func TestMatrixLifecycle(t *testing.T) {
	Convey("Given a new matrix", t, func() {
		m := grading.NewMatrix()
		So(m.State(), ShouldEqual, grading.Unloaded)

		Convey("When a sheet is populated without Begin", func() {
			So(m.Populate(testSheet()), ShouldNotBeNil)
		})

		Convey("When a sheet for another evaluation arrives", func() {
			m.Begin("ev-2")
			err := m.Populate(testSheet())

			So(errors.Is(err, grading.ErrSheetMismatch), ShouldBeTrue)
			So(m.State(), ShouldEqual, grading.Loading)
		})

		Convey("When the sheet has a duplicate enrollment", func() {
			sheet := testSheet()
			sheet.Students = append(sheet.Students, model.StudentRow{EnrollmentID: "E1"})
			m.Begin("ev-1")

			So(errors.Is(m.Populate(sheet), grading.ErrDuplicateRow), ShouldBeTrue)
		})

		Convey("When the sheet evaluation has no max score", func() {
			sheet := testSheet()
			sheet.Evaluation.MaxScore = 0
			m.Begin("ev-1")

			So(errors.Is(m.Populate(sheet), model.ErrInvalidMaxScore), ShouldBeTrue)
		})

		Convey("When a valid sheet is populated", func() {
			m.Begin("ev-1")
			So(m.Populate(testSheet()), ShouldBeNil)

			Convey("Then the overlay is seeded from persisted scores", func() {
				So(m.State(), ShouldEqual, grading.Loaded)
				So(m.Overlay(), ShouldResemble, map[string]float64{"E3": 11})
				So(m.Dirty(), ShouldBeEmpty)
				s, ok := m.DisplayedScore("E3")
				So(ok, ShouldBeTrue)
				So(s, ShouldEqual, 11)
				_, ok = m.DisplayedScore("E1")
				So(ok, ShouldBeFalse)
			})

			Convey("Then UpdateScore touches only the overlay", func() {
				So(m.UpdateScore("E1", 15), ShouldBeNil)
				So(m.UpdateScore("E1", 15), ShouldBeNil)
				So(m.Dirty(), ShouldResemble, []string{"E1"})
				So(m.Rows()[0].Score, ShouldBeNil)
				s, _ := m.DisplayedScore("E1")
				So(s, ShouldEqual, 15)
			})

			Convey("Then out of range and unknown rows are rejected", func() {
				So(errors.Is(m.UpdateScore("E1", 21), grading.ErrScoreOutOfRange), ShouldBeTrue)
				So(errors.Is(m.UpdateScore("E9", 1), grading.ErrUnknownEnrollment), ShouldBeTrue)
				So(m.Dirty(), ShouldBeEmpty)
			})

			Convey("Then ClearScore restores the persisted value", func() {
				So(m.UpdateScore("E3", 19), ShouldBeNil)
				So(m.ClearScore("E3"), ShouldBeNil)
				s, _ := m.DisplayedScore("E3")
				So(s, ShouldEqual, 11)
				So(m.IsDirty("E3"), ShouldBeFalse)
			})

			Convey("Then Snapshot with nothing dirty fails", func() {
				_, err := m.Snapshot()
				So(errors.Is(err, grading.ErrNothingToSubmit), ShouldBeTrue)
			})

			Convey("Then Reset returns to unloaded", func() {
				m.Reset()
				So(m.State(), ShouldEqual, grading.Unloaded)
				So(m.Rows(), ShouldBeEmpty)
				_, ok := m.Evaluation()
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestMatrixSubmission(t *testing.T) {
	Convey("Given a loaded matrix with two dirty rows", t, func() {
		m := grading.NewMatrix()
		m.Begin("ev-1")
		So(m.Populate(testSheet()), ShouldBeNil)
		So(m.UpdateScore("E2", 18), ShouldBeNil)
		So(m.UpdateScore("E1", 15), ShouldBeNil)

		entries, err := m.Snapshot()
		So(err, ShouldBeNil)

		Convey("Then entries follow row order and carry SUBMITTED", func() {
			So(len(entries), ShouldEqual, 2)
			So(entries[0].EnrollmentCode, ShouldEqual, "E1")
			So(entries[0].Score, ShouldEqual, 15)
			So(entries[1].EnrollmentCode, ShouldEqual, "E2")
			So(entries[1].StatusCode, ShouldEqual, types.GradeSubmitted)
			So(m.State(), ShouldEqual, grading.Saving)
			So(m.InFlight(), ShouldEqual, 2)
		})

		Convey("When a second snapshot is attempted", func() {
			_, err := m.Snapshot()
			So(errors.Is(err, grading.ErrSubmissionInFlight), ShouldBeTrue)
		})

		Convey("When the save succeeds", func() {
			cleared := m.Commit()

			Convey("Then rows are merged and dirty keys cleared", func() {
				So(cleared, ShouldEqual, 2)
				So(m.Dirty(), ShouldBeEmpty)
				rows := m.Rows()
				So(*rows[0].Score, ShouldEqual, 15)
				So(rows[0].Graded, ShouldBeTrue)
				So(*rows[1].Score, ShouldEqual, 18)
				So(rows[1].Graded, ShouldBeTrue)
				So(m.State(), ShouldEqual, grading.Loaded)
			})
		})

		Convey("When a row is edited again before the save succeeds", func() {
			So(m.UpdateScore("E1", 16), ShouldBeNil)
			So(m.UpdateScore("E3", 12), ShouldBeNil)
			m.Commit()

			Convey("Then edits made after the snapshot stay dirty", func() {
				So(m.Dirty(), ShouldResemble, []string{"E1", "E3"})
				So(*m.Rows()[0].Score, ShouldEqual, 15)
				s, _ := m.DisplayedScore("E1")
				So(s, ShouldEqual, 16)
			})
		})

		Convey("When a submitted row is cleared before the save succeeds", func() {
			So(m.ClearScore("E2"), ShouldBeNil)
			m.Commit()

			Convey("Then the saved value is displayed", func() {
				s, ok := m.DisplayedScore("E2")
				So(ok, ShouldBeTrue)
				So(s, ShouldEqual, 18)
				So(m.IsDirty("E2"), ShouldBeFalse)
			})
		})

		Convey("When the save fails", func() {
			m.Abort()

			Convey("Then overlay and dirty set are unchanged", func() {
				So(m.Dirty(), ShouldResemble, []string{"E1", "E2"})
				So(m.Rows()[0].Graded, ShouldBeFalse)
				So(m.State(), ShouldEqual, grading.Loaded)
				So(m.InFlight(), ShouldEqual, 0)
			})
		})
	})
}
