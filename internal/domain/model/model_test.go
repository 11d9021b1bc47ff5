package model_test

import (
	"errors"
	"math"
	"testing"

	model "github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func TestEvaluationValidate(t *testing.T) {
	convey.Convey("Given an evaluation", t, func() {
		ev := model.Evaluation{ID: "ev-1", MaxScore: 20, Coefficient: 2}

		convey.Convey("When max score and coefficient are positive", func() {
			convey.So(ev.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When max score is zero, negative or not finite", func() {
			for _, v := range []float64{0, -1, math.Inf(1), math.NaN()} {
				ev.MaxScore = v
				convey.So(errors.Is(ev.Validate(), model.ErrInvalidMaxScore), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the coefficient is zero", func() {
			ev.Coefficient = 0
			convey.So(errors.Is(ev.Validate(), model.ErrInvalidCoefficient), convey.ShouldBeTrue)
		})

		convey.Convey("When the id is blank", func() {
			ev.ID = " "
			convey.So(errors.Is(ev.Validate(), model.ErrMissingID), convey.ShouldBeTrue)
		})
	})
}

func TestSheet(t *testing.T) {
	convey.Convey("Given a sheet with two rows", t, func() {
		sheet := model.Sheet{
			Evaluation: model.Evaluation{ID: "ev-1", MaxScore: 20, Coefficient: 1},
			Students: []model.StudentRow{
				{EnrollmentID: "E1", FirstName: "Amina", LastName: "Diallo", Score: model.Float(12), Graded: true},
				{EnrollmentID: "E2", FirstName: "Yann", LastName: "Koffi"},
			},
		}

		convey.Convey("When looking up an existing row", func() {
			row, ok := sheet.Row("E1")

			convey.Convey("Then it is returned", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(*row.Score, convey.ShouldEqual, 12)
				convey.So(row.FullName(), convey.ShouldEqual, "Diallo Amina")
			})
		})

		convey.Convey("When looking up a missing row", func() {
			_, ok := sheet.Row("E9")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}

func TestSaveResult(t *testing.T) {
	convey.Convey("Given save results", t, func() {
		convey.So(model.Saved(2).OK(), convey.ShouldBeTrue)
		convey.So(model.Saved(2).Saved, convey.ShouldEqual, 2)

		r := model.Rejected("Network timeout")
		convey.So(r.OK(), convey.ShouldBeFalse)
		convey.So(r.Code, convey.ShouldEqual, types.ResultError)
		convey.So(r.Error, convey.ShouldEqual, "Network timeout")
		convey.So(model.SaveResult{}.OK(), convey.ShouldBeFalse)
	})
}
