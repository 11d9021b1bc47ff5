package grading_test

import (
	"testing"

	"github.com/okian/gradebook/internal/domain/grading"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidatorParse(t *testing.T) {
	Convey("Given a validator for max score 20", t, func() {
		v := grading.NewValidator(20)

		Convey("When the input is within range", func() {
			for raw, want := range map[string]float64{"15": 15, "0": 0, "20": 20, " 12.5 ": 12.5, "12,5": 12.5, ".5": 0.5} {
				in := v.Parse(raw)
				So(in.State, ShouldEqual, grading.InputValid)
				So(in.Value, ShouldEqual, want)
				So(in.Raw, ShouldEqual, raw)
			}
		})

		Convey("When the input is out of range or not numeric", func() {
			for _, raw := range []string{"25", "-1", "20.5", "abc", "NaN", "Inf", "1e1", "0x10", "1,2,3", "1.2,5"} {
				in := v.Parse(raw)
				So(in.State, ShouldEqual, grading.InputInvalid)
				So(in.Reason, ShouldNotBeEmpty)
				So(in.Valid(), ShouldBeFalse)
			}
		})

		Convey("When the input is blank", func() {
			in := v.Parse("   ")

			Convey("Then it is ungraded, not zero", func() {
				So(in.State, ShouldEqual, grading.InputUngraded)
				So(in.State.String(), ShouldEqual, "ungraded")
			})
		})

		Convey("When the value is off the 0.5 step", func() {
			in := v.Parse("12.3")

			Convey("Then it is accepted and flagged", func() {
				So(in.State, ShouldEqual, grading.InputValid)
				So(in.OffStep, ShouldBeTrue)
			})
		})
	})

	Convey("Given a strict-step validator", t, func() {
		v := grading.NewValidator(20, grading.WithStrictStep())

		So(v.Parse("12.3").State, ShouldEqual, grading.InputInvalid)
		So(v.Parse("12.5").State, ShouldEqual, grading.InputValid)
		So(v.Check(12.25), ShouldNotBeNil)
		So(v.Check(12), ShouldBeNil)
	})

	Convey("Given a validator with blank-as-zero", t, func() {
		v := grading.NewValidator(20, grading.WithBlankAsZero())
		in := v.Parse("")

		So(in.State, ShouldEqual, grading.InputValid)
		So(in.Value, ShouldEqual, 0)
	})

	Convey("Given a validator with a custom step", t, func() {
		v := grading.NewValidator(100, grading.WithStep(0.25), grading.WithStrictStep())

		So(v.Parse("99.75").State, ShouldEqual, grading.InputValid)
		So(v.Parse("99.8").State, ShouldEqual, grading.InputInvalid)
	})

	Convey("Given a validator without a usable max score", t, func() {
		v := grading.NewValidator(0)

		So(v.Parse("0").State, ShouldEqual, grading.InputInvalid)
		So(v.Max(), ShouldEqual, 0)
	})
}
