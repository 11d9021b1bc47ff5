package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When Init is called", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Initialized(), ShouldBeTrue)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When an unknown format is requested", func() {
			err := InitWithWriter(&bytes.Buffer{}, "xml")

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the writer is nil", func() {
			So(InitWithWriter(nil, FormatText), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, FormatJSON), ShouldBeNil)
		So(SetLevelString("info"), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging with fields", func() {
			Named("grading").Info(context.Background(), "grades saved",
				String("evaluation", "ev-1"),
				Int("entries", 2),
				Bool("partial", false),
				Duration("took", 150*time.Millisecond),
			)

			Convey("Then the record carries fields, name and source", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "grades saved")
				So(rec["evaluation"], ShouldEqual, "ev-1")
				So(rec["entries"], ShouldEqual, float64(2))
				So(rec["partial"], ShouldEqual, false)
				So(rec["took"], ShouldEqual, "150ms")
				So(rec["logger"], ShouldEqual, "grading")
				So(rec["source"], ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When the level filters a message", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", "", "warning", " error "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		SetLevel(slog.LevelInfo)
	})
}

func TestNop(t *testing.T) {
	Convey("Given the nop logger", t, func() {
		l := Nop()

		Convey("Then logging does not panic", func() {
			So(func() { l.Error(context.Background(), "dropped", Error(context.Canceled)) }, ShouldNotPanic)
			So(l.Named("x"), ShouldNotBeNil)
		})
	})
}
