package gradeentry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReadScores(t *testing.T) {
	Convey("Given comma separated scores with a header and a comment", t, func() {
		in := "enrollment_code,score\n# late submissions\nen-1,15.5\n\nen-2, 12\nen-3\n"
		lines, err := ReadScores(strings.NewReader(in))

		Convey("Then the header and comment are skipped and line numbers kept", func() {
			So(err, ShouldBeNil)
			So(lines, ShouldResemble, []ScoreLine{
				{Line: 3, Key: "en-1", Raw: "15.5"},
				{Line: 5, Key: "en-2", Raw: "12"},
				{Line: 6, Key: "en-3", Raw: ""},
			})
		})
	})

	Convey("Given semicolon separated scores with decimal commas", t, func() {
		lines, err := ReadScores(strings.NewReader("S001;14,5\nS002;abc\n"))

		Convey("Then the score text is kept as typed", func() {
			So(err, ShouldBeNil)
			So(len(lines), ShouldEqual, 2)
			So(lines[0].Raw, ShouldEqual, "14,5")
			So(lines[1].Raw, ShouldEqual, "abc")
		})
	})

	Convey("Given a line with a score but no key", t, func() {
		_, err := ReadScores(strings.NewReader("en-1,10\n,12\n"))

		Convey("Then it is reported with its line", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "line 2")
		})
	})

	Convey("Given an unterminated quote", t, func() {
		_, err := ReadScores(strings.NewReader("\"en-1,10\n"))

		Convey("Then parsing fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReadScoresFile(t *testing.T) {
	dir := t.TempDir()

	Convey("Given a CSV file", t, func() {
		path := filepath.Join(dir, "quiz.csv")
		So(os.WriteFile(path, []byte("en-1,9\n"), 0o600), ShouldBeNil)

		lines, err := ReadScoresFile(path)
		So(err, ShouldBeNil)
		So(lines, ShouldResemble, []ScoreLine{{Line: 1, Key: "en-1", Raw: "9"}})
	})

	Convey("Given an exported workbook", t, func() {
		path := filepath.Join(dir, "quiz.xlsx")
		f, err := os.Create(path)
		So(err, ShouldBeNil)
		sheet := model.Sheet{
			Evaluation: model.Evaluation{ID: "ev-1", Title: "Quiz", MaxScore: 20, Coefficient: 1},
			Students: []model.StudentRow{
				{EnrollmentID: "en-1", StudentNumber: "S001", FirstName: "Zoe", LastName: "Adams", Graded: true, Score: model.Float(11)},
			},
		}
		So(export.WriteSheet(f, sheet, nil), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("Then rows are keyed by student number", func() {
			lines, err := ReadScoresFile(path)
			So(err, ShouldBeNil)
			So(lines, ShouldResemble, []ScoreLine{{Line: 2, Key: "S001", Raw: "11"}})
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := ReadScoresFile(filepath.Join(dir, "missing.csv"))
		So(err, ShouldNotBeNil)
	})
}
