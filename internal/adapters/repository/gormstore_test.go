package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
	gormlogger "gorm.io/gorm/logger"
)

// testDSNEnv names a disposable postgres database. Its tables are dropped.
const testDSNEnv = "GRADEBOOK_TEST_DATABASE_URL"

func openTestGormStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()
	s, err := NewGormStore(ctx, dsn, WithSQLLogLevel(gormlogger.Silent), WithMaxOpenConns(4))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.db.Migrator().DropTable(allRecords()...); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
	if err := s.db.AutoMigrate(allRecords()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewGormStoreEmptyDSN(t *testing.T) {
	Convey("Given an empty database url", t, func() {
		_, err := NewGormStore(context.Background(), "  ")

		Convey("Then ErrEmptyDSN is returned", func() {
			So(errors.Is(err, ErrEmptyDSN), ShouldBeTrue)
		})
	})
}

func TestGormStore(t *testing.T) {
	s := openTestGormStore(t)

	Convey("Given a postgres store loaded with the fixture", t, func() {
		ctx := context.Background()
		So(s.Load(ctx, fixture()), ShouldBeNil)

		Convey("Then queries match the in-memory store", func() {
			scheds, err := s.Schedules(ctx, "cur-1", "ay-2")
			So(err, ShouldBeNil)
			So(len(scheds), ShouldEqual, 2)
			So(scheds[0].ID, ShouldEqual, "sc-1")

			evs, err := s.Evaluations(ctx, "sc-1")
			So(err, ShouldBeNil)
			So(evs[0].ID, ShouldEqual, "ev-1")

			_, err = s.Evaluations(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			sheet, err := s.Sheet(ctx, "ev-1")
			So(err, ShouldBeNil)
			So(len(sheet.Students), ShouldEqual, 3)
			So(sheet.Students[0].EnrollmentID, ShouldEqual, "en-4")
			row, _ := sheet.Row("en-2")
			So(*row.Score, ShouldEqual, 14.5)
		})

		Convey("When grades are saved twice", func() {
			entries := []model.GradeEntry{{EnrollmentCode: "en-1", Score: 9, StatusCode: types.GradeSubmitted}}
			res, err := s.SaveGrades(ctx, "ev-1", entries)
			So(err, ShouldBeNil)
			So(res.OK(), ShouldBeTrue)
			entries[0].Score = 11
			res, err = s.SaveGrades(ctx, "ev-1", entries)
			So(err, ShouldBeNil)
			So(res.OK(), ShouldBeTrue)

			Convey("Then the last value wins", func() {
				sheet, _ := s.Sheet(ctx, "ev-1")
				row, _ := sheet.Row("en-1")
				So(*row.Score, ShouldEqual, 11)
			})
		})

		Convey("When an invalid batch is saved", func() {
			res, err := s.SaveGrades(ctx, "ev-1", []model.GradeEntry{{EnrollmentCode: "en-3", Score: 1, StatusCode: types.GradeSubmitted}})

			Convey("Then it is rejected", func() {
				So(err, ShouldBeNil)
				So(res.OK(), ShouldBeFalse)
			})
		})

		Convey("When statistics are stored twice", func() {
			So(s.PutStatistics(ctx, model.EvaluationStatistics{EvaluationID: "ev-1", Mean: 1}), ShouldBeNil)
			So(s.PutStatistics(ctx, model.EvaluationStatistics{EvaluationID: "ev-1", Mean: 2}), ShouldBeNil)

			Convey("Then the latest is returned", func() {
				st, err := s.Statistics(ctx, "ev-1")
				So(err, ShouldBeNil)
				So(st.Mean, ShouldEqual, 2)
			})
		})
	})
}
