package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/okian/gradebook/pkg/metrics"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore is a Store backed by postgres through gorm.
type GormStore struct {
	db              *gorm.DB
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	autoMigrate     bool
	logLevel        gormlogger.LogLevel
}

// NewGormStore connects to dsn and migrates the schema.
func NewGormStore(ctx context.Context, dsn string, opts ...GormOption) (*GormStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	s := newGormStore(opts)
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(s.logLevel)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxIdleConns)
	sqlDB.SetConnMaxLifetime(s.connMaxLifetime)

	return s.attach(ctx, db)
}

// NewGormStoreWithDB wraps an already opened gorm handle.
func NewGormStoreWithDB(ctx context.Context, db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	return newGormStore(opts).attach(ctx, db)
}

func newGormStore(opts []GormOption) *GormStore {
	s := &GormStore{
		maxOpenConns:    20,
		maxIdleConns:    5,
		connMaxLifetime: 30 * time.Minute,
		autoMigrate:     true,
		logLevel:        gormlogger.Warn,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GormStore) attach(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	s.db = db
	if s.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(allRecords()...); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

// Curricula implements Store.
func (s *GormStore) Curricula(ctx context.Context) ([]model.Curriculum, error) {
	var recs []curriculumRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list curricula: %w", err)
	}
	out := make([]model.Curriculum, len(recs))
	for i, r := range recs {
		out[i] = model.Curriculum{ID: r.ID, Name: r.Name}
	}
	return out, nil
}

// AcademicYears implements Store.
func (s *GormStore) AcademicYears(ctx context.Context) ([]model.AcademicYear, error) {
	var recs []academicYearRecord
	if err := s.db.WithContext(ctx).Order("start_date DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	out := make([]model.AcademicYear, len(recs))
	for i, r := range recs {
		out[i] = model.AcademicYear(r)
	}
	return out, nil
}

// Schedules implements Store.
func (s *GormStore) Schedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error) {
	var recs []scheduleRecord
	err := s.db.WithContext(ctx).
		Where("curriculum_id = ? AND academic_year_id = ?", curriculumID, academicYearID).
		Order("start_date, name").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := make([]model.Schedule, len(recs))
	for i, r := range recs {
		out[i] = r.model()
	}
	return out, nil
}

// Evaluations implements Store.
func (s *GormStore) Evaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error) {
	db := s.db.WithContext(ctx)
	var sc scheduleRecord
	if err := db.First(&sc, "id = ?", scheduleID).Error; err != nil {
		return nil, wrapNotFound(err, "schedule", scheduleID)
	}
	var recs []evaluationRecord
	if err := db.Where("schedule_id = ?", scheduleID).Order("date, title").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	out := make([]model.Evaluation, len(recs))
	for i, r := range recs {
		out[i] = r.model()
	}
	return out, nil
}

// Sheet implements Store.
func (s *GormStore) Sheet(ctx context.Context, evaluationID string) (model.Sheet, error) {
	return sheetTx(s.db.WithContext(ctx), evaluationID)
}

type rosterRow struct {
	EnrollmentID  string
	StudentNumber string
	FirstName     string
	LastName      string
}

func sheetTx(db *gorm.DB, evaluationID string) (model.Sheet, error) {
	var ev evaluationRecord
	if err := db.First(&ev, "id = ?", evaluationID).Error; err != nil {
		return model.Sheet{}, wrapNotFound(err, "evaluation", evaluationID)
	}
	var sc scheduleRecord
	if err := db.First(&sc, "id = ?", ev.ScheduleID).Error; err != nil {
		return model.Sheet{}, wrapNotFound(err, "schedule", ev.ScheduleID)
	}

	var roster []rosterRow
	err := db.Table("enrollments").
		Select("enrollments.id AS enrollment_id, students.student_number, students.first_name, students.last_name").
		Joins("JOIN students ON students.id = enrollments.student_id").
		Where("enrollments.curriculum_id = ? AND enrollments.academic_year_id = ?", sc.CurriculumID, sc.AcademicYearID).
		Scan(&roster).Error
	if err != nil {
		return model.Sheet{}, fmt.Errorf("load roster: %w", err)
	}

	var grades []gradeRecord
	if err := db.Where("evaluation_id = ?", evaluationID).Find(&grades).Error; err != nil {
		return model.Sheet{}, fmt.Errorf("load grades: %w", err)
	}
	byEnrollment := make(map[string]gradeRecord, len(grades))
	for _, g := range grades {
		byEnrollment[g.EnrollmentID] = g
	}

	rows := make([]model.StudentRow, 0, len(roster))
	for _, r := range roster {
		row := model.StudentRow{
			EnrollmentID:  r.EnrollmentID,
			StudentNumber: r.StudentNumber,
			FirstName:     r.FirstName,
			LastName:      r.LastName,
		}
		if g, ok := byEnrollment[r.EnrollmentID]; ok {
			row.Graded = true
			row.Score = model.Float(g.Score)
			row.Status = types.ParseGradeStatus(g.Status)
			row.Comments = g.Comments
		}
		rows = append(rows, row)
	}
	sortRows(rows)
	return model.Sheet{Evaluation: ev.model(), Students: rows}, nil
}

// SaveGrades implements Store. The batch is validated and upserted in one
// transaction.
func (s *GormStore) SaveGrades(ctx context.Context, evaluationID string, entries []model.GradeEntry) (model.SaveResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSaveLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var result model.SaveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sheet, err := sheetTx(tx, evaluationID)
		if errors.Is(err, ErrNotFound) {
			result = model.Rejected(err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		if msg := checkBatch(sheet, entries); msg != "" {
			result = model.Rejected(msg)
			return nil
		}

		now := time.Now().UTC()
		recs := make([]gradeRecord, len(entries))
		for i, e := range entries {
			recs[i] = gradeRecord{
				EvaluationID: evaluationID,
				EnrollmentID: e.EnrollmentCode,
				Score:        e.Score,
				Status:       e.StatusCode.String(),
				Comments:     e.Comments,
				UpdatedAt:    now,
			}
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "evaluation_id"}, {Name: "enrollment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "status", "comments", "updated_at"}),
		}).Create(&recs).Error
		if err != nil {
			return fmt.Errorf("upsert grades: %w", err)
		}
		result = model.Saved(len(entries))
		return nil
	})
	if err != nil {
		metrics.RecordGradeBatch("error", len(entries))
		metrics.RecordErrorByComponent("repository", "save_failed")
		return model.SaveResult{}, err
	}
	if result.OK() {
		metrics.RecordGradeBatch("success", len(entries))
	} else {
		metrics.RecordGradeBatch("rejected", len(entries))
	}
	return result, nil
}

// PutStatistics implements Store.
func (s *GormStore) PutStatistics(ctx context.Context, stats model.EvaluationStatistics) error {
	rec := toStatisticsRecord(stats)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "evaluation_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put statistics: %w", err)
	}
	return nil
}

// Statistics implements Store.
func (s *GormStore) Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error) {
	var rec statisticsRecord
	if err := s.db.WithContext(ctx).First(&rec, "evaluation_id = ?", evaluationID).Error; err != nil {
		return model.EvaluationStatistics{}, wrapNotFound(err, "statistics", evaluationID)
	}
	return rec.model(), nil
}

// Load implements Store. Rows whose primary key already exists are skipped.
func (s *GormStore) Load(ctx context.Context, ds Dataset) error {
	db := s.db.WithContext(ctx)
	known := func(kind, id string) bool {
		table := kind + "s"
		switch kind {
		case "curriculum":
			table = "curricula"
		case "academic_year":
			table = "academic_years"
		}
		var n int64
		return db.Table(table).Where("id = ?", id).Count(&n).Error == nil && n > 0
	}
	if err := checkDataset(ds, known); err != nil {
		return err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return firstErr(
			insertNew(tx, mapSlice(ds.Curricula, func(c model.Curriculum) curriculumRecord {
				return curriculumRecord{ID: c.ID, Name: c.Name}
			})),
			insertNew(tx, mapSlice(ds.AcademicYears, func(y model.AcademicYear) academicYearRecord {
				return academicYearRecord(y)
			})),
			insertNew(tx, mapSlice(ds.Schedules, func(sc model.Schedule) scheduleRecord {
				return scheduleRecord{ID: sc.ID, CurriculumID: sc.CurriculumID, AcademicYearID: sc.AcademicYearID,
					Name: sc.Name, StartDate: sc.StartDate, EndDate: sc.EndDate, Status: sc.Status.String()}
			})),
			insertNew(tx, mapSlice(ds.Evaluations, func(ev model.Evaluation) evaluationRecord {
				return evaluationRecord{ID: ev.ID, ScheduleID: ev.ScheduleID, Title: ev.Title, MaxScore: ev.MaxScore,
					Coefficient: ev.Coefficient, Status: ev.Status.String(), Date: ev.Date}
			})),
			insertNew(tx, mapSlice(ds.Students, func(st Student) studentRecord { return studentRecord(st) })),
			insertNew(tx, mapSlice(ds.Enrollments, func(en Enrollment) enrollmentRecord { return enrollmentRecord(en) })),
			insertNew(tx, mapSlice(ds.Grades, func(g Grade) gradeRecord {
				return gradeRecord{EvaluationID: g.EvaluationID, EnrollmentID: g.EnrollmentID, Score: g.Score,
					Status: g.Status, Comments: g.Comments}
			})),
		)
	})
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	metrics.UpdateEvaluationsTracked(s.Count(ctx))
	return nil
}

// insertNew inserts recs, skipping rows whose key already exists. Each call
// starts a fresh statement so clauses do not leak between tables.
func insertNew[T any](tx *gorm.DB, recs []T) func() error {
	return func() error {
		if len(recs) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(recs, 500).Error
	}
}

func firstErr(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// Count implements Store.
func (s *GormStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&evaluationRecord{}).Count(&n).Error; err != nil {
		return 0
	}
	return int(n)
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return notFound(kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
