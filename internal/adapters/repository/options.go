package repository

import (
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// GormOption applies a configuration option to the GormStore.
type GormOption func(*GormStore)

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) GormOption {
	return func(s *GormStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets how many idle connections are kept.
func WithMaxIdleConns(n int) GormOption {
	return func(s *GormStore) {
		if n >= 0 {
			s.maxIdleConns = n
		}
	}
}

// WithConnMaxLifetime recycles connections older than d.
func WithConnMaxLifetime(d time.Duration) GormOption {
	return func(s *GormStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithAutoMigrate toggles schema migration on start.
func WithAutoMigrate(enabled bool) GormOption {
	return func(s *GormStore) {
		s.autoMigrate = enabled
	}
}

// WithSQLLogLevel sets the gorm logger level.
func WithSQLLogLevel(level gormlogger.LogLevel) GormOption {
	return func(s *GormStore) {
		s.logLevel = level
	}
}
