// Package api exposes the gradebook over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IdempotencyHeader carries the client key that makes a save replay-safe.
const IdempotencyHeader = "Idempotency-Key"

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Curricula(ctx context.Context) ([]model.Curriculum, error)
	AcademicYears(ctx context.Context) ([]model.AcademicYear, error)
	Schedules(ctx context.Context, curriculumID, academicYearID string) ([]model.Schedule, error)
	Evaluations(ctx context.Context, scheduleID string) ([]model.Evaluation, error)
	Sheet(ctx context.Context, evaluationID string) (model.Sheet, error)
	// SaveGrades persists a batch. An empty key disables replay detection.
	SaveGrades(ctx context.Context, evaluationID, idempotencyKey string, entries []model.GradeEntry) (model.SaveResult, error)
	Statistics(ctx context.Context, evaluationID string) (model.EvaluationStatistics, error)
	Averages(ctx context.Context, scheduleID string) ([]model.StudentAverage, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires HTTP routes for the gradebook API.
type Server struct {
	deps     Dependencies
	stats    StatsProvider
	validate *validator.Validate
	logger   logger.Logger

	requestTimeout time.Duration
	allowedOrigins []string
	extra          []func(chi.Router)
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		stats:          stats,
		validate:       newValidator(),
		logger:         logger.OrNop().Named("api"),
		requestTimeout: 15 * time.Second,
		allowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", IdempotencyHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(Metrics)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", s.handleStats)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))

		r.Get("/curricula", s.handleCurricula)
		r.Get("/academic-years", s.handleAcademicYears)
		r.Get("/curricula/{curriculumID}/schedules", s.handleSchedules)
		r.Get("/schedules/{scheduleID}/evaluations", s.handleEvaluations)
		r.Get("/schedules/{scheduleID}/averages", s.handleAverages)

		r.Route("/evaluations/{evaluationID}", func(r chi.Router) {
			r.Get("/sheet", s.handleSheet)
			r.Get("/sheet.xlsx", s.handleSheetXLSX)
			r.Post("/grades", s.handleSaveGrades)
			r.Get("/statistics", s.handleStatistics)
		})
	})

	for _, register := range s.extra {
		register(r)
	}
	return r
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// envelope is the response shape shared by every /api route.
type envelope struct {
	Code  types.ResultCode `json:"code"`
	Data  any              `json:"data,omitempty"`
	Error string           `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: types.ResultSuccess, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeJSON(w, status, envelope{Code: types.ResultError, Error: message(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
