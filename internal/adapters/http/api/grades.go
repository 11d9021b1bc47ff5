package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/pkg/logger"
)

// maxSaveBody bounds a save request body.
const maxSaveBody = 1 << 20

// saveGradesRequest is the body of POST /api/evaluations/{evaluationID}/grades.
type saveGradesRequest struct {
	Grades []model.GradeEntry `json:"grades" validate:"dive"`
}

type saveGradesResponse struct {
	Saved    int  `json:"saved"`
	Replayed bool `json:"replayed"`
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	const op = "api.sheet"
	sheet, err := s.deps.Sheet(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, sheet)
}

func (s *Server) handleSheetXLSX(w http.ResponseWriter, r *http.Request) {
	const op = "api.sheet_xlsx"
	id := chi.URLParam(r, "evaluationID")
	sheet, err := s.deps.Sheet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	var stats *model.EvaluationStatistics
	if st, err := s.deps.Statistics(r.Context(), id); err == nil {
		stats = &st
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(sheet)))
	if err := export.WriteSheet(w, sheet, stats); err != nil {
		// headers are gone; log only
		s.logger.Error(r.Context(), "write workbook failed", logger.Error(Wrap(op, err)))
	}
}

func (s *Server) handleSaveGrades(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_grades"
	var req saveGradesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSaveBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid body: %w", err)))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, validationError(err)))
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	res, err := s.deps.SaveGrades(r.Context(), chi.URLParam(r, "evaluationID"), key, req.Grades)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if !res.OK() {
		s.writeError(w, r, WrapKind(op, ErrUnprocessable, errors.New(res.Error)))
		return
	}
	writeData(w, saveGradesResponse{Saved: res.Saved, Replayed: res.Replayed})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	const op = "api.statistics"
	st, err := s.deps.Statistics(r.Context(), chi.URLParam(r, "evaluationID"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, st)
}

// validationError names the first failing field, e.g. "grades[1].enrollment_code is required".
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return fmt.Errorf("%s is %s", field, fe.Tag())
}
