package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCurricula(w http.ResponseWriter, r *http.Request) {
	const op = "api.curricula"
	list, err := s.deps.Curricula(r.Context())
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, list)
}

func (s *Server) handleAcademicYears(w http.ResponseWriter, r *http.Request) {
	const op = "api.academic_years"
	list, err := s.deps.AcademicYears(r.Context())
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, list)
}

// handleSchedules serves GET /api/curricula/{curriculumID}/schedules?academic_year_id=.
func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedules"
	year := strings.TrimSpace(r.URL.Query().Get("academic_year_id"))
	if year == "" {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errMissing("academic_year_id")))
		return
	}
	list, err := s.deps.Schedules(r.Context(), chi.URLParam(r, "curriculumID"), year)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, list)
}

func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluations"
	list, err := s.deps.Evaluations(r.Context(), chi.URLParam(r, "scheduleID"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, list)
}

func (s *Server) handleAverages(w http.ResponseWriter, r *http.Request) {
	const op = "api.averages"
	list, err := s.deps.Averages(r.Context(), chi.URLParam(r, "scheduleID"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeData(w, list)
}
