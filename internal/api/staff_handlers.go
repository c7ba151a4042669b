package api

import (
	"net/http"
	"strings"

	"gymbody/internal/incidents"
	"gymbody/internal/models"
)

type incidentRequest struct {
	Category models.IncidentCategory `json:"category" validate:"required,oneof=Equipment Member Injury Cleaning"`
	Title    string                  `json:"title" validate:"required,max=120"`
	Text     string                  `json:"text" validate:"required,max=2000"`
}

type noteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type resolveRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

type trainerStatusRequest struct {
	Name   string               `json:"name" validate:"required,max=80"`
	Date   string               `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status models.TrainerStatus `json:"status" validate:"required,oneof=on-time late absent"`
}

type substituteRequest struct {
	Substitute string `json:"substitute" validate:"required,max=80"`
}

func (s *HTTPServer) handleIncidents(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()
	list, err := s.svc.Incidents.List(r.Context(), user, q.Get("q"), models.IncidentCategory(strings.TrimSpace(q.Get("category"))))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": list})
}

func (s *HTTPServer) handleIncident(w http.ResponseWriter, r *http.Request, user models.User) {
	inc, err := s.svc.Incidents.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (s *HTTPServer) handleLogIncident(w http.ResponseWriter, r *http.Request, user models.User) {
	var req incidentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inc, err := s.svc.Incidents.Log(r.Context(), user, incidents.Entry{Category: req.Category, Title: req.Title, Text: req.Text})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"incident": inc})
}

func (s *HTTPServer) handleIncidentNote(w http.ResponseWriter, r *http.Request, user models.User) {
	var req noteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inc, err := s.svc.Incidents.AddNote(r.Context(), user, r.PathValue("id"), req.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (s *HTTPServer) handleResolveIncident(w http.ResponseWriter, r *http.Request, user models.User) {
	var req resolveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inc, err := s.svc.Incidents.Resolve(r.Context(), user, r.PathValue("id"), req.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (s *HTTPServer) handleTrainers(w http.ResponseWriter, r *http.Request, user models.User) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	roster, err := s.svc.Trainers.Roster(r.Context(), user, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trainers": roster})
}

func (s *HTTPServer) handleTrainerStatus(w http.ResponseWriter, r *http.Request, user models.User) {
	var req trainerStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.svc.Trainers.SetStatus(r.Context(), user, req.Date, req.Name, req.Status); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": req.Name, "status": req.Status})
}

func (s *HTTPServer) handleSubstitute(w http.ResponseWriter, r *http.Request, user models.User) {
	var req substituteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := s.svc.Trainers.AssignSubstitute(r.Context(), user, r.PathValue("id"), req.Substitute)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleAnalytics(w http.ResponseWriter, r *http.Request, user models.User) {
	q := r.URL.Query()
	report, err := s.svc.Analytics.Report(r.Context(), user, strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
