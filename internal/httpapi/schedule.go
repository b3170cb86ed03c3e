package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/aiplanner/internal/tasks"
	"github.com/antoniostano/aiplanner/internal/wellness"
)

type taskRequest struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type autoPlanRequest struct {
	Name     string          `json:"name"`
	Duration json.RawMessage `json:"duration"`
}

type planTextRequest struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

type wellnessRequest struct {
	Tasks []wellness.Entry `json:"tasks"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.service.ScheduleView())
}

func (s *Server) handleAutoPlan(w http.ResponseWriter, r *http.Request) {
	var req autoPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	minutes := parseDurationMinutes(req.Duration, s.cfg.DefaultDurationMinutes)

	res, err := s.service.AutoPlan(r.Context(), req.Name, minutes)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"task":    res.Task,
		"message": res.Message,
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	name, iv, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	task, err := s.service.CreateTask(name, iv.Start, iv.End)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"status": "success", "task": task})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	name, iv, ok := s.decodeTask(w, r)
	if !ok {
		return
	}
	task, err := s.service.UpdateTask(id, name, iv.Start, iv.End)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "success", "task": task})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.service.DeleteTask(id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.service.ClearAll()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	loc := s.service.Location()
	reference, err := parseTimestamp("reference", req.Reference, loc)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	added, err := s.service.PlanText(r.Context(), req.Text, reference)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "success", "added": added})
}

// handleAnalyzeWellness always answers 200; analyzer failures travel in the
// result status.
func (s *Server) handleAnalyzeWellness(w http.ResponseWriter, r *http.Request) {
	var req wellnessRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	respondJSON(w, http.StatusOK, s.service.AnalyzeWellness(r.Context(), req.Tasks))
}

// decodeTask reads a full task body. Every field is required, the engine
// reports which one is missing.
func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (string, tasks.Interval, bool) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid json body")
		return "", tasks.Interval{}, false
	}
	loc := s.service.Location()
	start, err := parseTimestamp("start_time", req.StartTime, loc)
	if err != nil {
		s.respondServiceError(w, r, err)
		return "", tasks.Interval{}, false
	}
	end, err := parseTimestamp("end_time", req.EndTime, loc)
	if err != nil {
		s.respondServiceError(w, r, err)
		return "", tasks.Interval{}, false
	}
	return req.Name, tasks.Interval{Start: start, End: end}, true
}
