package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/planning"
	"github.com/antoniostano/aiplanner/internal/tasks"
)

type noSlotResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	Horizon         string `json:"horizon"`
	DurationMinutes int    `json:"duration_minutes"`
}

// respondServiceError maps engine errors onto status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var noSlot *planning.NoSlotAvailableError
	switch {
	case errors.As(err, &noSlot):
		respondJSON(w, http.StatusConflict, noSlotResponse{
			Error:           err.Error(),
			Code:            "no_slot_available",
			Horizon:         noSlot.Horizon.String(),
			DurationMinutes: int(noSlot.Duration / time.Minute),
		})
	case errors.Is(err, tasks.ErrInvalidTask):
		respondError(w, http.StatusBadRequest, "invalid_task", err.Error())
	case errors.Is(err, tasks.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request_cancelled", err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
