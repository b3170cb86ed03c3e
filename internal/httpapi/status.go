package httpapi

import (
	"net/http"
	"time"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	Ready  bool          `json:"ready"`
	Checks []statusCheck `json:"checks"`
}

// handleStatus lists which optional collaborators are wired. Everything is
// optional, so warnings never make the planner unready.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]statusCheck, 0, 4)

	store := statusCheck{ID: "task_store", Label: "Task storage"}
	if s.opts.StoreMode == "postgres" {
		store.Status = "pass"
		store.Detail = "Tasks persist to Postgres."
	} else {
		store.Status = "warn"
		store.Detail = "Tasks are kept in memory and lost on restart."
		store.Fix = "Set DATABASE_URL to persist tasks."
	}
	checks = append(checks, store)

	analyzer := statusCheck{ID: "wellness_analyzer", Label: "Wellness analyzer"}
	switch mode := s.service.AnalyzerMode(); mode {
	case "mock":
		analyzer.Status = "warn"
		analyzer.Detail = "Wellness analysis runs in demo mode."
		analyzer.Fix = "Set WELLNESS_AI_URL and WELLNESS_AI_API_KEY."
	default:
		analyzer.Status = "pass"
		analyzer.Detail = "Analyzer mode: " + mode + "."
	}
	checks = append(checks, analyzer)

	cache := statusCheck{ID: "wellness_cache", Label: "Wellness cache"}
	if s.cfg.WellnessCacheRedisAddr != "" {
		cache.Status = "pass"
		cache.Detail = "Results cached in Redis at " + s.cfg.WellnessCacheRedisAddr + "."
	} else {
		cache.Status = "warn"
		cache.Detail = "Every analysis calls the analyzer."
		cache.Fix = "Set WELLNESS_CACHE_REDIS_ADDR."
	}
	checks = append(checks, cache)

	calendar := statusCheck{ID: "calendar_sync", Label: "Google Calendar mirror"}
	if s.opts.CalendarSync {
		calendar.Status = "pass"
		calendar.Detail = "Mirroring tasks to calendar " + s.cfg.GoogleCalendarID + "."
	} else {
		calendar.Status = "warn"
		calendar.Detail = "Tasks are not mirrored."
		calendar.Fix = "Set GOOGLE_CALENDAR_ID and GOOGLE_CALENDAR_CREDENTIALS_FILE."
	}
	checks = append(checks, calendar)

	respondJSON(w, http.StatusOK, statusResponse{Ready: true, Checks: checks})
}

type settingsResponse struct {
	Timezone               string `json:"timezone"`
	EarliestHour           int    `json:"earliest_hour"`
	LatestHour             int    `json:"latest_hour"`
	SlotGranularityMinutes int    `json:"slot_granularity_minutes"`
	SearchHorizonDays      int    `json:"search_horizon_days"`
	DefaultDurationMinutes int    `json:"default_duration_minutes"`
}

// handleSettings exposes the planning window so clients can draw it.
func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, settingsResponse{
		Timezone:               s.service.Location().String(),
		EarliestHour:           s.cfg.EarliestHour,
		LatestHour:             s.cfg.LatestHour,
		SlotGranularityMinutes: int(s.cfg.SlotGranularity / time.Minute),
		SearchHorizonDays:      int(s.cfg.SearchHorizon / (24 * time.Hour)),
		DefaultDurationMinutes: s.cfg.DefaultDurationMinutes,
	})
}
