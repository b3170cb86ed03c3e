package httpapi

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/config"
	"github.com/antoniostano/aiplanner/internal/observability"
	"github.com/antoniostano/aiplanner/internal/planning"
	"github.com/antoniostano/aiplanner/internal/scheduling"
	"github.com/antoniostano/aiplanner/internal/tasks"
	"github.com/antoniostano/aiplanner/internal/wellness"
)

var clock = time.Date(2025, 3, 10, 8, 50, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*scheduling.Options)) *httptest.Server {
	t.Helper()
	opts := scheduling.DefaultOptions()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return clock }
	if mutate != nil {
		mutate(&opts)
	}
	metrics := observability.NewMetrics("test_httpapi", prometheus.NewRegistry())
	svc, err := scheduling.NewService(tasks.NewManager(), wellness.NewMockAnalyzer(), opts, metrics, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	cfg := config.Config{
		EarliestHour:           opts.Slots.EarliestHour,
		LatestHour:             opts.Slots.LatestHour,
		SearchHorizon:          opts.Slots.Horizon,
		SlotGranularity:        opts.Slots.Granularity,
		DefaultDurationMinutes: 60,
	}
	srv := New(cfg, svc, Options{StoreMode: "in-memory"}, metrics, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s response: %v", method, url, err)
	}
	return res.StatusCode, out
}

func taskField(t *testing.T, payload map[string]any, key string) any {
	t.Helper()
	task, ok := payload["task"].(map[string]any)
	if !ok {
		t.Fatalf("missing task in response: %+v", payload)
	}
	return task[key]
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	status, created := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]string{
		"name":       "Write report",
		"start_time": "2025-03-10T09:00",
		"end_time":   "2025-03-10T10:30",
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (%+v)", status, http.StatusCreated, created)
	}
	id, _ := taskField(t, created, "id").(string)
	if id == "" {
		t.Fatalf("missing task id in create response: %+v", created)
	}
	if got := taskField(t, created, "duration_minutes"); got != float64(90) {
		t.Fatalf("duration_minutes = %v, want 90", got)
	}

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]string{
		"name":       "Standup",
		"start_time": "2025-03-10T10:00:00Z",
		"end_time":   "2025-03-10T10:15:00Z",
	})
	if status != http.StatusCreated {
		t.Fatalf("second create status = %d, want %d", status, http.StatusCreated)
	}

	status, view := doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	if status != http.StatusOK {
		t.Fatalf("schedule status = %d, want %d", status, http.StatusOK)
	}
	conflicts, _ := view["conflicts"].([]any)
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want one", view["conflicts"])
	}
	msg, _ := conflicts[0].(map[string]any)["message"].(string)
	if msg != "Write report overlaps with Standup" {
		t.Fatalf("conflict message = %q", msg)
	}

	status, updated := doJSON(t, http.MethodPut, ts.URL+"/api/tasks/"+id, map[string]string{
		"name":       "Write report",
		"start_time": "2025-03-10T08:00",
		"end_time":   "2025-03-10T09:30",
	})
	if status != http.StatusOK {
		t.Fatalf("update status = %d, want %d (%+v)", status, http.StatusOK, updated)
	}
	_, view = doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	if conflicts, _ := view["conflicts"].([]any); len(conflicts) != 0 {
		t.Fatalf("conflicts after update = %+v, want none", conflicts)
	}

	status, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/tasks/"+id, nil)
	if status != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", status, http.StatusOK)
	}
	status, missing := doJSON(t, http.MethodDelete, ts.URL+"/api/tasks/"+id, nil)
	if status != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want %d", status, http.StatusNotFound)
	}
	if missing["code"] != "task_not_found" {
		t.Fatalf("repeat delete code = %v, want task_not_found", missing["code"])
	}

	status, cleared := doJSON(t, http.MethodPost, ts.URL+"/api/clear", nil)
	if status != http.StatusOK || cleared["status"] != "cleared" {
		t.Fatalf("clear = %d %+v, want 200 cleared", status, cleared)
	}
	_, view = doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	if list, _ := view["tasks"].([]any); len(list) != 0 {
		t.Fatalf("tasks after clear = %+v, want none", list)
	}
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		name string
		body any
		code string
	}{
		{name: "malformed json", body: "{", code: "invalid_request"},
		{name: "bad timestamp", body: map[string]string{"name": "x", "start_time": "tomorrow", "end_time": "2025-03-10T10:00"}, code: "invalid_task"},
		{name: "end before start", body: map[string]string{"name": "x", "start_time": "2025-03-10T10:00", "end_time": "2025-03-10T09:00"}, code: "invalid_task"},
		{name: "blank name", body: map[string]string{"name": "  ", "start_time": "2025-03-10T09:00", "end_time": "2025-03-10T10:00"}, code: "invalid_task"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", tc.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", status, http.StatusBadRequest)
			}
			if out["code"] != tc.code {
				t.Fatalf("code = %v, want %s", out["code"], tc.code)
			}
		})
	}

	_, view := doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	if list, _ := view["tasks"].([]any); len(list) != 0 {
		t.Fatalf("tasks after rejected creates = %+v, want none", list)
	}
}

func TestAutoPlanDurations(t *testing.T) {
	ts := newTestServer(t, nil)

	cases := []struct {
		body      string
		wantStart string
		wantMins  float64
	}{
		{body: `{"name":"Deep work","duration":"90"}`, wantStart: "2025-03-10T09:00:00Z", wantMins: 90},
		{body: `{"name":"Email","duration":30}`, wantStart: "2025-03-10T10:30:00Z", wantMins: 30},
		{body: `{"name":"Gym"}`, wantStart: "2025-03-10T11:00:00Z", wantMins: 60},
		{body: `{"name":"Calls","duration":"soon"}`, wantStart: "2025-03-10T12:00:00Z", wantMins: 60},
	}
	for _, tc := range cases {
		status, out := doJSON(t, http.MethodPost, ts.URL+"/api/auto_plan", tc.body)
		if status != http.StatusOK {
			t.Fatalf("auto_plan %s status = %d, want %d (%+v)", tc.body, status, http.StatusOK, out)
		}
		if out["status"] != "success" {
			t.Fatalf("auto_plan %s status field = %v, want success", tc.body, out["status"])
		}
		if got := taskField(t, out, "start_time"); got != tc.wantStart {
			t.Fatalf("auto_plan %s start = %v, want %s", tc.body, got, tc.wantStart)
		}
		if got := taskField(t, out, "duration_minutes"); got != tc.wantMins {
			t.Fatalf("auto_plan %s duration = %v, want %v", tc.body, got, tc.wantMins)
		}
	}

	rejected := []struct {
		body       string
		wantStatus int
	}{
		{body: `{"name":"Nap","duration":0}`, wantStatus: http.StatusBadRequest},
		{body: `{"name":"Retreat","duration":1200}`, wantStatus: http.StatusConflict},
		{body: `{"name":"Forever","duration":307445735}`, wantStatus: http.StatusBadRequest},
		{body: `{"name":"Forever","duration":1e30}`, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range rejected {
		status, out := doJSON(t, http.MethodPost, ts.URL+"/api/auto_plan", tc.body)
		if status != tc.wantStatus {
			t.Fatalf("auto_plan %s status = %d, want %d (%+v)", tc.body, status, tc.wantStatus, out)
		}
	}

	_, view := doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	if listed, _ := view["tasks"].([]any); len(listed) != 4 {
		t.Fatalf("schedule has %d tasks after rejected plans, want 4", len(listed))
	}
}

func TestAutoPlanMessage(t *testing.T) {
	ts := newTestServer(t, nil)

	_, out := doJSON(t, http.MethodPost, ts.URL+"/api/auto_plan", `{"name":"Read","duration":45}`)
	if out["message"] != "Automatically scheduled 'Read' at 09:00" {
		t.Fatalf("message = %v", out["message"])
	}
}

func TestAutoPlanNoSlot(t *testing.T) {
	ts := newTestServer(t, func(o *scheduling.Options) {
		o.Slots = planning.SlotOptions{EarliestHour: 9, LatestHour: 10, Horizon: 24 * time.Hour, Granularity: 15 * time.Minute}
	})

	status, out := doJSON(t, http.MethodPost, ts.URL+"/api/auto_plan", `{"name":"Workshop","duration":120}`)
	if status != http.StatusConflict {
		t.Fatalf("status = %d, want %d (%+v)", status, http.StatusConflict, out)
	}
	if out["code"] != "no_slot_available" {
		t.Fatalf("code = %v, want no_slot_available", out["code"])
	}
	if out["duration_minutes"] != float64(120) {
		t.Fatalf("duration_minutes = %v, want 120", out["duration_minutes"])
	}
	if out["horizon"] != "24h0m0s" {
		t.Fatalf("horizon = %v, want 24h0m0s", out["horizon"])
	}
}

func TestPlanText(t *testing.T) {
	ts := newTestServer(t, nil)

	status, out := doJSON(t, http.MethodPost, ts.URL+"/api/plan", map[string]string{
		"text":      "10:30 standup\nreview PRs in the afternoon",
		"reference": "2025-03-10T00:00",
	})
	if status != http.StatusOK {
		t.Fatalf("plan status = %d, want %d (%+v)", status, http.StatusOK, out)
	}
	added, _ := out["added"].([]any)
	if len(added) != 2 {
		t.Fatalf("added = %+v, want two tasks", out["added"])
	}
	second, _ := added[1].(map[string]any)
	if second["start_time"] != "2025-03-10T14:00:00Z" {
		t.Fatalf("afternoon task start = %v, want 14:00", second["start_time"])
	}

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/plan", map[string]string{"text": "99:00 impossible"})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid plan status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestAnalyzeWellnessRejectsTruncatedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	status, out := doJSON(t, http.MethodPost, ts.URL+"/api/analyze_wellness", `{"tasks":[`)
	if status != http.StatusBadRequest {
		t.Fatalf("analyze status = %d, want %d (%+v)", status, http.StatusBadRequest, out)
	}
	if out["code"] != "invalid_request" {
		t.Fatalf("code = %v, want invalid_request", out["code"])
	}
}

func TestAnalyzeWellnessWithoutBody(t *testing.T) {
	ts := newTestServer(t, nil)

	res, err := http.Post(ts.URL+"/api/analyze_wellness", "application/json", nil)
	if err != nil {
		t.Fatalf("analyze request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("analyze status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out wellness.Result
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode analyze response: %v", err)
	}
	if out.Status != wellness.StatusMock {
		t.Fatalf("status = %q, want %q", out.Status, wellness.StatusMock)
	}
	if !strings.Contains(out.Message, "demo mode") {
		t.Fatalf("message = %q, want demo mode notice", out.Message)
	}
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	_, health := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if health["store_mode"] != "in-memory" || health["analyzer_mode"] != "mock" {
		t.Fatalf("health = %+v", health)
	}

	status, out := doJSON(t, http.MethodGet, ts.URL+"/api/status", nil)
	if status != http.StatusOK {
		t.Fatalf("status code = %d, want %d", status, http.StatusOK)
	}
	checks, _ := out["checks"].([]any)
	if len(checks) != 4 {
		t.Fatalf("checks = %+v, want 4", out["checks"])
	}
	for _, raw := range checks {
		c, _ := raw.(map[string]any)
		if c["status"] != "warn" {
			t.Fatalf("check %v status = %v, want warn with nothing configured", c["id"], c["status"])
		}
		if c["fix"] == "" || c["fix"] == nil {
			t.Fatalf("check %v has no fix hint", c["id"])
		}
	}

	_, settings := doJSON(t, http.MethodGet, ts.URL+"/api/settings", nil)
	if settings["timezone"] != "UTC" || settings["earliest_hour"] != float64(8) || settings["search_horizon_days"] != float64(14) {
		t.Fatalf("settings = %+v", settings)
	}
}

func TestPerfLatency(t *testing.T) {
	ts := newTestServer(t, nil)

	doJSON(t, http.MethodGet, ts.URL+"/api/schedule", nil)
	_, snap := doJSON(t, http.MethodGet, ts.URL+"/api/perf/latency", nil)
	ops, _ := snap["ops"].([]any)
	if len(ops) == 0 {
		t.Fatalf("ops = %+v, want schedule_view samples", snap)
	}

	doJSON(t, http.MethodDelete, ts.URL+"/api/perf/latency", nil)
	_, snap = doJSON(t, http.MethodGet, ts.URL+"/api/perf/latency", nil)
	if ops, _ := snap["ops"].([]any); len(ops) != 0 {
		t.Fatalf("ops after reset = %+v, want none", ops)
	}
}

func TestScheduleStream(t *testing.T) {
	ts := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/schedule/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg scheduleMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "schedule" || msg.Reason != "snapshot" {
		t.Fatalf("first message = %s/%s, want schedule/snapshot", msg.Type, msg.Reason)
	}

	doJSON(t, http.MethodPost, ts.URL+"/api/auto_plan", `{"name":"Walk","duration":30}`)

	var raw map[string]any
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if raw["reason"] != string(tasks.EventTaskCreated) {
		t.Fatalf("update reason = %v, want %s", raw["reason"], tasks.EventTaskCreated)
	}
	schedule, _ := raw["schedule"].(map[string]any)
	if list, _ := schedule["tasks"].([]any); len(list) != 1 {
		t.Fatalf("streamed tasks = %+v, want one", schedule["tasks"])
	}
}

func TestScheduleStreamRejectsCrossOrigin(t *testing.T) {
	ts := newTestServer(t, nil)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/schedule/ws"

	header := http.Header{}
	header.Set("Origin", "https://elsewhere.example")
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("Dial() error = nil, want handshake failure")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("handshake response = %+v, want 403", res)
	}
}

func TestParseDurationMinutes(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{raw: ``, want: 60},
		{raw: `null`, want: 60},
		{raw: `45`, want: 45},
		{raw: `"45"`, want: 45},
		{raw: `" 20 "`, want: 20},
		{raw: `"abc"`, want: 60},
		{raw: `30.5`, want: 30},
		{raw: `-5`, want: -5},
		{raw: `1e30`, want: math.MaxInt32},
		{raw: `-1e30`, want: math.MinInt32},
		{raw: `"99999999999999999999"`, want: math.MaxInt32},
		{raw: `"NaN"`, want: 60},
	}
	for _, tc := range cases {
		if got := parseDurationMinutes(json.RawMessage(tc.raw), 60); got != tc.want {
			t.Fatalf("parseDurationMinutes(%s) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	got, err := parseTimestamp("start_time", "2025-03-10T09:00", loc)
	if err != nil {
		t.Fatalf("parseTimestamp() error = %v", err)
	}
	if want := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("parseTimestamp() = %v, want %v", got, want)
	}

	got, err = parseTimestamp("start_time", "2025-03-10T09:00:00Z", loc)
	if err != nil || got.UTC().Hour() != 9 {
		t.Fatalf("parseTimestamp(RFC3339) = %v, %v", got, err)
	}

	if _, err := parseTimestamp("start_time", "later", loc); err == nil {
		t.Fatal("parseTimestamp(later) error = nil, want validation error")
	}
}
