package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/config"
	"github.com/antoniostano/aiplanner/internal/httpapi"
	"github.com/antoniostano/aiplanner/internal/observability"
	"github.com/antoniostano/aiplanner/internal/scheduling"
	"github.com/antoniostano/aiplanner/internal/tasks"
)

func newPlannerServer(t *testing.T) *httptest.Server {
	t.Helper()
	opts := scheduling.DefaultOptions()
	opts.Location = time.UTC
	opts.Now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	metrics := observability.NewMetrics("test_perfplan", prometheus.NewRegistry())
	svc, err := scheduling.NewService(tasks.NewManager(), nil, opts, metrics, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	api := httpapi.New(config.Config{DefaultDurationMinutes: 60}, svc, httpapi.Options{}, metrics, zap.NewNop())
	ts := httptest.NewServer(api.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestRunPlacesEveryRequestWithoutConflicts(t *testing.T) {
	ts := newPlannerServer(t)
	cfg, err := parseFlags([]string{"-base-url", ts.URL, "-requests", "24", "-concurrency", "6", "-duration", "45"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}

	sum, err := run(context.Background(), ts.Client(), cfg)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if sum.Placed != 24 || sum.Failed != 0 || sum.Rejected != 0 {
		t.Fatalf("placed/rejected/failed = %d/%d/%d, want 24/0/0", sum.Placed, sum.Rejected, sum.Failed)
	}
	if sum.Tasks != 24 {
		t.Fatalf("schedule tasks = %d, want 24", sum.Tasks)
	}
	if sum.Conflicts != 0 {
		t.Fatalf("conflicts = %d, want 0", sum.Conflicts)
	}
	if sum.StreamUpdates == 0 {
		t.Fatal("stream updates = 0, want at least one push")
	}

	var out bytes.Buffer
	printSummary(&out, sum)
	if !strings.Contains(out.String(), "auto_plan") {
		t.Fatalf("summary missing auto_plan latency:\n%s", out.String())
	}
}

func TestParseFlagsValidation(t *testing.T) {
	if _, err := parseFlags([]string{"-requests", "0"}); err == nil {
		t.Fatal("parseFlags(requests=0) error = nil, want error")
	}
	if _, err := parseFlags([]string{"-duration", "-5"}); err == nil {
		t.Fatal("parseFlags(duration=-5) error = nil, want error")
	}
	cfg, err := parseFlags([]string{"-base-url", "http://localhost:9000/", "-concurrency", "0"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.baseURL != "http://localhost:9000" || cfg.concurrency != 1 {
		t.Fatalf("parseFlags() = %+v", cfg)
	}
}

func TestStreamURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":       "ws://localhost:8080/api/schedule/ws",
		"https://planner.example/app": "wss://planner.example/app/api/schedule/ws",
	}
	for in, want := range cases {
		got, err := streamURL(in)
		if err != nil {
			t.Fatalf("streamURL(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("streamURL(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := streamURL("ftp://x"); err == nil {
		t.Fatal("streamURL(ftp) error = nil, want error")
	}
}
