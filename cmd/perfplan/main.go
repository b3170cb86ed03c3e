package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type options struct {
	baseURL         string
	requests        int
	concurrency     int
	durationMinutes int
	clearFirst      bool
	watch           bool
	timeout         time.Duration
	verbose         bool
}

type autoPlanRequest struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

type scheduleResponse struct {
	Tasks     []json.RawMessage `json:"tasks"`
	Conflicts []json.RawMessage `json:"conflicts"`
	Breaks    []string          `json:"breaks"`
}

type latencyResponse struct {
	Ops []struct {
		Op          string  `json:"op"`
		Samples     int     `json:"samples"`
		P50MS       float64 `json:"p50_ms"`
		P95MS       float64 `json:"p95_ms"`
		TargetP95MS float64 `json:"target_p95_ms"`
	} `json:"ops"`
}

type summary struct {
	Placed        int
	Rejected      int
	Failed        int
	Tasks         int
	Conflicts     int
	StreamUpdates int64
	Elapsed       time.Duration
	Latency       latencyResponse
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfplan: %v\n", err)
		os.Exit(2)
	}
	sum, err := run(context.Background(), http.DefaultClient, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfplan: %v\n", err)
		os.Exit(1)
	}
	printSummary(os.Stdout, sum)
	if sum.Conflicts > 0 {
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var timeoutMS int

	fs := flag.NewFlagSet("perfplan", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "aiplanner base URL")
	fs.IntVar(&cfg.requests, "requests", 50, "number of auto_plan requests")
	fs.IntVar(&cfg.concurrency, "concurrency", 8, "parallel clients")
	fs.IntVar(&cfg.durationMinutes, "duration", 30, "minutes per planned task")
	fs.BoolVar(&cfg.clearFirst, "clear", false, "clear the schedule before the run")
	fs.BoolVar(&cfg.watch, "watch", true, "count schedule stream pushes during the run")
	fs.IntVar(&timeoutMS, "timeout-ms", 10000, "per-request timeout in milliseconds")
	fs.BoolVar(&cfg.verbose, "verbose", false, "print every placement")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.requests <= 0 {
		return options{}, fmt.Errorf("requests must be > 0")
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}
	if cfg.durationMinutes <= 0 {
		return options{}, fmt.Errorf("duration must be > 0")
	}
	if timeoutMS < 100 {
		timeoutMS = 100
	}
	cfg.timeout = time.Duration(timeoutMS) * time.Millisecond
	return cfg, nil
}

// run fires auto_plan requests from concurrent clients and then checks that
// the resulting schedule has no overlaps.
func run(ctx context.Context, client *http.Client, cfg options) (summary, error) {
	var sum summary
	if cfg.clearFirst {
		if err := postJSON(ctx, client, cfg, "/api/clear", struct{}{}, nil); err != nil {
			return sum, fmt.Errorf("clear schedule: %w", err)
		}
	}

	var updates atomic.Int64
	stopWatch := func() {}
	if cfg.watch {
		stop, err := watchStream(ctx, cfg.baseURL, &updates)
		if err != nil {
			return sum, err
		}
		stopWatch = stop
	}

	started := time.Now()
	jobs := make(chan int)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				req := autoPlanRequest{Name: fmt.Sprintf("perf task %03d", i), Duration: cfg.durationMinutes}
				var res struct {
					Message string `json:"message"`
				}
				err := postJSON(ctx, client, cfg, "/api/auto_plan", req, &res)

				mu.Lock()
				switch {
				case err == nil:
					sum.Placed++
					if cfg.verbose {
						fmt.Println(res.Message)
					}
				case isStatus(err, http.StatusConflict):
					sum.Rejected++
				default:
					sum.Failed++
					if cfg.verbose {
						fmt.Fprintf(os.Stderr, "request %d: %v\n", i, err)
					}
				}
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < cfg.requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	sum.Elapsed = time.Since(started)

	var sched scheduleResponse
	if err := getJSON(ctx, client, cfg, "/api/schedule", &sched); err != nil {
		return sum, fmt.Errorf("fetch schedule: %w", err)
	}
	sum.Tasks = len(sched.Tasks)
	sum.Conflicts = len(sched.Conflicts)

	if err := getJSON(ctx, client, cfg, "/api/perf/latency", &sum.Latency); err != nil {
		return sum, fmt.Errorf("fetch latency: %w", err)
	}

	// Give the stream a moment to flush the last push.
	time.Sleep(100 * time.Millisecond)
	stopWatch()
	sum.StreamUpdates = updates.Load()
	return sum, nil
}

func watchStream(ctx context.Context, baseURL string, updates *atomic.Int64) (func(), error) {
	wsURL, err := streamURL(baseURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial schedule stream: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg struct {
				Reason string `json:"reason"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Reason != "snapshot" {
				updates.Add(1)
			}
		}
	}()
	return func() {
		_ = conn.Close()
		<-done
	}, nil
}

func streamURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base-url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/schedule/ws"
	return u.String(), nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.code == code
}

func postJSON(ctx context.Context, client *http.Client, cfg options, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return doJSON(ctx, client, cfg, http.MethodPost, path, bytes.NewReader(raw), out)
}

func getJSON(ctx context.Context, client *http.Client, cfg options, path string, out any) error {
	return doJSON(ctx, client, cfg, http.MethodGet, path, nil, out)
}

func doJSON(ctx context.Context, client *http.Client, cfg options, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func printSummary(w io.Writer, sum summary) {
	fmt.Fprintf(w, "placed=%d rejected=%d failed=%d elapsed=%s\n", sum.Placed, sum.Rejected, sum.Failed, sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "schedule tasks=%d conflicts=%d stream_updates=%d\n", sum.Tasks, sum.Conflicts, sum.StreamUpdates)
	for _, op := range sum.Latency.Ops {
		target := "-"
		if op.TargetP95MS > 0 {
			target = fmt.Sprintf("%.0fms", op.TargetP95MS)
		}
		fmt.Fprintf(w, "  %-16s n=%-5d p50=%.2fms p95=%.2fms target=%s\n", op.Op, op.Samples, op.P50MS, op.P95MS, target)
	}
}
