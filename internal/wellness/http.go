package wellness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/antoniostano/aiplanner/internal/reliability"
)

type HTTPOptions struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	Retry   reliability.Policy
}

// HTTPAnalyzer posts the coaching prompt to an HTTP text-generation endpoint.
// Calls go through a circuit breaker so a dead endpoint fails fast.
type HTTPAnalyzer struct {
	url     string
	apiKey  string
	model   string
	retry   reliability.Policy
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type analyzeRequest struct {
	Model  string  `json:"model,omitempty"`
	Prompt string  `json:"prompt"`
	Tasks  []Entry `json:"tasks"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("wellness http status %d: %s", e.code, e.body)
}

func NewHTTPAnalyzer(opts HTTPOptions) *HTTPAnalyzer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = reliability.DefaultPolicy()
	}
	return &HTTPAnalyzer{
		url:    strings.TrimSpace(opts.URL),
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  strings.TrimSpace(opts.Model),
		retry:  opts.Retry,
		client: &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "wellness-analyzer",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (a *HTTPAnalyzer) Mode() string { return "http" }

func (a *HTTPAnalyzer) Analyze(ctx context.Context, entries []Entry) (Result, error) {
	entries = redactEntries(entries)
	payload, err := json.Marshal(analyzeRequest{
		Model:  a.model,
		Prompt: BuildPrompt(entries),
		Tasks:  entries,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = reliability.Do(ctx, a.retry, isRetryable, func(ctx context.Context) error {
		out, err := a.breaker.Execute(func() (interface{}, error) {
			return a.post(ctx, payload)
		})
		if err != nil {
			return err
		}
		text = out.(string)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, errors.New("wellness endpoint returned no text")
	}
	return Result{Status: StatusSuccess, Message: text}, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	res, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &statusError{code: res.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return strings.TrimSpace(string(body)), nil
	}
	return extractText(obj), nil
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return reliability.IsRetryableHTTPStatus(se.code)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return reliability.IsTransientError(err)
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "output", "message", "delta"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
