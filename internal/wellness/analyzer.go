package wellness

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	StatusSuccess = "success"
	StatusMock    = "mock"
	StatusError   = "error"
)

// Entry is one schedule line as the analyzer sees it. Times are passed
// through as the caller formatted them.
type Entry struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Result is the analyzer outcome returned to clients as-is.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Analyzer turns a schedule into wellness advice text.
type Analyzer interface {
	Analyze(ctx context.Context, entries []Entry) (Result, error)
	Mode() string
}

// Config controls analyzer construction.
type Config struct {
	URL       string
	APIKey    string
	Model     string
	Timeout   time.Duration
	RedisAddr string
	CacheTTL  time.Duration
}

// NewAnalyzer returns an HTTP analyzer when URL is set and the mock analyzer
// otherwise. A Redis address adds a result cache in front of either.
func NewAnalyzer(cfg Config, logger *zap.Logger) Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	var a Analyzer
	if strings.TrimSpace(cfg.URL) == "" {
		a = NewMockAnalyzer()
	} else {
		a = NewHTTPAnalyzer(HTTPOptions{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}

	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		a = NewCachedAnalyzer(a, NewRedisClient(addr), cfg.CacheTTL, logger)
	}
	return a
}
