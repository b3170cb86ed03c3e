package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the planner service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	DatabaseURL string

	Timezone               string
	Location               *time.Location
	EarliestHour           int
	LatestHour             int
	SearchHorizon          time.Duration
	SlotGranularity        time.Duration
	DefaultDurationMinutes int

	MaxContinuous time.Duration
	MinBreak      time.Duration
	DailyLimit    time.Duration
	MinTransition time.Duration

	WellnessAIURL          string
	WellnessAIAPIKey       string
	WellnessAIModel        string
	WellnessAITimeout      time.Duration
	WellnessCacheRedisAddr string
	WellnessCacheTTL       time.Duration

	GoogleCalendarID              string
	GoogleCalendarCredentialsFile string

	ConfigFile string
}

// Load reads environment variables, layered over the YAML file named by
// PLANNER_CONFIG_FILE when set, and applies safe defaults.
func Load() (Config, error) {
	src := source{}
	configFile := stringsTrimSpace("PLANNER_CONFIG_FILE")
	if configFile != "" {
		values, err := loadFile(configFile)
		if err != nil {
			return Config{}, err
		}
		src.file = values
	}

	cfg := Config{
		BindAddr:                      src.orDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:              src.orDefault("APP_METRICS_NAMESPACE", "aiplanner"),
		LogLevel:                      strings.ToLower(src.orDefault("APP_LOG_LEVEL", "info")),
		LogFormat:                     strings.ToLower(src.orDefault("APP_LOG_FORMAT", "console")),
		DatabaseURL:                   src.trimmed("DATABASE_URL"),
		Timezone:                      src.orDefault("PLANNER_TIMEZONE", "Local"),
		WellnessAIURL:                 src.trimmed("WELLNESS_AI_URL"),
		WellnessAIAPIKey:              src.trimmed("WELLNESS_AI_API_KEY"),
		WellnessAIModel:               src.trimmed("WELLNESS_AI_MODEL"),
		WellnessCacheRedisAddr:        src.trimmed("WELLNESS_CACHE_REDIS_ADDR"),
		GoogleCalendarID:              src.trimmed("GOOGLE_CALENDAR_ID"),
		GoogleCalendarCredentialsFile: src.trimmed("GOOGLE_CALENDAR_CREDENTIALS_FILE"),
		ConfigFile:                    configFile,
		ShutdownTimeout:               15 * time.Second,
		AllowAnyOrigin:                false,
		EarliestHour:                  8,
		LatestHour:                    22,
		SearchHorizon:                 14 * 24 * time.Hour,
		SlotGranularity:               15 * time.Minute,
		DefaultDurationMinutes:        60,
		MaxContinuous:                 3 * time.Hour,
		MinBreak:                      10 * time.Minute,
		DailyLimit:                    8 * time.Hour,
		MinTransition:                 15 * time.Minute,
		WellnessAITimeout:             30 * time.Second,
		WellnessCacheTTL:              10 * time.Minute,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"PLANNER_SEARCH_HORIZON", &cfg.SearchHorizon},
		{"PLANNER_SLOT_GRANULARITY", &cfg.SlotGranularity},
		{"ADVISOR_MAX_CONTINUOUS", &cfg.MaxContinuous},
		{"ADVISOR_MIN_BREAK", &cfg.MinBreak},
		{"ADVISOR_DAILY_LIMIT", &cfg.DailyLimit},
		{"ADVISOR_MIN_TRANSITION", &cfg.MinTransition},
		{"WELLNESS_AI_TIMEOUT", &cfg.WellnessAITimeout},
		{"WELLNESS_CACHE_TTL", &cfg.WellnessCacheTTL},
	}
	for _, d := range durations {
		v, err := src.durationFrom(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PLANNER_EARLIEST_HOUR", &cfg.EarliestHour},
		{"PLANNER_LATEST_HOUR", &cfg.LatestHour},
		{"PLANNER_DEFAULT_DURATION_MINUTES", &cfg.DefaultDurationMinutes},
	}
	for _, n := range ints {
		v, err := src.intFrom(n.key, *n.dst)
		if err != nil {
			return Config{}, err
		}
		*n.dst = v
	}

	var err error
	cfg.AllowAnyOrigin, err = src.boolFrom("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	cfg.Location, err = loadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EarliestHour < 0 || c.EarliestHour > 24 || c.LatestHour < 0 || c.LatestHour > 24 {
		return fmt.Errorf("PLANNER_EARLIEST_HOUR and PLANNER_LATEST_HOUR must be within 0..24")
	}
	if c.EarliestHour >= c.LatestHour {
		return fmt.Errorf("PLANNER_EARLIEST_HOUR must be before PLANNER_LATEST_HOUR")
	}
	if c.SearchHorizon <= 0 {
		return fmt.Errorf("PLANNER_SEARCH_HORIZON must be positive")
	}
	if c.SlotGranularity <= 0 {
		return fmt.Errorf("PLANNER_SLOT_GRANULARITY must be positive")
	}
	if c.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("PLANNER_DEFAULT_DURATION_MINUTES must be positive")
	}
	if c.MaxContinuous < 0 || c.MinBreak < 0 || c.DailyLimit < 0 || c.MinTransition < 0 {
		return fmt.Errorf("ADVISOR_* thresholds must be >= 0")
	}
	if c.WellnessAITimeout <= 0 {
		return fmt.Errorf("WELLNESS_AI_TIMEOUT must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be json or console")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("PLANNER_TIMEZONE parse error: %w", err)
	}
	return loc, nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) raw(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) orDefault(key, fallback string) string {
	v := s.trimmed(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) trimmed(key string) string {
	return strings.TrimSpace(s.raw(key))
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (s source) durationFrom(key string, fallback time.Duration) (time.Duration, error) {
	v := s.trimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func (s source) intFrom(key string, fallback int) (int, error) {
	v := s.trimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func (s source) boolFrom(key string, fallback bool) (bool, error) {
	v := strings.ToLower(s.trimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
