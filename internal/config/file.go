package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys lists every setting Load understands, by environment name.
var Keys = []string{
	"APP_BIND_ADDR",
	"APP_SHUTDOWN_TIMEOUT",
	"APP_METRICS_NAMESPACE",
	"APP_ALLOW_ANY_ORIGIN",
	"APP_LOG_LEVEL",
	"APP_LOG_FORMAT",
	"DATABASE_URL",
	"PLANNER_TIMEZONE",
	"PLANNER_EARLIEST_HOUR",
	"PLANNER_LATEST_HOUR",
	"PLANNER_SEARCH_HORIZON",
	"PLANNER_SLOT_GRANULARITY",
	"PLANNER_DEFAULT_DURATION_MINUTES",
	"ADVISOR_MAX_CONTINUOUS",
	"ADVISOR_MIN_BREAK",
	"ADVISOR_DAILY_LIMIT",
	"ADVISOR_MIN_TRANSITION",
	"WELLNESS_AI_URL",
	"WELLNESS_AI_API_KEY",
	"WELLNESS_AI_MODEL",
	"WELLNESS_AI_TIMEOUT",
	"WELLNESS_CACHE_REDIS_ADDR",
	"WELLNESS_CACHE_TTL",
	"GOOGLE_CALENDAR_ID",
	"GOOGLE_CALENDAR_CREDENTIALS_FILE",
}

// loadFile reads a two-level YAML document. Each "section.key" maps to the
// environment name SECTION_KEY, e.g.
//
//	planner:
//	  earliest_hour: 9
//
// sets PLANNER_EARLIEST_HOUR.
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}

	out := make(map[string]string)
	var unknown []string
	for section, values := range doc {
		for key, v := range values {
			name := strings.ToUpper(section + "_" + key)
			if !known[name] {
				unknown = append(unknown, section+"."+key)
				continue
			}
			if v == nil {
				continue
			}
			out[name] = fmt.Sprint(v)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(unknown, ", "))
	}
	return out, nil
}
