package planning

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

var (
	clockRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	hourRe  = regexp.MustCompile(`(?i)(\d{1,2})\s*(點|点|pm|am)`)
)

const parsedTaskLength = time.Hour

// ParseText turns free text into one-hour task proposals, one per non-empty
// line, dated relative to reference.
func ParseText(text string, reference time.Time) ([]tasks.Proposal, error) {
	var out []tasks.Proposal
	for n, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		dayOffset := 0
		if strings.Contains(line, "明天") || strings.Contains(lower, "tomorrow") {
			dayOffset = 1
		}
		hour, minute := lineTime(line, lower)
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return nil, &tasks.ValidationError{
				Field:  "text",
				Reason: fmt.Sprintf("line %d has an invalid time %02d:%02d", n+1, hour, minute),
			}
		}

		y, m, d := reference.Date()
		start := time.Date(y, m, d+dayOffset, hour, minute, 0, 0, reference.Location())
		out = append(out, tasks.Proposal{Name: line, Start: start, End: start.Add(parsedTaskLength)})
	}
	return out, nil
}

func lineTime(line, lower string) (int, int) {
	if m := clockRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return h, mins
	}
	if m := hourRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch strings.ToLower(m[2]) {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		default:
			if h < 12 && (strings.Contains(line, "下午") || strings.Contains(line, "晚上")) {
				h += 12
			}
		}
		return h, 0
	}
	switch {
	case strings.Contains(line, "晚上") || strings.Contains(lower, "night"):
		return 19, 0
	case strings.Contains(line, "下午") || strings.Contains(lower, "afternoon"):
		return 14, 0
	default:
		return 9, 0
	}
}
