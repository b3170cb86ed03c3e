package planning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

var ErrNoSlotAvailable = errors.New("no slot available")

// maxDurationMinutes is the longest duration that still fits a time.Duration.
const maxDurationMinutes = math.MaxInt64 / int64(time.Minute)

// NoSlotAvailableError is returned when no gap of Duration exists before the
// search horizon runs out.
type NoSlotAvailableError struct {
	Duration time.Duration
	Horizon  time.Duration
}

func (e *NoSlotAvailableError) Error() string {
	return fmt.Sprintf("no free %s slot within %s", formatSpan(e.Duration), formatSpan(e.Horizon))
}

func (e *NoSlotAvailableError) Unwrap() error { return ErrNoSlotAvailable }

// SlotOptions bounds where FindSlot may place a task. Hours are wall-clock
// hours in the location of the search start; LatestHour may be 24.
type SlotOptions struct {
	EarliestHour int
	LatestHour   int
	Horizon      time.Duration
	Granularity  time.Duration
}

func DefaultSlotOptions() SlotOptions {
	return SlotOptions{
		EarliestHour: 8,
		LatestHour:   22,
		Horizon:      14 * 24 * time.Hour,
		Granularity:  15 * time.Minute,
	}
}

func (o SlotOptions) Validate() error {
	if o.EarliestHour < 0 || o.EarliestHour > 24 || o.LatestHour < 0 || o.LatestHour > 24 {
		return fmt.Errorf("slot hours must be within 0..24, got %d..%d", o.EarliestHour, o.LatestHour)
	}
	if o.EarliestHour >= o.LatestHour {
		return fmt.Errorf("earliest hour %d must be before latest hour %d", o.EarliestHour, o.LatestHour)
	}
	if o.Horizon <= 0 {
		return fmt.Errorf("search horizon must be positive")
	}
	if o.Granularity < 0 {
		return fmt.Errorf("slot granularity must not be negative")
	}
	return nil
}

// CeilTo rounds t up to the next multiple of g. A t already on a boundary is
// returned unchanged.
func CeilTo(t time.Time, g time.Duration) time.Time {
	if g <= 0 {
		return t
	}
	r := t.Truncate(g)
	if r.Equal(t) {
		return t
	}
	return r.Add(g)
}

// FindSlot returns the earliest interval of durationMinutes that starts at or
// after earliestStart, lies inside the allowed hours of one calendar day and
// overlaps none of existing. A zero earliestStart means now, rounded up to
// opts.Granularity.
func FindSlot(existing []tasks.Task, durationMinutes int, earliestStart time.Time, opts SlotOptions) (tasks.Interval, error) {
	if durationMinutes <= 0 {
		return tasks.Interval{}, &tasks.ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if int64(durationMinutes) > maxDurationMinutes {
		return tasks.Interval{}, &tasks.ValidationError{Field: "duration", Reason: "is too large"}
	}
	if err := opts.Validate(); err != nil {
		return tasks.Interval{}, err
	}
	if earliestStart.IsZero() {
		earliestStart = CeilTo(time.Now(), opts.Granularity)
	}

	d := time.Duration(durationMinutes) * time.Minute
	if d > time.Duration(opts.LatestHour-opts.EarliestHour)*time.Hour {
		// No single day window can hold it.
		return tasks.Interval{}, &NoSlotAvailableError{Duration: d, Horizon: opts.Horizon}
	}
	deadline := earliestStart.Add(opts.Horizon)
	loc := earliestStart.Location()
	busy := mergeBusy(existing)

	cursor := earliestStart
	i := 0
	for {
		y, m, day := cursor.Date()
		dayStart := time.Date(y, m, day, opts.EarliestHour, 0, 0, 0, loc)
		dayEnd := time.Date(y, m, day, opts.LatestHour, 0, 0, 0, loc)
		nextDay := time.Date(y, m, day+1, opts.EarliestHour, 0, 0, 0, loc)

		if cursor.Before(dayStart) {
			cursor = dayStart
		}
		if !cursor.Before(deadline) {
			return tasks.Interval{}, &NoSlotAvailableError{Duration: d, Horizon: opts.Horizon}
		}
		if !cursor.Before(dayEnd) {
			cursor = nextDay
			continue
		}

		for i < len(busy) && !busy[i].End.After(cursor) {
			i++
		}
		if i < len(busy) && !busy[i].Start.After(cursor) {
			cursor = busy[i].End
			continue
		}

		gapEnd := dayEnd
		if i < len(busy) && busy[i].Start.Before(gapEnd) {
			gapEnd = busy[i].Start
		}
		if end := cursor.Add(d); !end.After(gapEnd) {
			return tasks.Interval{Start: cursor, End: end}, nil
		}
		if gapEnd.Equal(dayEnd) {
			cursor = nextDay
		} else {
			cursor = busy[i].End
		}
	}
}

// mergeBusy returns the union of the task intervals, sorted and coalesced.
// Touching intervals are merged.
func mergeBusy(ts []tasks.Task) []tasks.Interval {
	ivs := make([]tasks.Interval, 0, len(ts))
	for _, t := range ts {
		ivs = append(ivs, t.Interval())
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })

	out := make([]tasks.Interval, 0, len(ivs))
	for _, iv := range ivs {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func formatSpan(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}
