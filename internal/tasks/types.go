package tasks

import (
	"encoding/json"
	"time"
)

// Task is a named, scheduled interval. Its duration is always derived from
// StartTime and EndTime.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

func (t Task) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

func (t Task) Interval() Interval {
	return Interval{Start: t.StartTime, End: t.EndTime}
}

// Overlaps reports whether the two tasks share any instant. Touching tasks do not.
func (t Task) Overlaps(o Task) bool {
	return t.StartTime.Before(o.EndTime) && o.StartTime.Before(t.EndTime)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (t Task) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		StartTime       time.Time `json:"start_time"`
		EndTime         time.Time `json:"end_time"`
		DurationMinutes int       `json:"duration_minutes"`
	}
	return json.Marshal(wire{
		ID:              t.ID,
		Name:            t.Name,
		StartTime:       t.StartTime,
		EndTime:         t.EndTime,
		DurationMinutes: int(t.Duration() / time.Minute),
	})
}

type EventType string

const (
	EventTaskCreated  EventType = "task_created"
	EventTaskUpdated  EventType = "task_updated"
	EventTaskDeleted  EventType = "task_deleted"
	EventTasksCleared EventType = "tasks_cleared"
)

// Event describes a committed mutation of the task set.
type Event struct {
	Type EventType `json:"type"`
	Task Task      `json:"task"`
	At   time.Time `json:"at"`
}
