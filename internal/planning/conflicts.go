package planning

import (
	"fmt"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

// Conflict names two tasks whose intervals share at least one instant.
// TaskAID is the task that comes first in start order.
type Conflict struct {
	TaskAID string `json:"task_a_id"`
	TaskBID string `json:"task_b_id"`
	Message string `json:"message"`
}

// DetectConflicts reports every overlapping pair in ts, in the order a single
// left-to-right sweep over start-sorted tasks discovers them. ts is not modified.
func DetectConflicts(ts []tasks.Task) []Conflict {
	sorted := append([]tasks.Task(nil), ts...)
	tasks.SortByStart(sorted)

	out := make([]Conflict, 0)
	open := make([]tasks.Task, 0, 4)
	for _, t := range sorted {
		kept := open[:0]
		for _, a := range open {
			if a.EndTime.After(t.StartTime) {
				kept = append(kept, a)
			}
		}
		open = kept

		for _, a := range open {
			out = append(out, Conflict{
				TaskAID: a.ID,
				TaskBID: t.ID,
				Message: fmt.Sprintf("%s overlaps with %s", a.Name, t.Name),
			})
		}
		open = append(open, t)
	}
	return out
}
