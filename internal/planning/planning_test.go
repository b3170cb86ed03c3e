package planning

import (
	"time"

	"github.com/antoniostano/aiplanner/internal/tasks"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func task(id, name string, start, end time.Time) tasks.Task {
	return tasks.Task{ID: id, Name: name, StartTime: start, EndTime: end}
}
