package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Proposal is a task that has not been committed yet.
type Proposal struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Manager owns the mutable task set. Every mutation and every snapshot read is
// serialized by one lock; callers only ever see copies.
type Manager struct {
	mu sync.RWMutex

	tasks   map[string]Task
	persist *persister

	subscribers map[int]chan Event
	nextSubID   int
}

func NewManager() *Manager {
	return &Manager{
		tasks:       make(map[string]Task),
		subscribers: make(map[int]chan Event),
	}
}

// AttachStore loads the persisted task set and mirrors every later mutation to
// store, in commit order, from a single background worker.
func (m *Manager) AttachStore(ctx context.Context, store Store, logger *zap.Logger) error {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	persisted, err := store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range persisted {
		if _, _, err := validate(t.Name, t.StartTime, t.EndTime); err != nil {
			logger.Warn("skipping invalid persisted task", zap.String("task_id", t.ID), zap.Error(err))
			continue
		}
		m.tasks[t.ID] = t
	}
	if m.persist != nil {
		m.persist.close()
	}
	m.persist = newPersister(store, logger)
	return nil
}

func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(c)
		}
	}
}

func (m *Manager) Add(name string, start, end time.Time) (Task, error) {
	name, iv, err := validate(name, start, end)
	if err != nil {
		return Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(name, iv), nil
}

// Create adds a task of the given duration starting at start.
func (m *Manager) Create(name string, start time.Time, duration time.Duration) (Task, error) {
	if duration <= 0 {
		return Task{}, &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	return m.Add(name, start, start.Add(duration))
}

// AddAll validates every proposal and then inserts them together, so either
// all of them are added or none.
func (m *Manager) AddAll(proposals []Proposal) ([]Task, error) {
	clean := make([]Proposal, 0, len(proposals))
	for _, p := range proposals {
		name, iv, err := validate(p.Name, p.Start, p.End)
		if err != nil {
			return nil, err
		}
		clean = append(clean, Proposal{Name: name, Start: iv.Start, End: iv.End})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(clean))
	for _, p := range clean {
		out = append(out, m.insertLocked(p.Name, Interval{Start: p.Start, End: p.End}))
	}
	return out, nil
}

// Reserve calls propose with a snapshot of the current tasks and commits the
// returned proposal before any other mutation can run. An error from propose
// leaves the task set untouched.
func (m *Manager) Reserve(propose func(snapshot []Task) (Proposal, error)) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := propose(m.listLocked())
	if err != nil {
		return Task{}, err
	}
	name, iv, err := validate(p.Name, p.Start, p.End)
	if err != nil {
		return Task{}, err
	}
	return m.insertLocked(name, iv), nil
}

func (m *Manager) Update(taskID, name string, start, end time.Time) (Task, error) {
	taskID = strings.TrimSpace(taskID)
	name, iv, err := validate(name, start, end)
	if err != nil {
		return Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, &NotFoundError{ID: taskID}
	}
	task.Name = name
	task.StartTime = iv.Start
	task.EndTime = iv.End
	m.tasks[taskID] = task

	m.persistLocked(persistOp{kind: opSave, task: task})
	m.publishLocked(Event{Type: EventTaskUpdated, Task: task, At: time.Now().UTC()})
	return task, nil
}

func (m *Manager) Remove(taskID string) error {
	taskID = strings.TrimSpace(taskID)

	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskID]
	if !ok {
		return &NotFoundError{ID: taskID}
	}
	delete(m.tasks, taskID)

	m.persistLocked(persistOp{kind: opDelete, task: task})
	m.publishLocked(Event{Type: EventTaskDeleted, Task: task, At: time.Now().UTC()})
	return nil
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make(map[string]Task)
	m.persistLocked(persistOp{kind: opClear})
	m.publishLocked(Event{Type: EventTasksCleared, At: time.Now().UTC()})
}

func (m *Manager) Get(taskID string) (Task, error) {
	taskID = strings.TrimSpace(taskID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, &NotFoundError{ID: taskID}
	}
	return task, nil
}

// List returns a copy of all tasks ordered by start time, then id.
func (m *Manager) List() []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// Close flushes pending persistence work.
func (m *Manager) Close() {
	m.mu.Lock()
	p := m.persist
	m.persist = nil
	m.mu.Unlock()
	if p != nil {
		p.close()
	}
}

func (m *Manager) insertLocked(name string, iv Interval) Task {
	task := Task{
		ID:        uuid.NewString(),
		Name:      name,
		StartTime: iv.Start,
		EndTime:   iv.End,
	}
	m.tasks[task.ID] = task
	m.persistLocked(persistOp{kind: opSave, task: task})
	m.publishLocked(Event{Type: EventTaskCreated, Task: task, At: time.Now().UTC()})
	return task
}

func (m *Manager) listLocked() []Task {
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	SortByStart(out)
	return out
}

func (m *Manager) persistLocked(op persistOp) {
	if m.persist == nil {
		return
	}
	m.persist.enqueue(op)
}

func (m *Manager) publishLocked(evt Event) {
	for _, ch := range m.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SortByStart orders tasks by start time, breaking ties by id.
func SortByStart(ts []Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].StartTime.Equal(ts[j].StartTime) {
			return ts[i].StartTime.Before(ts[j].StartTime)
		}
		return ts[i].ID < ts[j].ID
	})
}

func validate(name string, start, end time.Time) (string, Interval, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Interval{}, &ValidationError{Field: "name", Reason: "is required"}
	}
	if start.IsZero() {
		return "", Interval{}, &ValidationError{Field: "start_time", Reason: "is required"}
	}
	if end.IsZero() {
		return "", Interval{}, &ValidationError{Field: "end_time", Reason: "is required"}
	}
	if !end.After(start) {
		return "", Interval{}, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return name, Interval{Start: start, End: end}, nil
}
