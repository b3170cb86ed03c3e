package tasks

import (
	"context"
	"errors"
)

var ErrStoreNotFound = errors.New("task not found in store")

// Store persists the task set behind the in-memory Manager.
type Store interface {
	SaveTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, taskID string) error
	DeleteAll(ctx context.Context) error
	ListTasks(ctx context.Context) ([]Task, error)
	Close() error
}
