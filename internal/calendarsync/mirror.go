// Package calendarsync mirrors planner tasks into a Google Calendar.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/antoniostano/aiplanner/internal/reliability"
	"github.com/antoniostano/aiplanner/internal/tasks"
)

const (
	taskIDProperty = "planner_task_id"
	sourceProperty = "planner_source"
	sourceValue    = "aiplanner"
)

// NewCalendarService builds a Calendar API client from a service-account or
// authorized-user credentials file.
func NewCalendarService(ctx context.Context, credentialsFile string) (*calendar.Service, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials %s: %w", credentialsFile, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, creds.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}
	return srv, nil
}

// Mirror keeps one calendar event per task. The task set stays the source of
// truth; mirror failures are logged and never reach the planner.
type Mirror struct {
	srv        *calendar.Service
	calendarID string
	retry      reliability.Policy
	logger     *zap.Logger

	mu     sync.Mutex
	events map[string]string // task id -> event id
}

func NewMirror(srv *calendar.Service, calendarID string, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		srv:        srv,
		calendarID: strings.TrimSpace(calendarID),
		retry:      reliability.DefaultPolicy(),
		logger:     logger,
		events:     make(map[string]string),
	}
}

// Run applies task events until ctx is done or the channel closes.
func (m *Mirror) Run(ctx context.Context, changes <-chan tasks.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-changes:
			if !ok {
				return
			}
			if err := m.Apply(ctx, evt); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("calendar mirror failed",
					zap.String("event", string(evt.Type)),
					zap.String("task_id", evt.Task.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *Mirror) Apply(ctx context.Context, evt tasks.Event) error {
	switch evt.Type {
	case tasks.EventTaskCreated, tasks.EventTaskUpdated:
		return m.Upsert(ctx, evt.Task)
	case tasks.EventTaskDeleted:
		return m.Delete(ctx, evt.Task.ID)
	case tasks.EventTasksCleared:
		return m.Clear(ctx)
	default:
		return nil
	}
}

// Upsert patches the task's event when one exists and inserts it otherwise.
func (m *Mirror) Upsert(ctx context.Context, task tasks.Task) error {
	return reliability.Do(ctx, m.retry, isRetryable, func(ctx context.Context) error {
		eventID, err := m.lookup(ctx, task.ID)
		if err != nil {
			return err
		}
		body := toEvent(task)
		if eventID != "" {
			_, err := m.srv.Events.Patch(m.calendarID, eventID, body).Context(ctx).Do()
			if !isGone(err) {
				return err
			}
			m.forget(task.ID)
		}
		created, err := m.srv.Events.Insert(m.calendarID, body).Context(ctx).Do()
		if err != nil {
			return err
		}
		m.remember(task.ID, created.Id)
		return nil
	})
}

func (m *Mirror) Delete(ctx context.Context, taskID string) error {
	return reliability.Do(ctx, m.retry, isRetryable, func(ctx context.Context) error {
		eventID, err := m.lookup(ctx, taskID)
		if err != nil || eventID == "" {
			return err
		}
		if err := m.srv.Events.Delete(m.calendarID, eventID).Context(ctx).Do(); err != nil && !isGone(err) {
			return err
		}
		m.forget(taskID)
		return nil
	})
}

// Clear removes every event this planner created, page by page.
func (m *Mirror) Clear(ctx context.Context) error {
	var ids []string
	err := reliability.Do(ctx, m.retry, isRetryable, func(ctx context.Context) error {
		ids = ids[:0]
		return m.srv.Events.List(m.calendarID).
			PrivateExtendedProperty(sourceProperty+"="+sourceValue).
			Fields("items(id)", "nextPageToken").
			Pages(ctx, func(page *calendar.Events) error {
				for _, item := range page.Items {
					ids = append(ids, item.Id)
				}
				return nil
			})
	})
	if err != nil {
		return fmt.Errorf("list mirrored events: %w", err)
	}

	for _, id := range ids {
		err := reliability.Do(ctx, m.retry, isRetryable, func(ctx context.Context) error {
			if err := m.srv.Events.Delete(m.calendarID, id).Context(ctx).Do(); err != nil && !isGone(err) {
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("delete event %s: %w", id, err)
		}
	}

	m.mu.Lock()
	m.events = make(map[string]string)
	m.mu.Unlock()
	m.logger.Info("cleared mirrored calendar events", zap.Int("count", len(ids)))
	return nil
}

// lookup checks the local index first and falls back to searching the
// calendar by the private task id property.
func (m *Mirror) lookup(ctx context.Context, taskID string) (string, error) {
	m.mu.Lock()
	id, ok := m.events[taskID]
	m.mu.Unlock()
	if ok {
		return id, nil
	}

	found, err := m.srv.Events.List(m.calendarID).
		PrivateExtendedProperty(taskIDProperty + "=" + taskID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("search event for task %s: %w", taskID, err)
	}
	if len(found.Items) == 0 {
		return "", nil
	}
	m.remember(taskID, found.Items[0].Id)
	return found.Items[0].Id, nil
}

func (m *Mirror) remember(taskID, eventID string) {
	m.mu.Lock()
	m.events[taskID] = eventID
	m.mu.Unlock()
}

func (m *Mirror) forget(taskID string) {
	m.mu.Lock()
	delete(m.events, taskID)
	m.mu.Unlock()
}

func toEvent(task tasks.Task) *calendar.Event {
	return &calendar.Event{
		Summary: task.Name,
		Start:   &calendar.EventDateTime{DateTime: task.StartTime.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: task.EndTime.Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				taskIDProperty: task.ID,
				sourceProperty: sourceValue,
			},
		},
	}
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410)
}

func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.Code)
	}
	return reliability.IsTransientError(err)
}
