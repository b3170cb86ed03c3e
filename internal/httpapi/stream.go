package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/aiplanner/internal/scheduling"
	"github.com/antoniostano/aiplanner/internal/tasks"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 120 * time.Second
	streamPingInterval = 30 * time.Second
)

type scheduleMessage struct {
	Type     string          `json:"type"`
	Reason   string          `json:"reason"`
	Schedule scheduling.View `json:"schedule"`
}

// handleScheduleWS pushes a full schedule view on connect and again after
// every committed change. Bursts of changes collapse into one push.
func (s *Server) handleScheduleWS(w http.ResponseWriter, r *http.Request) {
	// Subscribe before upgrading so no change between snapshot and loop is lost.
	changes, unsubscribe := s.service.Changes()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		s.streamSchedule(ctx, conn, changes)
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})
	// Inbound messages carry nothing; reading only services pongs and close frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) streamSchedule(ctx context.Context, conn *websocket.Conn, changes <-chan tasks.Event) {
	if err := s.writeSchedule(conn, "snapshot"); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-changes:
			if !ok {
				return
			}
			reason := drainChanges(changes, string(evt.Type))
			if err := s.writeSchedule(conn, reason); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// drainChanges consumes events already queued and returns the reason to
// report: the single event type, or "batch" when several were pending.
func drainChanges(changes <-chan tasks.Event, first string) string {
	reason := first
	for {
		select {
		case evt, ok := <-changes:
			if !ok {
				return reason
			}
			if string(evt.Type) != reason {
				reason = "batch"
			}
		default:
			return reason
		}
	}
}

func (s *Server) writeSchedule(conn *websocket.Conn, reason string) error {
	msg := scheduleMessage{
		Type:     "schedule",
		Reason:   reason,
		Schedule: s.service.ScheduleView(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("schedule stream write failed", zap.Error(err))
		return err
	}
	return nil
}
