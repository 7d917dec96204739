package runtime

import (
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/observability"
	"chat-notify/sink"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Session is one live streaming connection of one user.
// It is owned by the goroutine running SessionManager.Serve.
type Session struct {
	ID     domain.SessionID
	UserID domain.UserID
	State  domain.SessionState
	sink   *sink.SessionSink
	log    *slog.Logger
}

func (s *Session) transition(state domain.SessionState) {
	s.log.Debug("Session state changed", "from", s.State, "to", state)
	s.State = state
}

// SessionManager bridges client connections to the registry.
// The registry entry of a session lives exactly as long as Serve runs.
type SessionManager struct {
	log        *slog.Logger
	registry   contract.IRegistry
	metrics    *observability.Metrics
	bufferSize int
	keepAlive  time.Duration
}

func NewSessionManager(log *slog.Logger, registry contract.IRegistry,
	metrics *observability.Metrics, bufferSize int, keepAlive time.Duration) *SessionManager {
	return &SessionManager{
		log:        log,
		registry:   registry,
		metrics:    metrics,
		bufferSize: bufferSize,
		keepAlive:  keepAlive,
	}
}

// Serve registers a session for userID and relays its events to transport
// until ctx is cancelled (client gone, server shutdown) or the transport
// fails. The session is deregistered on every exit path. A cancelled ctx is
// a normal close and returns nil.
func (m *SessionManager) Serve(ctx context.Context, userID domain.UserID, transport contract.Transport) error {
	session := &Session{
		UserID: userID,
		State:  domain.SessionConnecting,
		sink:   sink.NewSessionSink(m.bufferSize),
	}
	session.ID = m.registry.Register(userID, session.sink)
	session.log = m.log.With("user_id", userID, "session_id", session.ID)
	session.transition(domain.SessionRegistered)
	m.refreshGauges()
	session.log.Info("Session registered")

	defer func() {
		session.transition(domain.SessionClosing)
		session.sink.Close()
		m.registry.Deregister(userID, session.ID)
		m.refreshGauges()
		session.transition(domain.SessionDeregistered)
		session.log.Info("Session deregistered", "pending_events", session.sink.Len())
	}()

	if readier, ok := transport.(contract.Readier); ok {
		if err := readier.Ready(ctx); err != nil {
			return fmt.Errorf("open stream: %w", err)
		}
	}
	return m.relay(ctx, session, transport)
}

func (m *SessionManager) relay(ctx context.Context, session *Session, transport contract.Transport) error {
	session.transition(domain.SessionRelaying)

	var keepAlive <-chan time.Time
	if m.keepAlive > 0 {
		ticker := time.NewTicker(m.keepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			session.log.Debug("Client disconnected")
			return nil
		case evt := <-session.sink.Events():
			data, err := event.Encode(evt)
			if err != nil {
				session.log.Error("Failed to encode event", "event", evt.Name(), "error", err)
				continue
			}
			if err := transport.Send(ctx, evt.Name(), data); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send %s: %w", evt.Name(), err)
			}
		case <-keepAlive:
			if err := transport.KeepAlive(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("keep-alive: %w", err)
			}
		}
	}
}

func (m *SessionManager) refreshGauges() {
	stats := m.registry.Stats()
	m.metrics.Sessions(stats.Users, stats.Sessions)
}
