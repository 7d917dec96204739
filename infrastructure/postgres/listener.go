// Package postgres subscribes to the database change notifications
// (LISTEN/NOTIFY) emitted by the chat triggers.
package postgres

import (
	"chat-notify/domain/event"
	"chat-notify/errors"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
)

type Config struct {
	DSN                  string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	// MaxFailedAttempts consecutive failed reconnections make the feed fail.
	// Zero retries forever.
	MaxFailedAttempts int
}

// Listener is a contract.ChangeFeed over a single pq.Listener connection.
// It yields notifications in the order the server delivered them.
type Listener struct {
	log          *slog.Logger
	listener     *pq.Listener
	pingInterval time.Duration
	maxFailed    int64
	failed       atomic.Int64
	fatal        chan error
}

// Open checks the database is reachable, then subscribes to every
// notification channel.
func Open(ctx context.Context, log *slog.Logger, cfg Config) (*Listener, error) {
	connector, err := pq.NewConnector(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	db := sql.OpenDB(connector)
	err = db.PingContext(ctx)
	_ = db.Close()
	if err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	l := &Listener{
		log:          log,
		pingInterval: cfg.PingInterval,
		maxFailed:    int64(cfg.MaxFailedAttempts),
		fatal:        make(chan error, 1),
	}
	if l.pingInterval <= 0 {
		l.pingInterval = 90 * time.Second
	}
	l.listener = pq.NewListener(cfg.DSN, cfg.MinReconnectInterval, cfg.MaxReconnectInterval, l.onEvent)

	for _, channel := range event.Channels {
		if err := l.listener.Listen(channel); err != nil {
			_ = l.listener.Close()
			return nil, fmt.Errorf("listen %s: %w", channel, err)
		}
	}
	return l, nil
}

// onEvent runs on the pq connection goroutine; it must not block.
func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.failed.Store(0)
		l.log.Info("Change feed connected")
	case pq.ListenerEventDisconnected:
		l.log.Warn("Change feed disconnected, reconnecting", "error", err)
	case pq.ListenerEventReconnected:
		l.failed.Store(0)
		l.log.Info("Change feed reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		attempts := l.failed.Add(1)
		l.log.Warn("Change feed connection attempt failed", "attempts", attempts, "error", err)
		if l.maxFailed > 0 && attempts >= l.maxFailed {
			select {
			case l.fatal <- fmt.Errorf("%w: %d failed reconnections: %v", errors.ErrFeedClosed, attempts, err):
			default:
			}
		}
	}
}

func (l *Listener) Next(ctx context.Context) (event.Raw, error) {
	for {
		select {
		case <-ctx.Done():
			return event.Raw{}, ctx.Err()
		case err := <-l.fatal:
			return event.Raw{}, err
		case n, ok := <-l.listener.Notify:
			if !ok {
				return event.Raw{}, errors.ErrFeedClosed
			}
			if n == nil {
				// pq sends nil after a reconnection: anything published
				// while disconnected is gone.
				l.log.Warn("Change feed re-established, notifications may have been missed")
				continue
			}
			return event.Raw{Channel: n.Channel, Payload: n.Extra}, nil
		case <-time.After(l.pingInterval):
			if err := l.listener.Ping(); err != nil {
				l.log.Warn("Change feed ping failed", "error", err)
			}
		}
	}
}

func (l *Listener) Close() error {
	return l.listener.Close()
}
