package postgres

import (
	"chat-notify/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestOpen_InvalidURL(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	_, err := Open(context.Background(), log, Config{DSN: "postgres://%zz"})

	req.ErrorContains(err, "invalid database url")
}

func TestOpen_Unreachable(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Given nothing listens on port 1
	_, err := Open(ctx, log, Config{DSN: "postgres://notify@127.0.0.1:1/chat?sslmode=disable&connect_timeout=1"})

	req.ErrorContains(err, "database unreachable")
}

func TestListener_GivesUpAfterMaxFailedAttempts(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	l := &Listener{log: log, maxFailed: 2, fatal: make(chan error, 1)}
	refused := fmt.Errorf("connection refused")

	// Given one failed attempt, the feed keeps trying
	l.onEvent(pq.ListenerEventConnectionAttemptFailed, refused)
	req.Empty(l.fatal)

	// When a reconnection succeeds the counter starts over
	l.onEvent(pq.ListenerEventReconnected, nil)
	l.onEvent(pq.ListenerEventConnectionAttemptFailed, refused)
	req.Empty(l.fatal)

	// Then two consecutive failures end the feed
	l.onEvent(pq.ListenerEventConnectionAttemptFailed, refused)
	l.onEvent(pq.ListenerEventConnectionAttemptFailed, refused)
	req.Len(l.fatal, 1)
	req.ErrorIs(<-l.fatal, errors.ErrFeedClosed)
}
