package workers

import (
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/observability"
	"context"
	"log/slog"
	"time"
)

// Backlogged is implemented by sinks able to report how full they are.
type Backlogged interface {
	Len() int
	Cap() int
}

// HandleWalker visits every live handle of the registry.
type HandleWalker interface {
	Each(fn func(userID domain.UserID, handle contract.Handle))
}

// BacklogWorker periodically samples how full each session mailbox is.
// Reading len and cap of a channel is non-blocking, so sampling never
// interferes with delivery. Sessions above warnRatio are reported: they are
// about to start dropping events.
type BacklogWorker struct {
	log       *slog.Logger
	registry  HandleWalker
	metrics   *observability.Metrics
	interval  time.Duration
	warnRatio float64
}

func NewBacklogWorker(log *slog.Logger, registry HandleWalker,
	metrics *observability.Metrics, interval time.Duration, warnRatio float64) *BacklogWorker {
	return &BacklogWorker{
		log: log, registry: registry, metrics: metrics,
		interval: interval, warnRatio: warnRatio,
	}
}

func (w *BacklogWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping backlog sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

// sample returns the highest fill ratio seen.
func (w *BacklogWorker) sample() float64 {
	highest := 0.0
	w.registry.Each(func(userID domain.UserID, handle contract.Handle) {
		b, ok := handle.Sink.(Backlogged)
		if !ok || b.Cap() == 0 {
			return
		}
		ratio := float64(b.Len()) / float64(b.Cap())
		if ratio > highest {
			highest = ratio
		}
		if w.warnRatio > 0 && ratio >= w.warnRatio {
			w.log.Warn("Session mailbox almost full",
				"user_id", userID, "session_id", handle.SessionID,
				"length", b.Len(), "capacity", b.Cap())
		}
	})
	w.metrics.Backlog(highest)
	return highest
}
