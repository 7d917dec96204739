package workers

import (
	"chat-notify/classifier"
	"chat-notify/contract"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"chat-notify/observability"
	"context"
	"fmt"
	"log/slog"
)

// FeedOpener connects a fresh change feed. It is called on every (re)start.
type FeedOpener func(ctx context.Context) (contract.ChangeFeed, error)

// IngestWorker owns the database subscription and runs the
// classify -> dispatch loop. It is the only reader of the feed and the only
// caller of the dispatcher, so arrival order is dispatch order.
type IngestWorker struct {
	log        *slog.Logger
	open       FeedOpener
	dispatcher contract.IDispatcher
	metrics    *observability.Metrics
}

func NewIngestWorker(log *slog.Logger, open FeedOpener,
	dispatcher contract.IDispatcher, metrics *observability.Metrics) *IngestWorker {
	return &IngestWorker{log: log, open: open, dispatcher: dispatcher, metrics: metrics}
}

// Run returns nil once ctx is done. Losing the feed is returned as an
// error so the supervisor can reconnect.
func (w *IngestWorker) Run(ctx context.Context) error {
	feed, err := w.open(ctx)
	if err != nil {
		return fmt.Errorf("open change feed: %w", err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			w.log.Warn("Failed to close change feed", "error", err)
		}
	}()
	w.metrics.FeedOpened()
	w.log.Info("Listening for change notifications", "channels", event.Channels)

	for {
		raw, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Debug("Context done, stopping ingest")
				return nil
			}
			return fmt.Errorf("change feed: %w", err)
		}
		w.handle(ctx, raw)
	}
}

// handle never fails: a payload that cannot be classified is logged and dropped.
func (w *IngestWorker) handle(ctx context.Context, raw event.Raw) {
	w.metrics.Received(raw.Channel)
	w.log.Debug("Notification received", "channel", raw.Channel, "payload", raw.Payload)

	notification, err := classifier.Classify(raw)
	if err != nil {
		w.metrics.ClassifyFailed(errors.ClassifyReason(err))
		w.log.Warn("Dropping notification", "channel", raw.Channel, "error", err)
		return
	}
	if notification.Empty() {
		w.metrics.Skipped()
		w.log.Debug("Notification concerns no user", "channel", raw.Channel)
		return
	}
	w.dispatcher.Dispatch(ctx, notification)
}
