package workers

import (
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"chat-notify/observability"
	"context"
	"log/slog"
	"time"
)

// Dispatcher delivers classified notifications to the live sessions of
// every affected user.
//
// Delivery is best-effort and at-most-once per live session: a session that
// is full or gone simply misses the event, and nothing is queued for users
// without sessions. A client cannot tell a dropped event from one that never
// happened.
//
// Dispatch must be called from a single goroutine: events reach a given
// session in the order Dispatch was called.
type Dispatcher struct {
	log             *slog.Logger
	registry        contract.IRegistry
	metrics         *observability.Metrics
	deliveryTimeout time.Duration
}

func NewDispatcher(log *slog.Logger, registry contract.IRegistry,
	metrics *observability.Metrics, deliveryTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:             log,
		registry:        registry,
		metrics:         metrics,
		deliveryTimeout: deliveryTimeout,
	}
}

// Dispatch never fails as a whole: one broken session does not prevent
// delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n event.Notification) {
	if n.Empty() {
		return
	}
	for _, userID := range n.Users {
		for _, handle := range d.registry.Lookup(userID) {
			d.deliver(ctx, userID, handle, n.Event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, userID domain.UserID, handle contract.Handle, evt event.AppEvent) {
	sendCtx, cancel := d.sendContext(ctx)
	defer cancel()

	err := handle.Sink.Consume(sendCtx, evt)
	switch {
	case err == nil:
		d.metrics.Delivered(evt.Name())
		d.log.Debug("Event delivered",
			"user_id", userID, "session_id", handle.SessionID, "event", evt.Name())
	case errors.Is(err, errors.ErrSinkClosed):
		// The owning session deregisters too; whoever comes first wins.
		d.metrics.Dropped("closed")
		if d.registry.Deregister(userID, handle.SessionID) {
			d.metrics.Pruned()
		}
		d.log.Warn("Dead session handle pruned",
			"user_id", userID, "session_id", handle.SessionID, "event", evt.Name())
	case errors.Is(err, errors.ErrSinkFull):
		d.metrics.Dropped("full")
		d.log.Warn("Session lagging behind, event dropped",
			"user_id", userID, "session_id", handle.SessionID, "event", evt.Name())
	default:
		d.metrics.Dropped("error")
		d.log.Warn("Failed to deliver event",
			"user_id", userID, "session_id", handle.SessionID, "event", evt.Name(), "error", err)
	}
}

// sendContext bounds a single handle send. Without a delivery timeout the
// send is non-blocking.
func (d *Dispatcher) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.deliveryTimeout > 0 {
		return context.WithTimeout(ctx, d.deliveryTimeout)
	}
	sendCtx, cancel := context.WithCancel(ctx)
	cancel()
	return sendCtx, cancel
}
