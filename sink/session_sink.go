package sink

import (
	"chat-notify/domain/event"
	"chat-notify/errors"
	"context"
	"sync"
)

// SessionSink is the bounded mailbox between the dispatcher and one relay loop.
// When the mailbox is full the newest event is dropped: one slow reader
// must never hold the dispatcher back.
type SessionSink struct {
	events    chan event.AppEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{
		events: make(chan event.AppEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the dispatcher.
// It waits for room in the mailbox at most until ctx is done.
func (s *SessionSink) Consume(ctx context.Context, e event.AppEvent) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return errors.ErrSinkFull
	}
}

// Events is read by the owning relay loop only.
func (s *SessionSink) Events() <-chan event.AppEvent {
	return s.events
}

// Done is closed once the sink stops accepting events.
func (s *SessionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. The events channel itself is never closed so a
// concurrent Consume cannot panic.
func (s *SessionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Len is the number of events waiting to be relayed.
func (s *SessionSink) Len() int {
	return len(s.events)
}

func (s *SessionSink) Cap() int {
	return cap(s.events)
}
