//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-notify/domain"
	"chat-notify/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the delivery handle of one live session.
// Consume must never block longer than ctx allows.
type EventSink interface {
	Consume(ctx context.Context, e event.AppEvent) error
}

// Handle is the registry's non-owning reference to a session.
type Handle struct {
	SessionID domain.SessionID
	Sink      EventSink
}

type RegistryStats struct {
	Users    int
	Sessions int
}

type IRegistry interface {
	Register(userID domain.UserID, sink EventSink) domain.SessionID
	Deregister(userID domain.UserID, sessionID domain.SessionID) bool
	Lookup(userID domain.UserID) []Handle
	Stats() RegistryStats
}

type IDispatcher interface {
	Dispatch(ctx context.Context, n event.Notification)
}

// ChangeFeed is an ordered stream of raw database notifications.
// Next blocks until a notification arrives, ctx is done or the feed fails.
type ChangeFeed interface {
	Next(ctx context.Context) (event.Raw, error)
	Close() error
}

// Transport is the write side of one client connection.
// It is only ever used from a single goroutine.
type Transport interface {
	Send(ctx context.Context, name string, data []byte) error
	KeepAlive(ctx context.Context) error
}

// Readier is implemented by transports that must tell their client the
// stream is open. Ready is called once the session is registered.
type Readier interface {
	Ready(ctx context.Context) error
}
