package runtime

import (
	"chat-notify/domain"
	"chat-notify/domain/event"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type frame struct {
	name string
	data string
}

// recordingTransport keeps every frame written to it.
type recordingTransport struct {
	mu         sync.Mutex
	frames     []frame
	keepAlives int
	sendErr    error
	onReady    func()
}

func (t *recordingTransport) Send(_ context.Context, name string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.frames = append(t.frames, frame{name: name, data: string(data)})
	return nil
}

func (t *recordingTransport) KeepAlive(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keepAlives++
	return nil
}

func (t *recordingTransport) Ready(_ context.Context) error {
	if t.onReady != nil {
		t.onReady()
	}
	return nil
}

func (t *recordingTransport) snapshot() ([]frame, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]frame(nil), t.frames...), t.keepAlives
}

func serve(ctx context.Context, manager *SessionManager, userID domain.UserID, transport *recordingTransport) chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- manager.Serve(ctx, userID, transport) }()
	return errCh
}

func TestSessionManager_RelaysThenDeregistersOnCancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	manager := NewSessionManager(log, registry, nil, 8, 0)

	// Given a connected user
	ready := make(chan struct{})
	transport := &recordingTransport{onReady: func() { close(ready) }}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serve(ctx, manager, 1, transport)
	<-ready

	// When an event is pushed to its session
	handles := registry.Lookup(1)
	req.Len(handles, 1)
	req.NoError(handles[0].Sink.Consume(context.Background(), event.NewChat{Chat: domain.Chat{ID: 5}}))

	// Then it is written as a tagged JSON frame
	req.Eventually(func() bool {
		frames, _ := transport.snapshot()
		return len(frames) == 1
	}, time.Second, 5*time.Millisecond)
	frames, _ := transport.snapshot()
	req.Equal(event.NewChatName, frames[0].name)
	req.Contains(frames[0].data, `"event":"NewChat"`)
	req.Contains(frames[0].data, `"id":5`)

	// When the client goes away
	cancel()

	// Then the session ends cleanly and leaves the registry
	req.NoError(<-errCh)
	req.Empty(registry.Lookup(1))
	req.Equal(0, registry.Stats().Sessions)
}

func TestSessionManager_ReadyOnlyAfterRegistration(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	manager := NewSessionManager(log, registry, nil, 8, 0)

	registered := make(chan bool, 1)
	transport := &recordingTransport{onReady: func() { registered <- len(registry.Lookup(9)) == 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serve(ctx, manager, 9, transport)

	// Then the client is told the stream is open only once it can receive events
	req.True(<-registered)
	cancel()
	req.NoError(<-errCh)
}

func TestSessionManager_TransportFailureDeregisters(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	manager := NewSessionManager(log, registry, nil, 8, 0)

	// Given a connection whose writes fail
	ready := make(chan struct{})
	transport := &recordingTransport{sendErr: fmt.Errorf("broken pipe"), onReady: func() { close(ready) }}
	errCh := serve(context.Background(), manager, 2, transport)
	<-ready

	// When an event is relayed
	handles := registry.Lookup(2)
	req.Len(handles, 1)
	req.NoError(handles[0].Sink.Consume(context.Background(), event.NewMessage{}))

	// Then the session stops with the write error and is deregistered
	select {
	case err := <-errCh:
		req.ErrorContains(err, "broken pipe")
	case <-time.After(time.Second):
		req.Fail("session did not stop after transport failure")
	}
	req.Empty(registry.Lookup(2))
}

func TestSessionManager_KeepAlive(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	manager := NewSessionManager(log, registry, nil, 8, 10*time.Millisecond)

	transport := &recordingTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := serve(ctx, manager, 3, transport)

	// Then an idle stream still sees keep-alive frames
	req.Eventually(func() bool {
		_, keepAlives := transport.snapshot()
		return keepAlives >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-errCh)
}

func TestSessionManager_ConcurrentSessionsOfOneUser(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	manager := NewSessionManager(log, registry, nil, 8, 0)

	// Given the same user connected twice
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	first, second := &recordingTransport{}, &recordingTransport{}
	errCh1 := serve(ctx1, manager, 4, first)
	errCh2 := serve(ctx2, manager, 4, second)
	req.Eventually(func() bool { return len(registry.Lookup(4)) == 2 }, time.Second, 5*time.Millisecond)

	// When one of them disconnects
	cancel1()
	req.NoError(<-errCh1)

	// Then the other stays registered
	req.Len(registry.Lookup(4), 1)
	cancel2()
	req.NoError(<-errCh2)
	req.Empty(registry.Lookup(4))
}
