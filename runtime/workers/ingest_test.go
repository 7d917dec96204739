package workers

import (
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"chat-notify/mocks"
	"chat-notify/observability"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// chanFeed replays raw notifications pushed on a channel.
// Closing the channel makes Next fail like a lost connection.
type chanFeed struct {
	raws   chan event.Raw
	closed chan struct{}
}

func newChanFeed() *chanFeed {
	return &chanFeed{raws: make(chan event.Raw), closed: make(chan struct{})}
}

func (f *chanFeed) Next(ctx context.Context) (event.Raw, error) {
	select {
	case <-ctx.Done():
		return event.Raw{}, ctx.Err()
	case raw, ok := <-f.raws:
		if !ok {
			return event.Raw{}, errors.ErrFeedClosed
		}
		return raw, nil
	}
}

func (f *chanFeed) Close() error {
	close(f.closed)
	return nil
}

func opener(feed contract.ChangeFeed) FeedOpener {
	return func(context.Context) (contract.ChangeFeed, error) { return feed, nil }
}

func TestIngestWorker_MalformedPayloadDoesNotStopTheLoop(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	metrics := observability.NewMetrics()
	feed := newChanFeed()
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)

	dispatched := make(chan event.Notification, 1)
	// Then only the valid notification reaches the dispatcher
	mockDispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, n event.Notification) { dispatched <- n }).
		Times(1)

	worker := NewIngestWorker(log, opener(feed), mockDispatcher, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	// When a broken payload, an unknown channel and a valid one arrive
	feed.raws <- event.Raw{Channel: event.ChannelChatUpdated, Payload: `{broken`}
	feed.raws <- event.Raw{Channel: "user_updated", Payload: `{}`}
	feed.raws <- event.Raw{
		Channel: event.ChannelChatMessageCreated,
		Payload: `{"message":{"id":1,"chat_id":2,"sender_id":3,"content":"hi"},"members":[3,4]}`,
	}

	select {
	case n := <-dispatched:
		req.ElementsMatch([]domain.UserID{3, 4}, n.Users)
		req.Equal(event.NewMessageName, n.Event.Name())
	case <-time.After(time.Second):
		req.Fail("valid notification was not dispatched")
	}

	// And the worker stops cleanly with its context
	cancel()
	select {
	case err := <-errCh:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker did not stop")
	}
	<-feed.closed

	req.Equal(float64(1), testutil.ToFloat64(metrics.ClassifyErrors.WithLabelValues("malformed")))
	req.Equal(float64(1), testutil.ToFloat64(metrics.ClassifyErrors.WithLabelValues("unknown_channel")))
	req.Equal(float64(1), testutil.ToFloat64(metrics.FeedConnects))
}

func TestIngestWorker_SkipsNotificationsForNobody(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	metrics := observability.NewMetrics()
	feed := newChanFeed()

	// Given a dispatcher that must never be called
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)

	worker := NewIngestWorker(log, opener(feed), mockDispatcher, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	// When a rename arrives with an unchanged member set
	row := `{"id":1,"ws_id":1,"name":"%s","type":"group","members":[1,2],"agents":[],"created_at":"2024-05-01T10:00:00Z"}`
	feed.raws <- event.Raw{
		Channel: event.ChannelChatUpdated,
		Payload: fmt.Sprintf(`{"op":"UPDATE","old":%s,"new":%s}`, fmt.Sprintf(row, "a"), fmt.Sprintf(row, "b")),
	}
	// Unbuffered: the second send only returns once the first was handled
	feed.raws <- event.Raw{Channel: "noop", Payload: `{}`}

	cancel()
	req.NoError(<-errCh)
	req.Equal(float64(1), testutil.ToFloat64(metrics.NotificationsSkipped))
	req.Equal(float64(1), testutil.ToFloat64(metrics.NotificationsReceived.WithLabelValues(event.ChannelChatUpdated)))
}

func TestIngestWorker_LostFeedIsReturned(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	feed := newChanFeed()

	worker := NewIngestWorker(log, opener(feed), mocks.NewMockIDispatcher(ctrl), nil)
	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(context.Background()) }()

	// When the connection is lost
	close(feed.raws)

	// Then the error surfaces so the supervisor can reconnect
	select {
	case err := <-errCh:
		req.ErrorIs(err, errors.ErrFeedClosed)
	case <-time.After(time.Second):
		req.Fail("worker did not return")
	}
	<-feed.closed
}

func TestIngestWorker_OpenFailure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given the database is unreachable
	boom := fmt.Errorf("connection refused")
	open := func(context.Context) (contract.ChangeFeed, error) { return nil, boom }

	worker := NewIngestWorker(log, open, mocks.NewMockIDispatcher(ctrl), nil)

	// Then Run fails without touching the dispatcher
	req.ErrorIs(worker.Run(context.Background()), boom)
}

func TestIngestWorker_RestartedBySupervisor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	metrics := observability.NewMetrics()

	// Given a feed whose first connection drops immediately
	first, second := newChanFeed(), newChanFeed()
	close(first.raws)
	feeds := make(chan contract.ChangeFeed, 2)
	feeds <- first
	feeds <- second
	open := func(context.Context) (contract.ChangeFeed, error) { return <-feeds, nil }

	dispatched := make(chan struct{})
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	mockDispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).
		Do(func(context.Context, event.Notification) { close(dispatched) }).Times(1)

	sup := NewSupervisor(log, 10*time.Millisecond)
	sup.Add(NewIngestWorker(log, open, mockDispatcher, metrics))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	// When the reconnected feed delivers a notification
	second.raws <- event.Raw{
		Channel: event.ChannelChatUpdated,
		Payload: `{"op":"DELETE","old":{"id":1,"type":"single","members":[1,2]},"new":null}`,
	}

	// Then it is dispatched
	select {
	case <-dispatched:
	case <-time.After(time.Second):
		req.Fail("notification was not dispatched after reconnect")
	}
	cancel()
	<-done
	req.Equal(float64(2), testutil.ToFloat64(metrics.FeedConnects))
}
