package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type stubEvent struct{ evt *types.Event }

func (s stubEvent) EventType() string   { return s.evt.Type }
func (s stubEvent) Event() *types.Event { return s.evt }

func TestBusPublishesCommittedEvents(t *testing.T) {
	client := &fakePublisher{}
	b, err := New(client, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var sink events.Emitter = b
	sink.Emit(stubEvent{evt: &types.Event{Type: "market.order.filled", Attributes: map[string]string{"price": "10"}}})

	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Equal(t, DefaultChannel, client.sent[0].channel)
	var msg Message
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &msg))
	require.Equal(t, "market.order.filled", msg.Type)
	require.Equal(t, "10", msg.Attributes["price"])
}

func TestBusPublishSurfacesRedisError(t *testing.T) {
	client := &fakePublisher{err: errors.New("connection refused")}
	b, err := New(client, "market", nil)
	require.NoError(t, err)

	err = b.Publish(context.Background(), types.Event{Type: "market.order.created"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "market")
}

func TestBusDropsWhenQueueFull(t *testing.T) {
	b, err := New(&fakePublisher{}, "market", nil)
	require.NoError(t, err)
	for i := 0; i < queueSize+3; i++ {
		b.Emit(stubEvent{evt: &types.Event{Type: "market.auction.bid"}})
	}
	require.Equal(t, uint64(3), b.Dropped())
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, "market", nil)
	require.Error(t, err)
	_, err = NewClient(" ")
	require.Error(t, err)
}
