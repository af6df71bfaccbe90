package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

const (
	// DefaultChannel is the Pub/Sub channel committed events are sent to.
	DefaultChannel = "nftmarket.events"

	queueSize      = 256
	publishTimeout = 3 * time.Second
)

// Publisher is the subset of the Redis client the bus uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Message is the JSON payload sent for each committed event.
type Message struct {
	Type        string            `json:"type"`
	Attributes  map[string]string `json:"attributes"`
	PublishedAt time.Time         `json:"publishedAt"`
}

// Bus forwards committed events to Redis Pub/Sub. Emit enqueues without
// blocking; Run performs the publishes.
type Bus struct {
	client  Publisher
	channel string
	logger  *slog.Logger
	queue   chan types.Event
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewClient dials Redis at addr.
func NewClient(addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("bus: redis address required")
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// New returns a bus publishing to channel.
func New(client Publisher, channel string, log *slog.Logger) (*Bus, error) {
	if client == nil {
		return nil, errors.New("bus: client required")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		client:  client,
		channel: channel,
		logger:  log.With("component", "bus", "channel", channel),
		queue:   make(chan types.Event, queueSize),
	}, nil
}

// Emit implements events.Emitter.
func (b *Bus) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	select {
	case b.queue <- rendered.Clone():
	default:
		b.dropped.Add(1)
	}
}

// Dropped counts events discarded because the queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Failed counts publishes Redis rejected.
func (b *Bus) Failed() uint64 { return b.failed.Load() }

// Run publishes queued events until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-b.queue:
			if err := b.Publish(ctx, evt); err != nil {
				b.failed.Add(1)
				b.logger.Warn("publish event", "type", evt.Type, "error", err)
			}
		}
	}
}

// Publish sends one event synchronously.
func (b *Bus) Publish(ctx context.Context, evt types.Event) error {
	payload, err := json.Marshal(Message{Type: evt.Type, Attributes: evt.Attributes, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("bus: encode %s: %w", evt.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.channel, err)
	}
	return nil
}
