package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBridge publishes through a Redis channel so every server instance
// sees every event. Run relays what arrives on the channel into the local
// dispatcher; an instance's own events come back the same way. While the
// relay is down, events are delivered to this instance directly.
type RedisBridge struct {
	client   *redis.Client
	channel  string
	local    *Dispatcher
	logger   *slog.Logger
	relaying atomic.Bool
}

var _ Publisher = (*RedisBridge)(nil)

func NewRedisBridge(client *redis.Client, channel string, local *Dispatcher, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, local: local, logger: logger}
}

// Relaying reports whether Run is subscribed and feeding the dispatcher.
func (b *RedisBridge) Relaying() bool {
	return b.relaying.Load()
}

// Publish falls back to local delivery when Redis rejects the message or
// when nothing is relaying the channel back to this instance.
func (b *RedisBridge) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	relaying := b.relaying.Load()
	if err := b.client.Publish(ctx, b.channel, string(payload)).Err(); err != nil {
		b.local.Publish(ctx, e)
		return fmt.Errorf("redis publish %s: %w", e.Type, err)
	}
	if !relaying {
		b.local.Publish(ctx, e)
	}
	return nil
}

// Serve keeps Run alive until ctx is done, backing off between failed
// subscriptions.
func (b *RedisBridge) Serve(ctx context.Context, minBackoff, maxBackoff time.Duration) {
	backoff := minBackoff
	for {
		err := b.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("[STREAM] redis relay stopped, delivering locally", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Run blocks until ctx is done or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.relaying.Store(true)
	defer b.relaying.Store(false)
	b.logger.Info("[STREAM] relaying events from redis", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis channel %s closed", b.channel)
			}
			b.relay(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context, payload string) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		b.logger.Warn("[STREAM] discarding malformed relay message", "error", err)
		return
	}
	b.local.Publish(ctx, e)
}
