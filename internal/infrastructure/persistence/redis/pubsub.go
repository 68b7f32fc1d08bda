package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gamilit/rewards-engine/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB ADAPTER
// ══════════════════════════════════════════════════════════════════════════════

// PubSub adapts a Cache to messaging.RedisClient so the event bus can
// fan events out across worker instances.
type PubSub struct {
	cache *Cache
}

// NewPubSub creates a new PubSub adapter.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{cache: cache}
}

// Publish sends a message to a channel. Non-string payloads are
// serialized to JSON.
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := encodePayload(message)
	if err != nil {
		return err
	}
	return p.cache.Client().Publish(ctx, channel, payload).Err()
}

// Subscribe listens on the given channels until ctx is cancelled.
// The returned channel closes when the subscription ends.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.Client().Subscribe(ctx, channels...)

	// Force the subscription to be established before returning, so a
	// bad address fails here instead of silently dropping messages.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan messaging.RedisMessage)

	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection.
func (p *PubSub) Close() error {
	return p.cache.Close()
}

func encodePayload(message interface{}) (interface{}, error) {
	switch m := message.(type) {
	case string:
		return m, nil
	case []byte:
		return m, nil
	default:
		data, err := json.Marshal(message)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pubsub payload: %w", err)
		}
		return data, nil
	}
}
