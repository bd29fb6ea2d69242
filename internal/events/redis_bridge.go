package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBridge forwards every dispatched event onto a Redis pub/sub channel
// so out-of-process consumers (mailers, dashboards) can follow the ticket
// stream without a hook into this binary.
type RedisBridge struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBridge constructs the bridge.
func NewRedisBridge(client *redis.Client, channel string, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, logger: logger}
}

// Attach subscribes the bridge to every event type on the dispatcher.
func (b *RedisBridge) Attach(dispatcher Dispatcher) {
	if b.client == nil || dispatcher == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, b.forward)
	}
}

// forward publishes the event as JSON. Delivery is best effort; a Redis
// outage must not fail the ticket mutation that produced the event.
func (b *RedisBridge) forward(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("marshal event", zap.Error(err), zap.String("event_id", event.ID))
		return err
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Warn("publish event to redis",
			zap.Error(err),
			zap.String("channel", b.channel),
			zap.String("event_type", string(event.Type)))
		return err
	}
	return nil
}
