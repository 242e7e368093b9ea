package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smartflow/engine/internal/domain"
)

// streamMaxLen caps the durable stream via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// SignalBus publishes smart-flow signals over Redis. Pub/Sub gives live
// consumers the signal immediately; the stream keeps a bounded replay
// window for consumers that reconnect.
type SignalBus struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// NewSignalBus creates a SignalBus over the given client, channel and stream.
func NewSignalBus(c *Client, channel, stream string) *SignalBus {
	return &SignalBus{rdb: c.Underlying(), channel: channel, stream: stream}
}

// PublishSignal encodes the signal as JSON and mirrors it to both the
// Pub/Sub channel and the stream.
func (sb *SignalBus) PublishSignal(ctx context.Context, sig domain.SmartFlow) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	if err := sb.publish(ctx, payload); err != nil {
		return err
	}
	return sb.streamAppend(ctx, payload)
}

func (sb *SignalBus) publish(ctx context.Context, payload []byte) error {
	if err := sb.rdb.Publish(ctx, sb.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", sb.channel, err)
	}
	return nil
}

func (sb *SignalBus) streamAppend(ctx context.Context, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: sb.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", sb.stream, err)
	}
	return nil
}
