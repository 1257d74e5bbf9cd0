package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// historyMaxLen caps the run history stream (XADD MAXLEN ~).
const historyMaxLen int64 = 1000

// SignalBus implements domain.SignalBus over Redis Pub/Sub and keeps a
// trimmed stream of everything published for late readers.
type SignalBus struct {
	c *Client
}

// NewSignalBus creates a SignalBus.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

// Publish sends payload to channel and appends it to the channel history.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	pipe := sb.c.rdb.Pipeline()
	pipe.Publish(ctx, channel, payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.historyKey(channel),
		MaxLen: historyMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads. Glob patterns use PSUBSCRIBE. The
// output is closed when ctx is done.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var ps *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		ps = sb.c.rdb.PSubscribe(ctx, channel)
	} else {
		ps = sb.c.rdb.Subscribe(ctx, channel)
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// History returns up to count of the most recent payloads published to
// channel, newest first.
func (sb *SignalBus) History(ctx context.Context, channel string, count int64) ([][]byte, error) {
	msgs, err := sb.c.rdb.XRevRangeN(ctx, sb.historyKey(channel), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: history %s: %w", channel, err)
	}
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		switch v := m.Values["payload"].(type) {
		case string:
			out = append(out, []byte(v))
		case []byte:
			out = append(out, v)
		}
	}
	return out, nil
}

func (sb *SignalBus) historyKey(channel string) string {
	return sb.c.key("history", strings.ReplaceAll(channel, ":", "_"))
}

var _ domain.SignalBus = (*SignalBus)(nil)
