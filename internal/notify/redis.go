package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/consultation-booking/internal/model"
)

// DefaultStreamMaxLen caps the stream; older entries are trimmed approximately.
const DefaultStreamMaxLen = 10000

// RedisStreamPublisher appends events to a Redis stream for consumers that
// read with XREAD or consumer groups.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client redis.Cmdable, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: DefaultStreamMaxLen}
}

func (p *RedisStreamPublisher) Dispatch(ctx context.Context, ev model.LifecycleEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":       string(ev.Type),
			"booking_id": ev.BookingID.String(),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
