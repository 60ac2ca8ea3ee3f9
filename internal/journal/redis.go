package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisStream is the stream key events are appended to.
const DefaultRedisStream = "kiosk:redemptions"

// redisMaxLen bounds the stream so an unattended kiosk cannot grow it forever.
const redisMaxLen = 100_000

// RedisJournal appends events to a Redis stream with XADD.
type RedisJournal struct {
	client redis.Cmdable
	stream string
	closer func() error
}

// NewRedisJournal creates a journal writing to stream through client.
func NewRedisJournal(client redis.Cmdable, stream string) *RedisJournal {
	if stream == "" {
		stream = DefaultRedisStream
	}
	j := &RedisJournal{client: client, stream: stream}
	if c, ok := client.(interface{ Close() error }); ok {
		j.closer = c.Close
	}
	return j
}

// Record appends the event as stream fields.
func (j *RedisJournal) Record(ctx context.Context, event Event) error {
	err := j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		MaxLen: redisMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":      event.ID.String(),
			"time":    event.Time.Format(time.RFC3339Nano),
			"session": event.Session,
			"source":  event.Source,
			"code":    event.Code,
			"outcome": event.Outcome,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append journal event to %s: %w", j.stream, err)
	}
	return nil
}

// Close closes the client if it supports closing.
func (j *RedisJournal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer()
}
