package sink

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/receipt-printer/internal/queue"
)

// RedisSink PUBLISHes jobs on a pub/sub channel. A job published while no
// printer is subscribed is dropped by Redis; that is still a success here.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Publish(ctx context.Context, job queue.PrintJob) error {
	if s.client == nil {
		return unavailable("redis publish", redis.ErrClosed)
	}
	body, err := marshal(job)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return unavailable("redis publish", err)
	}
	return nil
}

// Close is a no-op; the client is shared with the rate limiter and
// closed by its owner.
func (s *RedisSink) Close() error { return nil }
