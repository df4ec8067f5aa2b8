package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transport is the durable at-least-once channel between producer and
// workers. Dequeue blocks up to timeout and returns (nil, nil) when no
// descriptor was available.
type Transport interface {
	Enqueue(ctx context.Context, d Descriptor) error
	Dequeue(ctx context.Context, timeout time.Duration) (*Descriptor, error)
}

// RedisQueue implements Transport on a Redis list (LPUSH / BRPOP).
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

func (q *RedisQueue) Enqueue(ctx context.Context, d Descriptor) error {
	payload, err := d.Encode()
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.queueName, payload).Err()
}

// Dequeue bloquea hasta timeout esperando un descriptor (BRPOP).
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Descriptor, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			// Timeout sin trabajo: no es un error.
			return nil, nil
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return DecodeDescriptor(res[1])
}

var _ Transport = (*RedisQueue)(nil)
