package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis carries the shared client used by the event queue and the health
// endpoint.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis. The read timeout must outlast the queue's
// blocking pop, which waits up to five seconds per poll.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})
	return &Redis{Client: client}
}

// Healthy verifies connectivity. The ping is bounded so a hung redis cannot
// stall the health endpoint.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}
