// README: Redis client initialization for the place-details cache.
package infra

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// NewRedis returns a client; an unreachable server is logged, not fatal,
// because the cache degrades to direct provider lookups.
func NewRedis(ctx context.Context, addr string) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping failed: addr=%s err=%v", addr, err)
	}
	return client
}
