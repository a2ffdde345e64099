// README: Redis cache for place lookups; route metrics always go to the provider.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const placeKeyPrefix = "place:"

// LocationResolver is implemented by Resolver and CachedResolver.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, placeID string) (Place, error)
	ComputeRoute(ctx context.Context, placeIDs []string) (RouteMetrics, error)
}

// CachedResolver serves ResolveLocation from Redis when possible. Cache
// failures are logged and fall through to the wrapped resolver.
type CachedResolver struct {
	next  LocationResolver
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedResolver(next LocationResolver, redis *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, redis: redis, ttl: ttl}
}

func (c *CachedResolver) ResolveLocation(ctx context.Context, placeID string) (Place, error) {
	key := placeKeyPrefix + placeID

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Place
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return p, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("place cache read failed: place_id=%s err=%v", placeID, err)
	}

	p, err := c.next.ResolveLocation(ctx, placeID)
	if err != nil {
		return Place{}, err
	}

	if b, jerr := json.Marshal(p); jerr == nil {
		if serr := c.redis.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			log.Printf("place cache write failed: place_id=%s err=%v", placeID, serr)
		}
	}
	return p, nil
}

func (c *CachedResolver) ComputeRoute(ctx context.Context, placeIDs []string) (RouteMetrics, error) {
	return c.next.ComputeRoute(ctx, placeIDs)
}
