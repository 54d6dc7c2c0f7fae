package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const feedGenerationKey = "notif:feed:gen"

// FeedCache keeps merged, unfiltered feeds in Redis. Keys embed a generation
// number so that one INCR invalidates every cached feed.
type FeedCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewFeedCache(rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *FeedCache {
	return &FeedCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "feed-cache"}),
	}
}

func (c *FeedCache) generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, feedGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func feedKey(gen string, q Query) string {
	return fmt.Sprintf("notif:feed:%s:%s:%s:%s:%d", gen, q.UserID, q.Role, q.TeamID, q.Window())
}

// Get returns the cached merged feed for q together with the generation it
// looked under. Any Redis failure is a miss, and an unreadable generation is
// returned as "".
func (c *FeedCache) Get(ctx context.Context, q Query) ([]Notification, string, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.miss("error", err)
		return nil, "", false
	}

	val, err := c.rdb.Get(ctx, feedKey(gen, q)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.miss("miss", nil)
		} else {
			c.miss("error", err)
		}
		return nil, gen, false
	}

	var items []Notification
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		c.miss("error", err)
		return nil, gen, false
	}
	metrics.FeedCacheLookups.WithLabelValues("hit").Inc()
	return items, gen, true
}

// Set stores items under gen, the generation seen by the Get that preceded
// the fetch. A feed built before an invalidation therefore lands under the
// old generation and is never served. An empty gen skips the write.
func (c *FeedCache) Set(ctx context.Context, gen string, q Query, items []Notification) {
	if gen == "" {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, feedKey(gen, q), data, c.ttl).Err(); err != nil {
		c.logger.Debug("feed cache write failed", map[string]interface{}{"error": err})
	}
}

// Invalidate bumps the generation so every cached feed is skipped. Stale keys
// expire with their TTL.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, feedGenerationKey).Err(); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	return nil
}

func (c *FeedCache) miss(result string, err error) {
	metrics.FeedCacheLookups.WithLabelValues(result).Inc()
	if err != nil {
		c.logger.Debug("feed cache lookup failed", map[string]interface{}{"error": err})
	}
}
