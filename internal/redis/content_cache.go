package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/metrics"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

const (
	KeyContentPrefix  = "player:content:"
	DefaultContentTTL = 10 * time.Minute
)

type ContentSource interface {
	FetchContent(ctx context.Context, contentID string) (model.Content, error)
}

// ContentCache is a read-through cache in front of a content provider. Redis
// errors are never surfaced: the first one trips the breaker and every later
// call goes straight to the source.
type ContentCache struct {
	rdb    *redis.Client
	source ContentSource
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.RWMutex
	disabled bool
}

func NewContentCache(rdb *redis.Client, source ContentSource, ttl time.Duration) *ContentCache {
	if ttl <= 0 {
		ttl = DefaultContentTTL
	}
	return &ContentCache{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
		logger: log.With().Str("component", "content_cache").Logger(),
	}
}

func (c *ContentCache) available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.rdb != nil
}

func (c *ContentCache) trip(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.mu.Lock()
	already := c.disabled
	c.disabled = true
	c.mu.Unlock()
	if !already {
		c.logger.Warn().Err(err).Str("operation", op).Msg("disabling content cache after redis error")
	}
}

func (c *ContentCache) FetchContent(ctx context.Context, contentID string) (model.Content, error) {
	key := KeyContentPrefix + contentID

	if c.available() {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var content model.Content
			if jsonErr := json.Unmarshal(data, &content); jsonErr == nil {
				metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
				return content, nil
			}
			c.logger.Debug().Str("key", key).Msg("discarding undecodable cache entry")
		case errors.Is(err, redis.Nil):
		default:
			c.trip(err, "get")
		}
	}
	metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()

	content, err := c.source.FetchContent(ctx, contentID)
	if err != nil {
		return model.Content{}, err
	}

	if c.available() {
		data, err := json.Marshal(content)
		if err == nil {
			c.trip(c.rdb.Set(ctx, key, data, c.ttl).Err(), "set")
		}
	}
	return content, nil
}

// Invalidate drops every cached descriptor.
func (c *ContentCache) Invalidate(ctx context.Context) error {
	if !c.available() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, KeyContentPrefix+"*", 100).Result()
		if err != nil {
			c.trip(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.trip(err, "delete")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug().Msg("content cache invalidated")
	return nil
}
