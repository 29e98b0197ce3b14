package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
)

const (
	recentKey        = "chat:room:recent"
	recentVersionKey = "chat:room:version"
	recentTTL        = 1 * time.Hour
)

// RecentCache holds the ordered snapshot of the room in Redis (oldest at
// head). Every write bumps a version counter and drops the list; Warm only
// stores a snapshot if no write happened since it was read.
type RecentCache struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewRecentCache(rdb *redis.Client, logger zerolog.Logger) *RecentCache {
	return &RecentCache{rdb: rdb, logger: logger}
}

// Version returns the current write version, to be passed to Warm.
func (c *RecentCache) Version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, recentVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Get returns the cached snapshot. ok is false on a miss.
func (c *RecentCache) Get(ctx context.Context) ([]models.Message, bool) {
	raw, err := c.rdb.LRange(ctx, recentKey, 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	msgs := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if json.Unmarshal([]byte(r), &m) != nil {
			return nil, false
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// Warm stores msgs if the version is still the one observed before they
// were loaded.
func (c *RecentCache) Warm(ctx context.Context, version int64, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, recentVersionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, recentKey)
			for _, m := range msgs {
				data, err := json.Marshal(m)
				if err != nil {
					return err
				}
				pipe.RPush(ctx, recentKey, data)
			}
			pipe.Expire(ctx, recentKey, recentTTL)
			return nil
		})
		return err
	}, recentVersionKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		c.logger.Warn().Err(err).Msg("recent cache warm failed")
	}
}

// Invalidate records a write.
func (c *RecentCache) Invalidate(ctx context.Context) {
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, recentVersionKey)
	pipe.Del(ctx, recentKey)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("recent cache invalidate failed")
	}
}
