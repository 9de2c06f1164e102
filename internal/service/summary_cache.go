package service

import (
	"context"
	"encoding/json"
	"fmt"
	"learner_insight/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const summaryCacheKeyPrefix = "insight:summary:"

// CachedSummarySource serves summaries from redis when possible and falls
// through to Source otherwise. Cache errors never fail a call.
type CachedSummarySource struct {
	Source SummarySource
	Redis  *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

func NewCachedSummarySource(source SummarySource, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedSummarySource {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedSummarySource{Source: source, Redis: rdb, TTL: ttl, Log: log}
}

func summaryCacheKey(q model.AnalyticsQuery) string {
	return fmt.Sprintf("%s%s:%s:%d:%d", summaryCacheKeyPrefix, q.LearnerID, q.ClassID, q.From.Unix(), q.To.Unix())
}

func (c *CachedSummarySource) Summary(ctx context.Context, q model.AnalyticsQuery) (model.SummaryMetrics, error) {
	if c.Redis == nil || c.TTL <= 0 {
		return c.Source.Summary(ctx, q)
	}

	key := summaryCacheKey(q)
	val, err := c.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached model.SummaryMetrics
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return cached, nil
		}
	case err != redis.Nil:
		c.Log.Debug("Summary cache read failed", zap.String("key", key), zap.Error(err))
	}

	summary, err := c.Source.Summary(ctx, q)
	if err != nil {
		return summary, err
	}
	if data, err := json.Marshal(summary); err == nil {
		if err := c.Redis.Set(ctx, key, data, c.TTL).Err(); err != nil {
			c.Log.Debug("Summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}
