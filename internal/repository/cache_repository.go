package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

// CacheRepository provides helpers around Redis for caching schedule and
// statistics payloads. A nil client disables caching.
type CacheRepository struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics cacheObserver
}

// NewCacheRepository constructs a cache repository. The metrics observer may
// be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger, metrics cacheObserver) *CacheRepository {
	return &CacheRepository{client: client, logger: logger, metrics: metrics}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.observe(false)
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	r.observe(true)
	return nil
}

func (r *CacheRepository) observe(hit bool) {
	if r.metrics != nil {
		r.metrics.RecordCacheOperation(hit)
	}
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// InvalidatePlan removes every cached entry associated with a study plan.
func (r *CacheRepository) InvalidatePlan(ctx context.Context, planID string) error {
	if r.client == nil {
		return nil
	}

	pattern := fmt.Sprintf("plan:%s:*", planID)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return nil
}

// ScheduleKey builds the cache key for a plan's schedule payload.
func ScheduleKey(planID string) string {
	return fmt.Sprintf("plan:%s:schedule", planID)
}

// StatisticsKey builds the cache key for a plan's statistics payload.
func StatisticsKey(planID string) string {
	return fmt.Sprintf("plan:%s:statistics", planID)
}
