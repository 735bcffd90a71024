package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/models"
)

// ErrCacheMiss is returned when a key is absent
var ErrCacheMiss = errors.New("key not found in cache")

// ErrDisabled is returned by every operation on a disabled cache
var ErrDisabled = errors.New("cache is disabled")

const defaultPlanTTL = 24 * time.Hour

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
	planTTL time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisCacheWithClient(client, cfg.PlanTTL), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, planTTL time.Duration) *RedisCache {
	if planTTL <= 0 {
		planTTL = defaultPlanTTL
	}
	return &RedisCache{client: client, enabled: true, planTTL: planTTL}
}

// Get retrieves a JSON value from cache
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return ErrDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores a JSON value in cache with an expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return ErrDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

// GetRoutePlan returns the cached plan for a driver's shift
func (c *RedisCache) GetRoutePlan(ctx context.Context, driverID string, shift models.Date) (*models.RoutePlan, error) {
	var plan models.RoutePlan
	if err := c.Get(ctx, RoutePlanKey(driverID, shift), &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SetRoutePlan caches a plan as the latest for its driver and shift
func (c *RedisCache) SetRoutePlan(ctx context.Context, plan *models.RoutePlan) error {
	return c.Set(ctx, RoutePlanKey(plan.DriverID, plan.ShiftDate), plan, c.planTTL)
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// RoutePlanKey generates the cache key of a driver's plan for a shift
func RoutePlanKey(driverID string, shift models.Date) string {
	return fmt.Sprintf("route-plan:%s:%s", driverID, shift)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
