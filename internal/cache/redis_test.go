package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheWithClient(client, time.Hour), mr
}

func TestRoutePlanRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	polyline := "_p~iF~ps|U"

	plan := &models.RoutePlan{
		ID:        uuid.New(),
		DriverID:  "D1",
		ShiftDate: "2026-10-19",
		Polyline:  &polyline,
		Stops: models.Stops{
			{StopID: "s1", OrderID: uuid.New(), Type: models.StopCustomerPickup, Sequence: 1},
		},
	}

	require.NoError(t, c.SetRoutePlan(ctx, plan))
	assert.True(t, mr.Exists("route-plan:D1:2026-10-19"))
	assert.Equal(t, time.Hour, mr.TTL("route-plan:D1:2026-10-19"))

	got, err := c.GetRoutePlan(ctx, "D1", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, polyline, *got.Polyline)
	require.Len(t, got.Stops, 1)
	assert.Equal(t, models.StopCustomerPickup, got.Stops[0].Type)
}

func TestGetRoutePlan_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.GetRoutePlan(context.Background(), "D1", "2026-10-19")

	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestPlanExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetRoutePlan(ctx, &models.RoutePlan{DriverID: "D1", ShiftDate: "2026-10-19"}))
	mr.FastForward(2 * time.Hour)

	_, err := c.GetRoutePlan(ctx, "D1", "2026-10-19")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDisabledCache(t *testing.T) {
	c, err := NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetRoutePlan(context.Background(), &models.RoutePlan{DriverID: "D1"}), ErrDisabled)
	_, err = c.GetRoutePlan(context.Background(), "D1", "2026-10-19")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
