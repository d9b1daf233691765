package risk

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redispkg "github.com/tablevine/booking-risk/pkg/redis"
)

func newMockedRedisCache(t *testing.T) (*RedisVelocityCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	return NewRedisVelocityCache(&redispkg.Client{Client: db}), mock
}

func TestRedisVelocityCacheMissingKeyIsEmpty(t *testing.T) {
	cache, mock := newMockedRedisCache(t)
	mock.ExpectGet("risk:velocity:missing").RedisNil()

	ts, err := cache.GetTimestamps(context.Background(), "risk:velocity:missing")
	require.NoError(t, err)
	assert.Nil(t, ts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisVelocityCacheRoundTripsTimestamps(t *testing.T) {
	cache, mock := newMockedRedisCache(t)

	now := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)
	window := []time.Time{now, now.Add(time.Minute)}
	payload, err := json.Marshal(window)
	require.NoError(t, err)

	mock.ExpectSet("risk:velocity:abc", payload, submissionTTL).SetVal("OK")
	require.NoError(t, cache.PutTimestamps(context.Background(), "risk:velocity:abc", window, submissionTTL))

	mock.ExpectGet("risk:velocity:abc").SetVal(string(payload))
	got, err := cache.GetTimestamps(context.Background(), "risk:velocity:abc")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[0].Equal(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisVelocityCacheCounter(t *testing.T) {
	cache, mock := newMockedRedisCache(t)

	mock.ExpectIncr("risk:failed:abc").SetVal(4)
	mock.ExpectExpire("risk:failed:abc", failedAttemptTTL).SetVal(true)
	count, err := cache.IncrementCounter(context.Background(), "risk:failed:abc", failedAttemptTTL)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	mock.ExpectGet("risk:failed:abc").SetVal("4")
	count, err = cache.GetCounter(context.Background(), "risk:failed:abc")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	mock.ExpectGet("risk:failed:other").RedisNil()
	count, err = cache.GetCounter(context.Background(), "risk:failed:other")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryVelocityCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryVelocityCache()

	base := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	require.NoError(t, cache.PutTimestamps(ctx, "k", []time.Time{base}, 10*time.Minute))

	cache.now = func() time.Time { return base.Add(5 * time.Minute) }
	ts, err := cache.GetTimestamps(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, ts, 1)

	cache.now = func() time.Time { return base.Add(11 * time.Minute) }
	ts, err = cache.GetTimestamps(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestMemoryVelocityCacheCounterTTLSlides(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryVelocityCache()

	base := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	count, err := cache.IncrementCounter(ctx, "k", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Second increment inside the window extends it
	cache.now = func() time.Time { return base.Add(9 * time.Minute) }
	count, err = cache.IncrementCounter(ctx, "k", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	cache.now = func() time.Time { return base.Add(18 * time.Minute) }
	count, err = cache.GetCounter(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	cache.now = func() time.Time { return base.Add(30 * time.Minute) }
	count, err = cache.GetCounter(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
