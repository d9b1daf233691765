package risk

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tablevine/booking-risk/pkg/redis"
)

// VenueVisit records one venue touched by a contact within the hop window
type VenueVisit struct {
	VenueID string    `json:"venue_id"`
	At      time.Time `json:"at"`
}

// VelocityCache is the narrow TTL key-value surface the behavioral analyzer
// depends on. Velocity windows use a read-modify-write pattern with no
// locking: concurrent submissions sharing a key can lose appends, so counts
// are approximate and eventually consistent. That is the accepted tradeoff,
// not a bug to paper over with transactions.
type VelocityCache interface {
	GetTimestamps(ctx context.Context, key string) ([]time.Time, error)
	PutTimestamps(ctx context.Context, key string, ts []time.Time, ttl time.Duration) error
	GetVenueVisits(ctx context.Context, key string) ([]VenueVisit, error)
	PutVenueVisits(ctx context.Context, key string, visits []VenueVisit, ttl time.Duration) error
	GetCounter(ctx context.Context, key string) (int, error)
	IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int, error)
}

// RedisVelocityCache stores velocity windows as JSON arrays in Redis
type RedisVelocityCache struct {
	client *redis.Client
}

// NewRedisVelocityCache creates a Redis-backed velocity cache
func NewRedisVelocityCache(client *redis.Client) *RedisVelocityCache {
	return &RedisVelocityCache{client: client}
}

var _ VelocityCache = (*RedisVelocityCache)(nil)

func (c *RedisVelocityCache) GetTimestamps(ctx context.Context, key string) ([]time.Time, error) {
	var ts []time.Time
	if err := c.getJSON(ctx, key, &ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (c *RedisVelocityCache) PutTimestamps(ctx context.Context, key string, ts []time.Time, ttl time.Duration) error {
	return c.putJSON(ctx, key, ts, ttl)
}

func (c *RedisVelocityCache) GetVenueVisits(ctx context.Context, key string) ([]VenueVisit, error) {
	var visits []VenueVisit
	if err := c.getJSON(ctx, key, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

func (c *RedisVelocityCache) PutVenueVisits(ctx context.Context, key string, visits []VenueVisit, ttl time.Duration) error {
	return c.putJSON(ctx, key, visits, ttl)
}

func (c *RedisVelocityCache) GetCounter(ctx context.Context, key string) (int, error) {
	val, err := c.client.GetString(ctx, key)
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *RedisVelocityCache) IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// Refresh the TTL on every increment so the window slides
	_ = c.client.Expire(ctx, key, ttl).Err()
	return int(count), nil
}

func (c *RedisVelocityCache) getJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := c.client.GetString(ctx, key)
	if err == goredis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (c *RedisVelocityCache) putJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.client.SetWithExpiration(ctx, key, raw, ttl)
}

// MemoryVelocityCache is an in-process VelocityCache for tests and local
// development. Entries expire lazily on read.
type MemoryVelocityCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	timestamps []time.Time
	visits     []VenueVisit
	counter    int
	expiresAt  time.Time
}

// NewMemoryVelocityCache creates an empty in-memory cache
func NewMemoryVelocityCache() *MemoryVelocityCache {
	return &MemoryVelocityCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var _ VelocityCache = (*MemoryVelocityCache)(nil)

func (c *MemoryVelocityCache) GetTimestamps(_ context.Context, key string) ([]time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return nil, nil
	}
	return append([]time.Time(nil), e.timestamps...), nil
}

func (c *MemoryVelocityCache) PutTimestamps(_ context.Context, key string, ts []time.Time, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		timestamps: append([]time.Time(nil), ts...),
		expiresAt:  c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryVelocityCache) GetVenueVisits(_ context.Context, key string) ([]VenueVisit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return nil, nil
	}
	return append([]VenueVisit(nil), e.visits...), nil
}

func (c *MemoryVelocityCache) PutVenueVisits(_ context.Context, key string, visits []VenueVisit, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		visits:    append([]VenueVisit(nil), visits...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryVelocityCache) GetCounter(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return 0, nil
	}
	return e.counter, nil
}

func (c *MemoryVelocityCache) IncrementCounter(_ context.Context, key string, ttl time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.live(key)
	e.counter++
	e.expiresAt = c.now().Add(ttl)
	c.entries[key] = e
	return e.counter, nil
}

// live returns the entry for key, dropping it if expired. Callers must hold mu.
func (c *MemoryVelocityCache) live(key string) (memoryEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
