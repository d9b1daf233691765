package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tablevine/booking-risk/pkg/config"
)

// IdentityType distinguishes authenticated callers from anonymous ones
type IdentityType int

const (
	IdentityAnonymous IdentityType = iota
	IdentityAuthenticated
)

// Rule is the effective limit applied to one (endpoint, identity) pair
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result describes the outcome of a rate limit check
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfter   time.Duration
	Limit        int
	Window       time.Duration
	ResetAfter   time.Duration
	IdentityKey  string
	EndpointKey  string
	IdentityType IdentityType
}

// slidingWindowScript counts requests in a fixed window, atomically. Returns
// {allowed, remaining, retry_after_ms, reset_after_ms}.
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local window_ms = tonumber(ARGV[3])

local count = redis.call("INCR", key)
if count == 1 then
	redis.call("PEXPIRE", key, window_ms)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
	ttl = window_ms
end

local cap = limit + burst
if count > cap then
	return {0, 0, ttl, ttl}
end

return {1, cap - count, 0, ttl}
`

// Limiter applies per-endpoint, per-identity request limits backed by Redis
type Limiter struct {
	client *redis.Client
	script *redis.Script
	cfg    config.RateLimitConfig
	now    func() time.Time
}

// NewLimiter creates a rate limiter over the given Redis client
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithNow overrides the limiter's clock
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// RuleFor resolves the effective rule for an endpoint and identity class.
// An endpoint override replaces the burst outright and the limit/window only
// when set to a positive value.
func (l *Limiter) RuleFor(endpoint string, identity IdentityType) Rule {
	rule := Rule{Window: l.cfg.Window()}
	if identity == IdentityAuthenticated {
		rule.Limit = l.cfg.DefaultLimit
		rule.Burst = l.cfg.DefaultBurst
	} else {
		rule.Limit = l.cfg.AnonymousLimit
		rule.Burst = l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		var limit, burst int
		if identity == IdentityAuthenticated {
			limit, burst = override.AuthenticatedLimit, override.AuthenticatedBurst
		} else {
			limit, burst = override.AnonymousLimit, override.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		rule.Burst = burst
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
	}

	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Allow checks and consumes one request slot. A disabled limiter or a
// non-positive limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string, rule Rule, identityType IdentityType) (Result, error) {
	result := Result{
		Limit:        rule.Limit,
		Window:       rule.Window,
		IdentityKey:  identity,
		EndpointKey:  endpoint,
		IdentityType: identityType,
	}

	if !l.cfg.Enabled || rule.Limit <= 0 {
		result.Allowed = true
		result.Remaining = rule.Limit
		if result.Remaining < 0 {
			result.Remaining = 0
		}
		return result, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}

	key := l.cfg.RedisPrefix + ":" + endpoint + ":" + identity
	raw, err := l.script.Run(ctx, l.client, []string{key},
		rule.Limit,
		rule.Burst,
		window.Milliseconds(),
	).Result()
	if err != nil {
		// Redis down: let the request through rather than failing the API
		result.Allowed = true
		result.Remaining = rule.Limit
		return result, nil
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) < 4 {
		result.Allowed = true
		result.Remaining = rule.Limit
		return result, nil
	}

	result.Allowed = toInt(vals[0]) == 1
	result.Remaining = toInt(vals[1])
	result.RetryAfter = time.Duration(toFloat(vals[2])) * time.Millisecond
	result.ResetAfter = time.Duration(toFloat(vals[3])) * time.Millisecond
	return result, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 10, 64)
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
