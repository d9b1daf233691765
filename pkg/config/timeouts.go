package config

import "time"

// Default timeouts in seconds, used when nothing is configured.
const (
	DefaultRedisReadTimeout      = 3
	DefaultRedisWriteTimeout     = 3
	DefaultRedisOperationTimeout = 5
	DefaultDatabaseQueryTimeout  = 30
)

// TimeoutConfig holds per-operation timeouts in seconds. Zero values
// fall back to RedisOperationTimeout, then to the package defaults.
type TimeoutConfig struct {
	RedisReadTimeout      int
	RedisWriteTimeout     int
	RedisOperationTimeout int
}

// DefaultRedisReadTimeoutDuration returns the default read timeout.
func DefaultRedisReadTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisReadTimeout) * time.Second
}

// DefaultRedisWriteTimeoutDuration returns the default write timeout.
func DefaultRedisWriteTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisWriteTimeout) * time.Second
}

// RedisReadTimeoutDuration resolves the effective read timeout.
func (c TimeoutConfig) RedisReadTimeoutDuration() time.Duration {
	if c.RedisReadTimeout > 0 {
		return time.Duration(c.RedisReadTimeout) * time.Second
	}
	if c.RedisOperationTimeout > 0 {
		return time.Duration(c.RedisOperationTimeout) * time.Second
	}
	return DefaultRedisReadTimeoutDuration()
}

// RedisWriteTimeoutDuration resolves the effective write timeout.
func (c TimeoutConfig) RedisWriteTimeoutDuration() time.Duration {
	if c.RedisWriteTimeout > 0 {
		return time.Duration(c.RedisWriteTimeout) * time.Second
	}
	if c.RedisOperationTimeout > 0 {
		return time.Duration(c.RedisOperationTimeout) * time.Second
	}
	return DefaultRedisWriteTimeoutDuration()
}
