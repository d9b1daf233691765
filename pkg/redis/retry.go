package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tablevine/booking-risk/pkg/logger"
	"github.com/tablevine/booking-risk/pkg/resilience"
)

// ClientInterface is the surface the rest of the codebase depends on,
// so callers can be tested against a mock.
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

var _ ClientInterface = (*Client)(nil)

// Transient failures worth retrying: network trouble, pool pressure and
// redis states that resolve on their own (loading, failover, cluster
// slot migration).
var redisRetryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"timeout",
	"server closed",
	"unexpected eof",
	"pool timeout",
	"i/o timeout",
	"connection pool exhausted",
	"loading",
	"busy",
	"masterdown",
	"readonly",
	"noscript",
	"cluster",
	"moved",
	"ask",
	"tryagain",
	"clusterdown",
}

// Errors the caller has to fix: bad commands, type mismatches, auth.
var redisNonRetryableMessages = []string{
	"wrongtype",
	"err syntax",
	"err invalid",
	"noauth",
	"wrongpass",
	"noperm",
	"err unknown",
	"execabort",
}

// isRedisRetryable classifies a redis error. Unknown errors are treated
// as retryable; an extra attempt against redis is cheap.
func isRedisRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, goredis.Nil) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range redisRetryableMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	for _, pattern := range redisNonRetryableMessages {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	return true
}

// ConservativeRetryConfig backs off quickly enough for request-path
// redis calls.
func ConservativeRetryConfig() resilience.RetryConfig {
	cfg := resilience.ConservativeRetryConfig()
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.MaxBackoff = 1 * time.Second
	cfg.RetryableChecker = isRedisRetryable
	return cfg
}

// AggressiveRetryConfig suits background work where latency matters less
// than eventual success.
func AggressiveRetryConfig() resilience.RetryConfig {
	cfg := resilience.AggressiveRetryConfig()
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 500 * time.Millisecond
	cfg.RetryableChecker = isRedisRetryable
	return cfg
}

// RetryableOperation runs a typed redis operation under the conservative
// retry policy. The name is used for logging only.
func RetryableOperation[T any](ctx context.Context, op func(ctx context.Context) (T, error), name string) (T, error) {
	result, err := resilience.Retry(ctx, ConservativeRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		logger.WithContext(ctx).Warn("redis operation failed after retries",
			zap.String("operation", name),
			zap.Error(err),
		)
		var zero T
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}
