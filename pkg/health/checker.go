package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker probes a single dependency.
type Checker func() error

// CheckerConfig tunes how a checker probes its target.
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns the standard probe settings.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{Timeout: 2 * time.Second}
}

// DatabaseChecker probes a SQL database with the default config.
func DatabaseChecker(db *sql.DB) Checker {
	return DatabaseCheckerWithConfig(db, DefaultCheckerConfig())
}

// DatabaseCheckerWithConfig probes a SQL database.
func DatabaseCheckerWithConfig(db *sql.DB, config CheckerConfig) Checker {
	return func() error {
		if db == nil {
			return errors.New("database connection is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// RedisChecker probes a redis client with the default config.
func RedisChecker(client *redis.Client) Checker {
	return RedisCheckerWithConfig(client, DefaultCheckerConfig())
}

// RedisCheckerWithConfig probes a redis client.
func RedisCheckerWithConfig(client *redis.Client, config CheckerConfig) Checker {
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// HTTPEndpointChecker probes an HTTP endpoint with the default config.
func HTTPEndpointChecker(url string) Checker {
	return HTTPEndpointCheckerWithConfig(url, DefaultCheckerConfig())
}

// HTTPEndpointCheckerWithConfig probes an HTTP endpoint. Any status
// below 400 counts as healthy; redirects are not followed.
func HTTPEndpointCheckerWithConfig(url string, config CheckerConfig) Checker {
	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return func() error {
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("endpoint %s unreachable: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("endpoint %s returned status %d", url, resp.StatusCode)
		}
		return nil
	}
}

// GRPCEndpointChecker probes a gRPC endpoint.
// TODO: dial the health service once a gRPC dependency exists.
func GRPCEndpointChecker(addr string) Checker {
	return func() error {
		return nil
	}
}

// CompositeChecker runs a set of named checkers and reports every
// failure, each prefixed with "<name>.<check>".
func CompositeChecker(name string, checkers map[string]Checker) Checker {
	return func() error {
		var failures []string
		for checkName, check := range checkers {
			if err := check(); err != nil {
				failures = append(failures, fmt.Sprintf("%s.%s: %v", name, checkName, err))
			}
		}
		if len(failures) > 0 {
			return errors.New(strings.Join(failures, "; "))
		}
		return nil
	}
}

// AsyncChecker runs the checker in a goroutine and gives up after the
// timeout. Protects the health endpoint from a hung dependency.
func AsyncChecker(checker Checker, timeout time.Duration) Checker {
	return func() error {
		done := make(chan error, 1)
		go func() {
			done <- checker()
		}()

		select {
		case err := <-done:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("health check timeout after %v", timeout)
		}
	}
}

// CachedChecker memoizes a checker's result for a TTL so frequent
// health polls don't hammer the dependency.
type CachedChecker struct {
	checker  Checker
	cacheTTL time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	lastErr   error
}

// NewCachedChecker wraps a checker with a result cache.
func NewCachedChecker(checker Checker, cacheTTL time.Duration) *CachedChecker {
	return &CachedChecker{checker: checker, cacheTTL: cacheTTL}
}

// Check returns the cached result when fresh, otherwise re-probes.
func (c *CachedChecker) Check() error {
	c.mu.Lock()
	if !c.lastCheck.IsZero() && time.Since(c.lastCheck) < c.cacheTTL {
		err := c.lastErr
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	err := c.checker()

	c.mu.Lock()
	c.lastCheck = time.Now()
	c.lastErr = err
	c.mu.Unlock()
	return err
}
