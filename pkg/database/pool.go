package database

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tablevine/booking-risk/pkg/config"
	"github.com/tablevine/booking-risk/pkg/resilience"
)

// DBPool groups a primary connection pool with optional read replicas.
// Reads can be spread over replicas round-robin; writes always go to
// the primary.
type DBPool struct {
	Primary  *pgxpool.Pool
	Replicas []*pgxpool.Pool

	breaker *resilience.CircuitBreaker
	next    uint64
}

// NewDBPool connects to the primary and to every replica host listed in
// the config. When the breaker is enabled, Execute guards calls with it.
func NewDBPool(cfg *config.DatabaseConfig, serviceName string) (*DBPool, error) {
	primary, err := NewPostgresPool(cfg)
	if err != nil {
		return nil, err
	}

	var replicas []*pgxpool.Pool
	for _, host := range strings.Split(cfg.ReplicaHosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		replicaCfg := *cfg
		replicaCfg.Host = host
		replicaCfg.ReplicaHosts = ""
		replica, err := NewPostgresPool(&replicaCfg)
		if err != nil {
			return nil, fmt.Errorf("replica %s: %w", host, err)
		}
		replicas = append(replicas, replica)
	}

	pool := &DBPool{Primary: primary, Replicas: replicas}
	if cfg.Breaker.Enabled {
		settings := resilience.BuildSettings(
			sanitizeBreakerName(serviceName+" db"),
			cfg.Breaker.IntervalSeconds,
			cfg.Breaker.TimeoutSeconds,
			cfg.Breaker.FailureThreshold,
			cfg.Breaker.SuccessThreshold,
		)
		pool.breaker = resilience.NewCircuitBreaker(settings, resilience.GracefulDegradation(serviceName))
	}
	return pool, nil
}

// GetPrimary returns the write pool.
func (p *DBPool) GetPrimary() *pgxpool.Pool {
	return p.Primary
}

// GetReplica returns the next read replica, falling back to the primary
// when none are configured.
func (p *DBPool) GetReplica() *pgxpool.Pool {
	if len(p.Replicas) == 0 {
		return p.Primary
	}
	idx := atomic.AddUint64(&p.next, 1)
	return p.Replicas[idx%uint64(len(p.Replicas))]
}

// Execute runs the operation through the breaker when one is configured.
func (p *DBPool) Execute(ctx context.Context, op resilience.Operation) (interface{}, error) {
	if p.breaker == nil {
		return op(ctx)
	}
	return p.breaker.Execute(ctx, op)
}

// Close shuts down every pool.
func (p *DBPool) Close() {
	if p.Primary != nil {
		p.Primary.Close()
	}
	for _, replica := range p.Replicas {
		if replica != nil {
			replica.Close()
		}
	}
}

// sanitizeBreakerName normalizes a service name into a metric-safe
// breaker label.
func sanitizeBreakerName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// resolveQueryTimeout picks the first positive timeout, in seconds.
func resolveQueryTimeout(timeoutSeconds ...int) int {
	if len(timeoutSeconds) > 0 && timeoutSeconds[0] > 0 {
		return timeoutSeconds[0]
	}
	return config.DefaultDatabaseQueryTimeout
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// createStatementTimeoutCallback returns an AfterConnect hook that caps
// every statement on the connection, so a runaway query cannot hold a
// pool slot forever.
func createStatementTimeoutCallback(timeoutSeconds int) func(ctx context.Context, conn *pgx.Conn) error {
	return func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", timeoutSeconds*1000))
		return err
	}
}
