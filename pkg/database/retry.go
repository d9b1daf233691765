package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tablevine/booking-risk/pkg/resilience"
)

// SQLSTATE codes that signal a transient condition: serialization and
// lock conflicts, connection trouble, server shutdown and resource
// pressure that clears on its own.
var postgresRetryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"53000": true, // insufficient_resources
	"53300": true, // too_many_connections
	"53400": true, // configuration_limit_exceeded
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"58000": true, // system_error
	"XX000": true, // internal_error
}

var postgresRetryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"temporary failure",
	"timeout",
	"too many connections",
	"server closed",
}

// isPostgresRetryable classifies a database error. Unlike redis, the
// default for unknown errors is NOT retryable: repeating a failed write
// is riskier than repeating a cache read.
func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresRetryableCodes[pgErr.Code]
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range postgresRetryableMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// ConservativeRetryConfig retries a database call once. Safe for reads
// and idempotent writes.
func ConservativeRetryConfig() resilience.RetryConfig {
	cfg := resilience.ConservativeRetryConfig()
	cfg.RetryableChecker = isPostgresRetryable
	return cfg
}

// AggressiveRetryConfig suits read-only queries against replicas.
func AggressiveRetryConfig() resilience.RetryConfig {
	cfg := resilience.AggressiveRetryConfig()
	cfg.RetryableChecker = isPostgresRetryable
	return cfg
}
