package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when an operation is rejected because its
// circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Operation is any unit of work that can be executed through a breaker
// or a retry loop.
type Operation func(ctx context.Context) (interface{}, error)

// Settings tunes a circuit breaker. FailureThreshold counts consecutive
// failures before the breaker opens; SuccessThreshold is the number of
// trial requests allowed in half-open state.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// CircuitBreaker wraps gobreaker with metrics and a fallback path.
type CircuitBreaker struct {
	name     string
	breaker  *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker builds a breaker from settings. A nil fallback
// defaults to NoopFallback.
func NewCircuitBreaker(settings Settings, fallback FallbackFunc) *CircuitBreaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}

	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
		},
	}

	cb := &CircuitBreaker{
		name:     name,
		breaker:  gobreaker.NewCircuitBreaker(st),
		fallback: fallback,
	}
	recordBreakerState(name, cb.breaker.State())
	return cb
}

// Name returns the breaker's metric label.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute runs the operation through the breaker. When the breaker is
// open the fallback is invoked instead.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	recordBreakerRequest(cb.name)

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		recordBreakerFailure(cb.name)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			recordBreakerFallback(cb.name)
			return cb.fallback(ctx, err)
		}
	}
	return result, err
}
