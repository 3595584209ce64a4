package db

import (
	"context"
	"sync/atomic"
	"time"

	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/observability/metrics"
)

type CircuitBreaker struct {
	failures    atomic.Int32
	lastFailure atomic.Value
	threshold   int32
	timeout     time.Duration
	resetAfter  time.Duration
	name        string
	log         *logger.Logger
}

func NewCircuitBreaker(name string, threshold int32, timeout, resetAfter time.Duration, log *logger.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		threshold:  threshold,
		timeout:    timeout,
		resetAfter: resetAfter,
		name:       name,
		log:        log,
	}
	cb.lastFailure.Store(time.Time{})
	return cb
}

func (cb *CircuitBreaker) isOpen() bool {
	if cb.failures.Load() < cb.threshold {
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(0)
		return false
	}

	lastFailure := cb.lastFailure.Load().(time.Time)
	if lastFailure.IsZero() {
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(0)
		return false
	}

	if time.Since(lastFailure) > cb.resetAfter {
		cb.reset()
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(0)
		return false
	}

	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(1)
	return true
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures.Add(1)
	cb.lastFailure.Store(time.Now())
	metrics.CircuitBreakerFailures.WithLabelValues(cb.name).Inc()
	cb.log.Warnf("%s circuit breaker: failure recorded", cb.name)
}

func (cb *CircuitBreaker) reset() {
	cb.failures.Store(0)
	cb.lastFailure.Store(time.Time{})
}

// Call runs fn under the breaker's timeout. Failures for which isFailure
// returns false (missing rows, duplicates) do not count against the breaker.
func (cb *CircuitBreaker) Call(ctx context.Context, isFailure func(error) bool, fn func(context.Context) error) error {
	if cb.isOpen() {
		cb.log.Warnf("%s circuit breaker: circuit is open, rejecting request", cb.name)
		return commonerrors.ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && (isFailure == nil || isFailure(err)) {
		cb.recordFailure()
		return err
	}

	cb.reset()
	return err
}
