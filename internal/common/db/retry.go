package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"

	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/observability/metrics"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable decides whether a failed attempt may be repeated.
	// Nil means IsRetryablePgError.
	Retryable func(error) bool
	Backend   string
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
	Backend:      "postgres",
}

// IsRetryablePgError reports connection failures, serialization failures,
// deadlocks and lock timeouts.
func IsRetryablePgError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "08000", "08003", "08006", "08001", "08004", "08007", "08P01":
			return true
		case "40001", "40P01":
			return true
		case "55P03":
			return true
		}
	}

	return false
}

func RetryWithBackoff(ctx context.Context, log *logger.Logger, config RetryConfig, operation func() error) error {
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryablePgError
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				log.Infof("%s operation succeeded after %d attempts", config.Backend, attempt)
			}
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		metrics.UserStoreRetriesTotal.WithLabelValues(config.Backend).Inc()
		log.Warnf("%s operation failed (attempt %d/%d): %v, retrying in %v", config.Backend, attempt, config.MaxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("%s operation failed after %d attempts: %w", config.Backend, config.MaxAttempts, lastErr)
}
