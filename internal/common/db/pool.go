package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/userstore/internal/common/constants"
	"github.com/AlibekovAA/userstore/internal/common/logger"
)

type PoolConfig struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

// NewPool connects a pgx pool, retrying the initial connection. The caller
// owns the pool and must Close it.
func NewPool(ctx context.Context, log *logger.Logger, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	cfg.MaxConns = orDefault(pc.MaxConns, constants.DBPoolMaxOpenConns)
	cfg.MinConns = orDefault(pc.MinConns, constants.DBPoolMinOpenConns)
	cfg.MaxConnLifetime = constants.DBPoolConnMaxLifetime
	cfg.MaxConnIdleTime = constants.DBPoolConnMaxIdleTime
	cfg.HealthCheckPeriod = constants.DBPoolHealthCheck
	cfg.ConnConfig.ConnectTimeout = constants.DBPoolConnectTimeout
	if pc.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = pc.ConnectTimeout
	}
	cfg.ConnConfig.RuntimeParams = map[string]string{
		"application_name": "userstore",
	}

	maxAttempts := pc.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = constants.DBPoolMaxAttempts
	}
	delay := pc.RetryDelay
	if delay <= 0 {
		delay = constants.DBPoolRetryDelay
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := pgxpool.ConnectConfig(ctx, cfg)
		if err == nil {
			log.Infof("database connection pool initialized: max=%d, min=%d", cfg.MaxConns, cfg.MinConns)
			return pool, nil
		}

		log.Warnf("failed to connect to database (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt == maxAttempts {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts", maxAttempts)
}

func orDefault(v, fallback int32) int32 {
	if v > 0 {
		return v
	}
	return fallback
}
