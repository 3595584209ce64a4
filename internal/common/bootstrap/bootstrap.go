package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/userstore/internal/common/clock"
	"github.com/AlibekovAA/userstore/internal/common/config"
	"github.com/AlibekovAA/userstore/internal/common/constants"
	"github.com/AlibekovAA/userstore/internal/common/crypto"
	"github.com/AlibekovAA/userstore/internal/common/db"
	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/repository/dynamo"
	"github.com/AlibekovAA/userstore/internal/user/repository/memory"
	"github.com/AlibekovAA/userstore/internal/user/repository/postgres"
	redisstore "github.com/AlibekovAA/userstore/internal/user/repository/redis"
	"github.com/AlibekovAA/userstore/internal/user/repository/sqlite"
	"github.com/AlibekovAA/userstore/internal/user/service"
)

type App struct {
	Log       *logger.Logger
	Config    config.Config
	Store     repository.UserStore[model.User]
	Directory *service.Directory
	closer    io.Closer
}

type Options struct {
	// ConfigPath is an optional YAML file applied before the environment.
	ConfigPath  string
	ServiceName string
	// LogOutput receives console logs. Nil means stdout.
	LogOutput io.Writer
}

// NewApp loads configuration, opens the configured store and assembles the
// directory service on top of it.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	console := opts.LogOutput
	if console == nil {
		console = os.Stdout
	}
	log, err := logger.NewTo(console, cfg.LogDir, opts.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, closer, err := OpenStore(ctx, cfg, log)
	if err != nil {
		_ = log.Close()
		return nil, err
	}

	return &App{
		Log:    log,
		Config: cfg,
		Store:  store,
		Directory: service.NewDirectory(service.DirectoryDeps{
			Store:       store,
			Clock:       clock.NewRealClock(),
			IDGenerator: crypto.NewUUIDGenerator(),
			Log:         log,
		}),
		closer: closer,
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.closer.Close(), a.Log.Close())
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

var noopCloser = closerFunc(func() error { return nil })

// OpenStore builds the backend selected by cfg.Backend and wraps it with
// metrics and error logging. The returned closer releases the backend's
// connections.
func OpenStore(ctx context.Context, cfg config.Config, log *logger.Logger) (repository.UserStore[model.User], io.Closer, error) {
	store, closer, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(ctx, logger.Fields{
		"backend": cfg.Backend,
		"action":  "store_opened",
	}).Info("user store ready")

	return repository.Instrument(store, cfg.Backend, log), closer, nil
}

func openBackend(ctx context.Context, cfg config.Config, log *logger.Logger) (repository.UserStore[model.User], io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New[model.User](), noopCloser, nil
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, log)
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, store, nil
	case config.BackendRedis:
		return openRedis(ctx, cfg)
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:   cfg.Dynamo.Region,
			Profile:  cfg.Dynamo.Profile,
			Endpoint: cfg.Dynamo.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return dynamo.New[model.User](client, cfg.Dynamo.Table, constants.DynamoScopeIndex), noopCloser, nil
	default:
		return nil, nil, commonerrors.ErrUnknownBackend.WithCause(fmt.Errorf("backend %q", cfg.Backend))
	}
}

func openPostgres(ctx context.Context, cfg config.Config, log *logger.Logger) (repository.UserStore[model.User], io.Closer, error) {
	pool, err := db.NewPool(ctx, log, db.PoolConfig{
		URL:            cfg.Postgres.URL,
		MaxConns:       cfg.Postgres.MaxConns,
		MinConns:       cfg.Postgres.MinConns,
		ConnectTimeout: cfg.Postgres.ConnectTimeout,
		MaxAttempts:    constants.DBPoolMaxAttempts,
		RetryDelay:     constants.DBPoolRetryDelay,
	})
	if err != nil {
		return nil, nil, err
	}

	cb := db.NewCircuitBreaker(
		"postgres",
		constants.DefaultCircuitBreakerThreshold,
		constants.DefaultCircuitBreakerTimeout,
		constants.DefaultCircuitBreakerReset,
		log,
	)
	store := postgres.New(pool, log, postgres.WithCircuitBreaker(cb))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to apply postgres schema: %w", err)
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

	return store, closerFunc(func() error {
		stopMetrics()
		pool.Close()
		return nil
	}), nil
}

func openRedis(ctx context.Context, cfg config.Config) (repository.UserStore[model.User], io.Closer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return redisstore.New[model.User](client, cfg.Redis.Prefix), client, nil
}
