package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/common/constants"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendDynamo   = "dynamodb"
)

type Config struct {
	Backend      string        `yaml:"backend" env:"USERSTORE_BACKEND"`
	LogDir       string        `yaml:"log_dir" env:"USERSTORE_LOG_DIR"`
	LogLevel     string        `yaml:"log_level" env:"USERSTORE_LOG_LEVEL"`
	QueryTimeout time.Duration `yaml:"query_timeout" env:"USERSTORE_QUERY_TIMEOUT"`

	Postgres PostgresConfig `yaml:"postgres" envPrefix:"USERSTORE_POSTGRES_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" envPrefix:"USERSTORE_SQLITE_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"USERSTORE_REDIS_"`
	Dynamo   DynamoConfig   `yaml:"dynamodb" envPrefix:"USERSTORE_DYNAMODB_"`
}

type PostgresConfig struct {
	URL            string        `yaml:"url" env:"URL"`
	MaxConns       int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns       int32         `yaml:"min_conns" env:"MIN_CONNS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

type DynamoConfig struct {
	Table    string `yaml:"table" env:"TABLE"`
	Region   string `yaml:"region" env:"REGION"`
	Profile  string `yaml:"profile" env:"PROFILE"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

func Default() Config {
	return Config{
		Backend:      constants.DefaultBackend,
		LogLevel:     "info",
		QueryTimeout: constants.DBQueryTimeout,
		Postgres: PostgresConfig{
			MaxConns:       constants.DBPoolMaxOpenConns,
			MinConns:       constants.DBPoolMinOpenConns,
			ConnectTimeout: constants.DBPoolConnectTimeout,
		},
		SQLite: SQLiteConfig{Path: constants.DefaultSQLitePath},
		Redis: RedisConfig{
			Addr:   constants.DefaultRedisAddr,
			Prefix: constants.DefaultRedisPrefix,
		},
		Dynamo: DynamoConfig{
			Table:  constants.DefaultDynamoTable,
			Region: constants.DefaultAWSRegion,
		},
	}
}

// Load starts from defaults, applies the YAML file at path when one is given,
// then lets USERSTORE_* environment variables override individual values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		return required("USERSTORE_POSTGRES_URL", c.Postgres.URL)
	case BackendSQLite:
		return required("USERSTORE_SQLITE_PATH", c.SQLite.Path)
	case BackendRedis:
		return required("USERSTORE_REDIS_ADDR", c.Redis.Addr)
	case BackendDynamo:
		return errors.Join(
			required("USERSTORE_DYNAMODB_TABLE", c.Dynamo.Table),
			required("USERSTORE_DYNAMODB_REGION", c.Dynamo.Region),
		)
	default:
		return commonerrors.ErrUnknownBackend.WithCause(fmt.Errorf("%q", c.Backend))
	}
}

func required(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return commonerrors.ErrMissingRequiredConfig.WithCause(fmt.Errorf("%s", key))
	}
	return nil
}
