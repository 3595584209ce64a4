// Package postgres implements the user store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/userstore/internal/common/db"
	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

const (
	backendName     = "postgres"
	uniqueViolation = "23505"
	userColumns     = `id, scope, display_name, attributes::text, created_at, updated_at`
)

//go:embed schema.sql
var schemaSQL string

// Store persists users in the users table. List returns rows ordered by id.
type Store struct {
	pool  *pgxpool.Pool
	log   *logger.Logger
	retry db.RetryConfig
	cb    *db.CircuitBreaker
}

var _ repository.UserStore[model.User] = (*Store)(nil)

type Option func(*Store)

func WithRetry(cfg db.RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

func WithCircuitBreaker(cb *db.CircuitBreaker) Option {
	return func(s *Store) {
		s.cb = cb
	}
}

// New wraps a pool owned by the caller; the store never closes it.
func New(pool *pgxpool.Pool, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		pool:  pool,
		log:   log,
		retry: db.DefaultRetryConfig,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schemaSQL)
	return db.HandleExecError(err, backendName, "ensure schema", start)
}

func (s *Store) Add(ctx context.Context, user model.User) error {
	attrs, err := encodeAttributes(user.Attributes)
	if err != nil {
		return repository.Conversion(err)
	}

	err = s.runOnce(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := s.pool.Exec(
			ctx,
			`INSERT INTO users (id, scope, display_name, attributes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
			user.ID,
			user.Scope,
			user.DisplayName,
			attrs,
			user.CreatedAt,
			user.UpdatedAt,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			db.MeasureQueryDuration(backendName, "add user", start)
			return repository.Duplicate(user.ID)
		}
		return db.HandleExecError(err, backendName, "add user", start)
	})
	return repository.Storage("add user", err)
}

func (s *Store) Update(ctx context.Context, user model.User) error {
	attrs, err := encodeAttributes(user.Attributes)
	if err != nil {
		return repository.Conversion(err)
	}

	err = s.run(ctx, func(ctx context.Context) error {
		start := time.Now()
		tag, err := s.pool.Exec(
			ctx,
			`UPDATE users
			 SET scope = $2, display_name = $3, attributes = $4::jsonb, created_at = $5, updated_at = $6
			 WHERE id = $1`,
			user.ID,
			user.Scope,
			user.DisplayName,
			attrs,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err := db.HandleExecError(err, backendName, "update user", start); err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.NotFound(user.ID)
		}
		return nil
	})
	return repository.Storage("update user", err)
}

func (s *Store) Remove(ctx context.Context, id string) (model.User, error) {
	var user model.User
	err := s.runOnce(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := s.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id)
		var err error
		user, err = scanUser(row)
		return db.HandleQueryError(err, pgx.ErrNoRows, repository.NotFound(id), backendName, "remove user", start)
	})
	if err != nil {
		return model.User{}, repository.Storage("remove user", err)
	}
	return user, nil
}

func (s *Store) Fetch(ctx context.Context, id string) (model.User, error) {
	var user model.User
	err := s.run(ctx, func(ctx context.Context) error {
		start := time.Now()
		row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		var err error
		user, err = scanUser(row)
		return db.HandleQueryError(err, pgx.ErrNoRows, repository.NotFound(id), backendName, "fetch user", start)
	})
	if err != nil {
		return model.User{}, repository.Storage("fetch user", err)
	}
	return user, nil
}

func (s *Store) List(ctx context.Context, scopeID string) ([]model.User, error) {
	var users []model.User
	err := s.run(ctx, func(ctx context.Context) error {
		start := time.Now()
		rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE scope = $1 ORDER BY id ASC`, scopeID)
		if err != nil {
			return db.HandleQueryError(err, nil, nil, backendName, "list users", start)
		}
		defer rows.Close()

		users = make([]model.User, 0)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return db.HandleQueryError(err, nil, nil, backendName, "scan user", start)
			}
			users = append(users, u)
		}

		return db.HandleQueryError(rows.Err(), nil, nil, backendName, "list users", start)
	})
	if err != nil {
		return nil, repository.Storage("list users", err)
	}
	return users, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.run(ctx, func(ctx context.Context) error {
		start := time.Now()
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
		return db.HandleQueryError(err, nil, nil, backendName, "check user", start)
	})
	if err != nil {
		return false, repository.Storage("check user", err)
	}
	return exists, nil
}

// run retries transient failures. Only statements that give the same outcome
// when repeated go through it: reads and the whole-row UPDATE.
func (s *Store) run(ctx context.Context, fn func(context.Context) error) error {
	return db.RetryWithBackoff(ctx, s.log, s.retry, func() error {
		return s.runOnce(ctx, fn)
	})
}

// runOnce is for INSERT and DELETE ... RETURNING. A commit whose
// acknowledgement was lost would be reported as Duplicate or NotFound on a
// second attempt.
func (s *Store) runOnce(ctx context.Context, fn func(context.Context) error) error {
	if s.cb == nil {
		return fn(ctx)
	}
	return s.cb.Call(ctx, isBackendFailure, fn)
}

// isBackendFailure keeps contract outcomes such as missing rows from
// tripping the circuit breaker.
func isBackendFailure(err error) bool {
	switch repository.KindOf(err) {
	case repository.KindNotFound, repository.KindDuplicate, repository.KindConversion:
		return false
	default:
		return true
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var attrs string
	if err := row.Scan(&u.ID, &u.Scope, &u.DisplayName, &attrs, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}

	decoded, err := decodeAttributes(attrs)
	if err != nil {
		return model.User{}, repository.Conversion(fmt.Errorf("user %q attributes: %w", u.ID, err))
	}
	u.Attributes = decoded
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(raw), nil
}

func decodeAttributes(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
