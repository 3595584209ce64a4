// Package sqlite implements the user store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AlibekovAA/userstore/internal/common/db"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/repository/sqlite/migrations"
)

const (
	backendName = "sqlite"
	userColumns = `id, scope, display_name, attributes, created_at, updated_at`
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store keeps users in a single SQLite table. List returns rows ordered by id.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.UserStore[model.User] = (*Store)(nil)

// Open opens (or creates) the database at path and applies the bundled
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := New(sqlDB)
	if err := store.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// New wraps an already opened handle. Call Migrate before first use if the
// schema may be missing.
func New(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

func (s *Store) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.sqlDB, migrations.FS)
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Add(ctx context.Context, user model.User) error {
	attrs, err := encodeAttributes(user.Attributes)
	if err != nil {
		return repository.Conversion(err)
	}

	start := time.Now()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		user.ID, user.Scope, user.DisplayName, attrs, toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err := db.HandleExecError(err, backendName, "add user", start); err != nil {
		return repository.Storage("add user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return repository.Storage("add user", err)
	}
	if n == 0 {
		return repository.Duplicate(user.ID)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, user model.User) error {
	attrs, err := encodeAttributes(user.Attributes)
	if err != nil {
		return repository.Conversion(err)
	}

	start := time.Now()
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET scope = ?, display_name = ?, attributes = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		user.Scope, user.DisplayName, attrs, toMillis(user.CreatedAt), toMillis(user.UpdatedAt), user.ID,
	)
	if err := db.HandleExecError(err, backendName, "update user", start); err != nil {
		return repository.Storage("update user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return repository.Storage("update user", err)
	}
	if n == 0 {
		return repository.NotFound(user.ID)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id string) (model.User, error) {
	start := time.Now()
	row := s.sqlDB.QueryRowContext(ctx, `DELETE FROM users WHERE id = ? RETURNING `+userColumns, id)
	user, err := scanUser(row)
	if err := db.HandleQueryError(err, sql.ErrNoRows, repository.NotFound(id), backendName, "remove user", start); err != nil {
		return model.User{}, repository.Storage("remove user", err)
	}
	return user, nil
}

func (s *Store) Fetch(ctx context.Context, id string) (model.User, error) {
	start := time.Now()
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err := db.HandleQueryError(err, sql.ErrNoRows, repository.NotFound(id), backendName, "fetch user", start); err != nil {
		return model.User{}, repository.Storage("fetch user", err)
	}
	return user, nil
}

func (s *Store) List(ctx context.Context, scopeID string) ([]model.User, error) {
	start := time.Now()
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE scope = ? ORDER BY id ASC`, scopeID)
	if err != nil {
		return nil, repository.Storage("list users", db.HandleQueryError(err, nil, nil, backendName, "list users", start))
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, repository.Storage("list users", err)
		}
		users = append(users, u)
	}
	if err := db.HandleQueryError(rows.Err(), nil, nil, backendName, "list users", start); err != nil {
		return nil, repository.Storage("list users", err)
	}
	return users, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err := db.HandleQueryError(err, nil, nil, backendName, "check user", start); err != nil {
		return false, repository.Storage("check user", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var attrs string
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &u.Scope, &u.DisplayName, &attrs, &createdAt, &updatedAt); err != nil {
		return model.User{}, err
	}

	if attrs != "" && attrs != "{}" {
		if err := json.Unmarshal([]byte(attrs), &u.Attributes); err != nil {
			return model.User{}, repository.Conversion(fmt.Errorf("user %q attributes: %w", u.ID, err))
		}
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
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
