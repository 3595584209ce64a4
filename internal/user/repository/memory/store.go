// Package memory is an in-process user store, useful for tests and single
// process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

type cloner[T any] interface {
	Clone() T
}

// Store keeps records in a map guarded by a RWMutex. List returns records
// sorted by id. Records implementing Clone() T are copied on the way in and
// out so callers cannot mutate stored state.
type Store[T repository.Record] struct {
	mu      sync.RWMutex
	records map[string]T
}

var _ repository.UserStore[model.User] = (*Store[model.User])(nil)

func New[T repository.Record]() *Store[T] {
	return &Store[T]{records: make(map[string]T)}
}

func (s *Store[T]) Add(ctx context.Context, record T) error {
	if err := ctx.Err(); err != nil {
		return repository.Storage("add user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.RecordID()
	if _, ok := s.records[id]; ok {
		return repository.Duplicate(id)
	}
	s.records[id] = clone(record)
	return nil
}

func (s *Store[T]) Update(ctx context.Context, record T) error {
	if err := ctx.Err(); err != nil {
		return repository.Storage("update user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := record.RecordID()
	if _, ok := s.records[id]; !ok {
		return repository.NotFound(id)
	}
	s.records[id] = clone(record)
	return nil
}

func (s *Store[T]) Remove(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, repository.Storage("remove user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return zero, repository.NotFound(id)
	}
	delete(s.records, id)
	return record, nil
}

func (s *Store[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, repository.Storage("fetch user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return zero, repository.NotFound(id)
	}
	return clone(record), nil
}

func (s *Store[T]) List(ctx context.Context, scopeID string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Storage("list users", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]T, 0)
	for _, record := range s.records {
		if record.RecordScope() == scopeID {
			result = append(result, clone(record))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordID() < result[j].RecordID()
	})
	return result, nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, repository.Storage("check user", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[id]
	return ok, nil
}

func clone[T any](record T) T {
	if c, ok := any(record).(cloner[T]); ok {
		return c.Clone()
	}
	return record
}
