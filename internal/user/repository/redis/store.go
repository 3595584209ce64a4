// Package redis implements the user store on Redis. Records are JSON strings;
// scope membership is kept in per-scope sets plus an id -> scope hash.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

// KEYS: record, scope index hash, scope set. ARGV: payload, id, scope.
var addScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return 0
	end
	redis.call("set", KEYS[1], ARGV[1])
	redis.call("hset", KEYS[2], ARGV[2], ARGV[3])
	redis.call("sadd", KEYS[3], ARGV[2])
	return 1
`)

// KEYS: record, scope index hash, new scope set. ARGV: payload, id, scope, scope key prefix.
var updateScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return 0
	end
	local old = redis.call("hget", KEYS[2], ARGV[2])
	if old then
		redis.call("srem", ARGV[4] .. old, ARGV[2])
	end
	redis.call("set", KEYS[1], ARGV[1])
	redis.call("hset", KEYS[2], ARGV[2], ARGV[3])
	redis.call("sadd", KEYS[3], ARGV[2])
	return 1
`)

// KEYS: record, scope index hash. ARGV: id, scope key prefix.
var removeScript = redis.NewScript(`
	local payload = redis.call("get", KEYS[1])
	if not payload then
		return false
	end
	local old = redis.call("hget", KEYS[2], ARGV[1])
	if old then
		redis.call("srem", ARGV[2] .. old, ARGV[1])
	end
	redis.call("hdel", KEYS[2], ARGV[1])
	redis.call("del", KEYS[1])
	return payload
`)

// Store is generic over any record type that JSON-encodes. List returns
// records sorted by id. The scripts derive the old scope set key from a
// prefix, so all keys of one store must live on a single node.
type Store[T repository.Record] struct {
	client *redis.Client
	prefix string
}

var _ repository.UserStore[model.User] = (*Store[model.User])(nil)

func New[T repository.Record](client *redis.Client, prefix string) *Store[T] {
	return &Store[T]{client: client, prefix: prefix}
}

func (s *Store[T]) recordKey(id string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, id)
}

func (s *Store[T]) scopePrefix() string {
	return s.prefix + ":scope:"
}

func (s *Store[T]) scopeKey(scope string) string {
	return s.scopePrefix() + scope
}

func (s *Store[T]) indexKey() string {
	return s.prefix + ":scopes"
}

func (s *Store[T]) Add(ctx context.Context, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return repository.Conversion(fmt.Errorf("encode record: %w", err))
	}

	id := record.RecordID()
	keys := []string{s.recordKey(id), s.indexKey(), s.scopeKey(record.RecordScope())}
	added, err := addScript.Run(ctx, s.client, keys, payload, id, record.RecordScope()).Int()
	if err != nil {
		return repository.Storage("add user", err)
	}
	if added == 0 {
		return repository.Duplicate(id)
	}
	return nil
}

func (s *Store[T]) Update(ctx context.Context, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return repository.Conversion(fmt.Errorf("encode record: %w", err))
	}

	id := record.RecordID()
	keys := []string{s.recordKey(id), s.indexKey(), s.scopeKey(record.RecordScope())}
	updated, err := updateScript.Run(ctx, s.client, keys, payload, id, record.RecordScope(), s.scopePrefix()).Int()
	if err != nil {
		return repository.Storage("update user", err)
	}
	if updated == 0 {
		return repository.NotFound(id)
	}
	return nil
}

func (s *Store[T]) Remove(ctx context.Context, id string) (T, error) {
	var zero T
	payload, err := removeScript.Run(ctx, s.client, []string{s.recordKey(id), s.indexKey()}, id, s.scopePrefix()).Text()
	if errors.Is(err, redis.Nil) {
		return zero, repository.NotFound(id)
	}
	if err != nil {
		return zero, repository.Storage("remove user", err)
	}
	return decode[T](id, payload)
}

func (s *Store[T]) Fetch(ctx context.Context, id string) (T, error) {
	var zero T
	payload, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return zero, repository.NotFound(id)
	}
	if err != nil {
		return zero, repository.Storage("fetch user", err)
	}
	return decode[T](id, payload)
}

func (s *Store[T]) List(ctx context.Context, scopeID string) ([]T, error) {
	ids, err := s.client.SMembers(ctx, s.scopeKey(scopeID)).Result()
	if err != nil {
		return nil, repository.Storage("list users", err)
	}

	records := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, repository.Storage("list users", err)
	}

	for i, v := range values {
		payload, ok := v.(string)
		if !ok {
			// removed between SMEMBERS and MGET
			continue
		}
		record, err := decode[T](ids[i], payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Store[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.recordKey(id)).Result()
	if err != nil {
		return false, repository.Storage("check user", err)
	}
	return n > 0, nil
}

func decode[T any](id, payload string) (T, error) {
	var record T
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		var zero T
		return zero, repository.Conversion(fmt.Errorf("decode record %q: %w", id, err))
	}
	return record, nil
}
