package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/repository/repositorytest"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestStore_Contract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.UserStore[model.User] {
		client, _ := setupTestRedis(t)
		return New[model.User](client, "test")
	})
}

func TestStore_KeyLayout(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := New[model.User](client, "app")
	ctx := context.Background()

	if err := store.Add(ctx, repositorytest.NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if !mr.Exists("app:user:alice") {
		t.Error("expected record key app:user:alice")
	}
	members, err := mr.SMembers("app:scope:acme")
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("expected scope set [alice], got %v", members)
	}
	if got := mr.HGet("app:scopes", "alice"); got != "acme" {
		t.Errorf("expected scope index acme, got %q", got)
	}

	if _, err := store.Remove(ctx, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if mr.Exists("app:user:alice") {
		t.Error("record key should be deleted")
	}
	if got := mr.HGet("app:scopes", "alice"); got != "" {
		t.Errorf("scope index entry should be deleted, got %q", got)
	}

	remaining, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected empty scope, got %+v", remaining)
	}
}

func TestStore_CorruptPayloadIsConversionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := New[model.User](client, "app")

	if err := mr.Set("app:user:alice", "{not json"); err != nil {
		t.Fatalf("set: %v", err)
	}

	_, err := store.Fetch(context.Background(), "alice")
	if !errors.Is(err, repository.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
}

func TestStore_UnreachableServerIsStorageError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	store := New[model.User](client, "app")
	mr.Close()

	ok, err := store.Exists(context.Background(), "alice")
	if ok {
		t.Error("exists must not report true on failure")
	}
	if kind := repository.KindOf(err); kind != repository.KindStorage {
		t.Errorf("expected storage error from exists, got %s (%v)", kind, err)
	}

	_, err = store.List(context.Background(), "acme")
	if kind := repository.KindOf(err); kind != repository.KindStorage {
		t.Errorf("expected storage error from list, got %s (%v)", kind, err)
	}
}

func TestStore_PrefixesIsolateStores(t *testing.T) {
	client, _ := setupTestRedis(t)
	a := New[model.User](client, "a")
	b := New[model.User](client, "b")
	ctx := context.Background()

	if err := a.Add(ctx, repositorytest.NewUser("alice", "acme")); err != nil {
		t.Fatalf("add to a: %v", err)
	}

	exists, err := b.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("exists in b: %v", err)
	}
	if exists {
		t.Error("store b must not see store a's records")
	}
	if err := b.Add(ctx, repositorytest.NewUser("alice", "acme")); err != nil {
		t.Fatalf("add to b: %v", err)
	}
}
