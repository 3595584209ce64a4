// Package repositorytest holds the behaviour every repository.UserStore
// backend must show, as a suite backends run from their own tests.
package repositorytest

import (
	"context"
	"testing"
	"time"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) repository.UserStore[model.User]

var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func NewUser(id, scope string) model.User {
	return model.User{
		ID:          id,
		Scope:       scope,
		DisplayName: "User " + id,
		Attributes:  map[string]string{"source": "suite"},
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
}

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, store repository.UserStore[model.User])
	}{
		{"AddThenFetch", testAddThenFetch},
		{"AddDuplicate", testAddDuplicate},
		{"FetchMissing", testFetchMissing},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateReplacesWholeRecord", testUpdateReplacesWholeRecord},
		{"RemoveMissing", testRemoveMissing},
		{"RemoveReturnsStoredRecord", testRemoveReturnsStoredRecord},
		{"AddAfterRemove", testAddAfterRemove},
		{"ExistsLifecycle", testExistsLifecycle},
		{"ListEmptyScope", testListEmptyScope},
		{"ListFiltersByScopeInIDOrder", testListFiltersByScope},
		{"UpdateMovesScope", testUpdateMovesScope},
		{"AliceLifecycle", testAliceLifecycle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func testAddThenFetch(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()
	want := NewUser("alice", "acme")

	if err := store.Add(ctx, want); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	AssertSameUser(t, want, got)
}

func testAddDuplicate(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("first add: %v", err)
	}

	second := NewUser("alice", "other")
	second.DisplayName = "Impostor"
	err := store.Add(ctx, second)
	if kind := repository.KindOf(err); kind != repository.KindDuplicate {
		t.Fatalf("expected duplicate, got %s (%v)", kind, err)
	}

	got, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.DisplayName != "User alice" || got.Scope != "acme" {
		t.Errorf("duplicate add must not overwrite, got %+v", got)
	}
}

func testFetchMissing(t *testing.T, store repository.UserStore[model.User]) {
	_, err := store.Fetch(context.Background(), "ghost")
	if kind := repository.KindOf(err); kind != repository.KindNotFound {
		t.Fatalf("expected not found, got %s (%v)", kind, err)
	}
}

func testUpdateMissing(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	err := store.Update(ctx, NewUser("ghost", "acme"))
	if kind := repository.KindOf(err); kind != repository.KindNotFound {
		t.Fatalf("expected not found, got %s (%v)", kind, err)
	}

	exists, err := store.Exists(ctx, "ghost")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("update of a missing record must not create it")
	}
}

func testUpdateReplacesWholeRecord(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}

	replacement := model.User{
		ID:          "alice",
		Scope:       "acme",
		DisplayName: "Alice Liddell",
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime.Add(time.Hour),
	}
	if err := store.Update(ctx, replacement); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	AssertSameUser(t, replacement, got)
}

func testRemoveMissing(t *testing.T, store repository.UserStore[model.User]) {
	_, err := store.Remove(context.Background(), "ghost")
	if kind := repository.KindOf(err); kind != repository.KindNotFound {
		t.Fatalf("expected not found, got %s (%v)", kind, err)
	}
}

func testRemoveReturnsStoredRecord(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()
	want := NewUser("alice", "acme")

	if err := store.Add(ctx, want); err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := store.Remove(ctx, "alice")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	AssertSameUser(t, want, removed)

	if _, err := store.Fetch(ctx, "alice"); repository.KindOf(err) != repository.KindNotFound {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if _, err := store.Remove(ctx, "alice"); repository.KindOf(err) != repository.KindNotFound {
		t.Fatalf("expected second remove to fail with not found, got %v", err)
	}
}

func testAddAfterRemove(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Remove(ctx, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Add(ctx, NewUser("alice", "globex")); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	members, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected old scope to be empty, got %+v", members)
	}
}

func testExistsLifecycle(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	assertExists(t, store, "alice", false)

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}
	assertExists(t, store, "alice", true)

	if _, err := store.Remove(ctx, "alice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertExists(t, store, "alice", false)
}

func testListEmptyScope(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}

	members, err := store.List(ctx, "nobody-here")
	if err != nil {
		t.Fatalf("expected no error for empty scope, got %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty list, got %+v", members)
	}
}

func testListFiltersByScope(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	for _, u := range []model.User{
		NewUser("carol", "acme"),
		NewUser("alice", "acme"),
		NewUser("dave", "globex"),
		NewUser("bob", "acme"),
	} {
		if err := store.Add(ctx, u); err != nil {
			t.Fatalf("add %s: %v", u.ID, err)
		}
	}

	members, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []string{"alice", "bob", "carol"}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %+v", len(want), members)
	}
	for i, id := range want {
		if members[i].ID != id {
			t.Errorf("member %d: expected %s, got %s", i, id, members[i].ID)
		}
		if members[i].Scope != "acme" {
			t.Errorf("member %d: expected scope acme, got %s", i, members[i].Scope)
		}
	}
}

func testUpdateMovesScope(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Update(ctx, NewUser("alice", "globex")); err != nil {
		t.Fatalf("update: %v", err)
	}

	acme, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("list acme: %v", err)
	}
	if len(acme) != 0 {
		t.Errorf("expected alice to leave acme, got %+v", acme)
	}

	globex, err := store.List(ctx, "globex")
	if err != nil {
		t.Fatalf("list globex: %v", err)
	}
	if len(globex) != 1 || globex[0].ID != "alice" {
		t.Errorf("expected alice in globex, got %+v", globex)
	}
}

func testAliceLifecycle(t *testing.T, store repository.UserStore[model.User]) {
	ctx := context.Background()

	if err := store.Add(ctx, NewUser("alice", "acme")); err != nil {
		t.Fatalf("add: %v", err)
	}

	fetched, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.ID != "alice" {
		t.Fatalf("expected alice, got %s", fetched.ID)
	}

	updated := fetched
	updated.DisplayName = "Alice v2"
	updated.Attributes = map[string]string{"plan": "pro"}
	updated.UpdatedAt = baseTime.Add(time.Minute)
	if err := store.Update(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	refetched, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	AssertSameUser(t, updated, refetched)

	removed, err := store.Remove(ctx, "alice")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	AssertSameUser(t, updated, removed)

	if _, err := store.Fetch(ctx, "alice"); repository.KindOf(err) != repository.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func assertExists(t *testing.T, store repository.UserStore[model.User], id string, want bool) {
	t.Helper()
	got, err := store.Exists(context.Background(), id)
	if err != nil {
		t.Fatalf("exists(%s): %v", id, err)
	}
	if got != want {
		t.Errorf("exists(%s) = %v, want %v", id, got, want)
	}
}

// AssertSameUser compares records field by field. Timestamps are compared as
// instants and a nil attribute map equals an empty one.
func AssertSameUser(t *testing.T, want, got model.User) {
	t.Helper()

	if got.ID != want.ID {
		t.Errorf("id: want %q, got %q", want.ID, got.ID)
	}
	if got.Scope != want.Scope {
		t.Errorf("scope: want %q, got %q", want.Scope, got.Scope)
	}
	if got.DisplayName != want.DisplayName {
		t.Errorf("display name: want %q, got %q", want.DisplayName, got.DisplayName)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at: want %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("updated_at: want %v, got %v", want.UpdatedAt, got.UpdatedAt)
	}
	if len(got.Attributes) != len(want.Attributes) {
		t.Errorf("attributes: want %v, got %v", want.Attributes, got.Attributes)
		return
	}
	for k, v := range want.Attributes {
		if got.Attributes[k] != v {
			t.Errorf("attribute %s: want %q, got %q", k, v, got.Attributes[k])
		}
	}
}
