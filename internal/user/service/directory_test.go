package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AlibekovAA/userstore/internal/common/clock"
	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
	"github.com/AlibekovAA/userstore/internal/user/domain"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/repository/memory"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func setupDirectory(t *testing.T) (*Directory, *mockStore, *mockIDGenerator, *clock.MockClock) {
	t.Helper()
	store := &mockStore{}
	gen := &mockIDGenerator{}
	c := clock.NewMockClock(testNow)

	dir := NewDirectory(DirectoryDeps{
		Store:       store,
		Clock:       c,
		IDGenerator: gen,
		Log:         testLogger(),
	})
	return dir, store, gen, c
}

func TestDirectory_Register_Success(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)

	var added model.User
	store.addFunc = func(ctx context.Context, u model.User) error {
		added = u
		return nil
	}

	if err := dir.Register(context.Background(), "acme", domain.New("alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if added.ID != "alice" || added.Scope != "acme" {
		t.Errorf("unexpected record: %+v", added)
	}
	if !added.CreatedAt.Equal(testNow) || !added.UpdatedAt.Equal(testNow) {
		t.Errorf("expected timestamps from clock, got %v / %v", added.CreatedAt, added.UpdatedAt)
	}
}

func TestDirectory_Register_InvalidID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		cause error
	}{
		{"empty", "", ErrBlankID},
		{"whitespace", "  \t", ErrBlankID},
		{"too long", strings.Repeat("a", 129), ErrIDTooLong},
		{"control character", "ali\x00ce", ErrIDNotPrintable},
		{"invalid utf8", "ali\xffce", ErrIDNotPrintable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, store, _, _ := setupDirectory(t)
			store.addFunc = func(ctx context.Context, u model.User) error {
				t.Fatal("store must not be called for an invalid id")
				return nil
			}

			err := dir.Register(context.Background(), "acme", domain.New(tt.id))
			if !errors.Is(err, repository.ErrConversion) {
				t.Fatalf("expected conversion error, got %v", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("expected cause %v, got %v", tt.cause, err)
			}
		})
	}
}

func TestDirectory_Register_MaxLengthAccepted(t *testing.T) {
	dir, _, _, _ := setupDirectory(t)

	if err := dir.Register(context.Background(), "acme", domain.New(strings.Repeat("a", 128))); err != nil {
		t.Fatalf("expected 128-byte id to be accepted, got %v", err)
	}
}

func TestDirectory_Register_Duplicate(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.addFunc = func(ctx context.Context, u model.User) error {
		return repository.Duplicate(u.ID)
	}

	err := dir.Register(context.Background(), "acme", domain.New("alice"))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestDirectory_RegisterNew(t *testing.T) {
	dir, store, gen, _ := setupDirectory(t)
	gen.newIDFunc = func() (string, error) { return "0b5e7c1a-uuid", nil }

	var added model.User
	store.addFunc = func(ctx context.Context, u model.User) error {
		added = u
		return nil
	}

	u, err := dir.RegisterNew(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID() != "0b5e7c1a-uuid" || added.ID != u.ID() {
		t.Errorf("expected generated id to be stored, got %q / %q", u.ID(), added.ID)
	}
}

func TestDirectory_RegisterNew_GeneratorFailures(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		dir, _, gen, _ := setupDirectory(t)
		genErr := errors.New("entropy exhausted")
		gen.newIDFunc = func() (string, error) { return "", genErr }

		if _, err := dir.RegisterNew(context.Background(), "acme"); !errors.Is(err, genErr) {
			t.Fatalf("expected generator error, got %v", err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		dir, _, gen, _ := setupDirectory(t)
		gen.newIDFunc = func() (string, error) { return "", nil }

		if _, err := dir.RegisterNew(context.Background(), "acme"); !errors.Is(err, commonerrors.ErrEmptyUUID) {
			t.Fatalf("expected ErrEmptyUUID, got %v", err)
		}
	})
}

func TestDirectory_Get(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.fetchFunc = func(ctx context.Context, id string) (model.User, error) {
		return model.User{ID: id, Scope: "acme"}, nil
	}

	u, err := dir.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID() != "alice" {
		t.Errorf("expected alice, got %s", u.ID())
	}

	store.fetchFunc = nil
	if _, err := dir.Get(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDirectory_Get_CorruptRecord(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.fetchFunc = func(ctx context.Context, id string) (model.User, error) {
		return model.User{ID: ""}, nil
	}

	if _, err := dir.Get(context.Background(), "alice"); !errors.Is(err, repository.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
}

func TestDirectory_Rescope(t *testing.T) {
	dir, store, _, c := setupDirectory(t)
	c.Advance(time.Hour)

	stored := model.User{
		ID:          "alice",
		Scope:       "acme",
		DisplayName: "Alice",
		Attributes:  map[string]string{"plan": "pro"},
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	store.fetchFunc = func(ctx context.Context, id string) (model.User, error) {
		return stored, nil
	}

	var updated model.User
	store.updateFunc = func(ctx context.Context, u model.User) error {
		updated = u
		return nil
	}

	if err := dir.Rescope(context.Background(), "alice", "globex"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Scope != "globex" {
		t.Errorf("expected scope globex, got %s", updated.Scope)
	}
	if updated.DisplayName != "Alice" || updated.Attributes["plan"] != "pro" {
		t.Errorf("expected other fields to be kept, got %+v", updated)
	}
	if !updated.CreatedAt.Equal(testNow) {
		t.Errorf("created_at must not change, got %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expected updated_at from clock, got %v", updated.UpdatedAt)
	}
}

func TestDirectory_Amend(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.fetchFunc = func(ctx context.Context, id string) (model.User, error) {
		return model.User{ID: id, Scope: "acme", DisplayName: "Alice", CreatedAt: testNow}, nil
	}

	var updated model.User
	store.updateFunc = func(ctx context.Context, u model.User) error {
		updated = u
		return nil
	}

	renamed := func(u *model.User) { u.ID = "mallory" }
	got, err := dir.Amend(context.Background(), "alice",
		WithDisplayName("Alice Liddell"),
		WithAttributes(map[string]string{"plan": "pro"}),
		renamed,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ID != "alice" {
		t.Errorf("amend must not change the id, got %s", updated.ID)
	}
	if updated.DisplayName != "Alice Liddell" || updated.Attributes["plan"] != "pro" || updated.Scope != "acme" {
		t.Errorf("unexpected record: %+v", updated)
	}
	if got.DisplayName != updated.DisplayName {
		t.Errorf("expected returned record to match stored one, got %+v", got)
	}
}

func TestDirectory_Amend_UpdateFails(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.fetchFunc = func(ctx context.Context, id string) (model.User, error) {
		return model.User{ID: id}, nil
	}
	store.updateFunc = func(ctx context.Context, u model.User) error {
		return repository.NotFound(u.ID)
	}

	if _, err := dir.Amend(context.Background(), "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDirectory_Rescope_Missing(t *testing.T) {
	dir, _, _, _ := setupDirectory(t)

	if err := dir.Rescope(context.Background(), "ghost", "acme"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDirectory_Delete(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.removeFunc = func(ctx context.Context, id string) (model.User, error) {
		return model.User{ID: id, Scope: "acme"}, nil
	}

	u, err := dir.Delete(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID() != "alice" {
		t.Errorf("expected alice, got %s", u.ID())
	}
}

func TestDirectory_Members_StorageError(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.listFunc = func(ctx context.Context, scope string) ([]model.User, error) {
		return nil, repository.Storage("listing", errors.New("connection reset"))
	}

	if _, err := dir.Members(context.Background(), "acme"); !errors.Is(err, repository.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestDirectory_Exists_StorageErrorIsNotFalse(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)
	store.existsFunc = func(ctx context.Context, id string) (bool, error) {
		return false, repository.Storage("exists", errors.New("timeout"))
	}

	if _, err := dir.Exists(context.Background(), "alice"); !errors.Is(err, repository.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestDirectory_WithMemoryStore(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(DirectoryDeps{
		Store: memory.New[model.User](),
		Clock: clock.NewMockClock(testNow),
		Log:   testLogger(),
	})

	for _, id := range []string{"carol", "alice", "bob"} {
		if err := dir.Register(ctx, "acme", domain.New(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	if err := dir.Rescope(ctx, "bob", "globex"); err != nil {
		t.Fatalf("rescope: %v", err)
	}

	members, err := dir.Members(ctx, "acme")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 || members[0].ID() != "alice" || members[1].ID() != "carol" {
		t.Errorf("unexpected members: %+v", members)
	}

	removed, err := dir.Delete(ctx, "alice")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.ID() != "alice" {
		t.Errorf("expected alice removed, got %s", removed.ID())
	}

	exists, err := dir.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("alice should no longer exist")
	}
}

func TestDirectory_Register_Options(t *testing.T) {
	dir, store, _, _ := setupDirectory(t)

	var added model.User
	store.addFunc = func(ctx context.Context, u model.User) error {
		added = u
		return nil
	}

	attrs := map[string]string{"plan": "pro"}
	err := dir.Register(context.Background(), "acme", domain.New("alice"),
		WithDisplayName("Alice"),
		WithAttributes(attrs),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	attrs["plan"] = "free"
	if added.DisplayName != "Alice" || added.Attributes["plan"] != "pro" {
		t.Errorf("unexpected record: %+v", added)
	}
}

func TestDirectory_LongStoredIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.New[model.User]()
	dir := NewDirectory(DirectoryDeps{
		Store: store,
		Clock: clock.NewMockClock(testNow),
		Log:   testLogger(),
	})

	long := strings.Repeat("x", 129)
	for _, id := range []string{long, "alice"} {
		if err := store.Add(ctx, model.User{ID: id, Scope: "acme"}); err != nil {
			t.Fatalf("add %q: %v", id, err)
		}
	}

	members, err := dir.Members(ctx, "acme")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected both members, got %d", len(members))
	}

	got, err := dir.Get(ctx, long)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID() != long {
		t.Errorf("unexpected id %q", got.ID())
	}

	removed, err := dir.Delete(ctx, long)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.ID() != long {
		t.Errorf("unexpected removed id %q", removed.ID())
	}

	exists, err := store.Exists(ctx, long)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("expected the record to be gone")
	}
}
