package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
	"github.com/AlibekovAA/userstore/internal/user/repository/repositorytest"
)

func TestStore_Contract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) repository.UserStore[model.User] {
		return New[model.User]()
	})
}

func TestStore_IsolatesStoredRecords(t *testing.T) {
	store := New[model.User]()
	ctx := context.Background()

	in := repositorytest.NewUser("alice", "acme")
	if err := store.Add(ctx, in); err != nil {
		t.Fatalf("add: %v", err)
	}
	in.Attributes["source"] = "mutated"

	got, err := store.Fetch(ctx, "alice")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Attributes["source"] != "suite" {
		t.Errorf("caller mutation leaked into store: %v", got.Attributes)
	}

	got.Attributes["source"] = "mutated again"
	again, _ := store.Fetch(ctx, "alice")
	if again.Attributes["source"] != "suite" {
		t.Errorf("fetched copy aliases stored record: %v", again.Attributes)
	}
}

func TestStore_CancelledContext(t *testing.T) {
	store := New[model.User]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Exists(ctx, "alice"); repository.KindOf(err) != repository.KindStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestStore_ConcurrentAddsKeepOneWinner(t *testing.T) {
	store := New[model.User]()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := repositorytest.NewUser("alice", fmt.Sprintf("scope-%d", i))
			if err := store.Add(ctx, u); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if repository.KindOf(err) != repository.KindDuplicate {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one successful add, got %d", wins)
	}
	if _, err := store.Fetch(ctx, "alice"); err != nil {
		t.Errorf("expected the winning record to be stored: %v", err)
	}
}
