package mapper

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AlibekovAA/userstore/internal/user/domain"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

func TestEntityRoundTrip(t *testing.T) {
	for _, id := range []string{"alice", "user-123", "a b c"} {
		got, err := FromModel(ToModel(domain.New(id)))
		if err != nil {
			t.Fatalf("FromModel(%q): %v", id, err)
		}
		if got.ID() != id {
			t.Errorf("expected %q, got %q", id, got.ID())
		}
	}
}

func TestRecordRoundTripKeepsID(t *testing.T) {
	record := model.User{
		ID:          "alice",
		Scope:       "acme",
		DisplayName: "Alice",
		Attributes:  map[string]string{"team": "core"},
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	user, err := FromModel(record)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	back := ToModel(user)
	if back.ID != record.ID {
		t.Errorf("expected id %q, got %q", record.ID, back.ID)
	}
	if back.Scope != "" || back.DisplayName != "" || back.Attributes != nil {
		t.Errorf("record-only fields should be defaulted, got %+v", back)
	}
}

func TestFromModel_RejectsMalformedRecords(t *testing.T) {
	cases := []struct {
		name   string
		record model.User
	}{
		{"empty id", model.User{}},
		{"blank id", model.User{ID: "   "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromModel(tc.record)
			if !errors.Is(err, repository.ErrConversion) {
				t.Fatalf("expected ErrConversion, got %v", err)
			}
		})
	}
}

func TestFromModel_AcceptsLongIDs(t *testing.T) {
	id := strings.Repeat("é", 200)

	u, err := FromModel(model.User{ID: id})
	if err != nil {
		t.Fatalf("expected stored ids of any length to convert, got %v", err)
	}
	if u.ID() != id {
		t.Errorf("expected id to be kept, got %q", u.ID())
	}
}

func TestFromModels(t *testing.T) {
	users, err := FromModels([]model.User{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(users) != 2 || users[0].ID() != "a" || users[1].ID() != "b" {
		t.Errorf("unexpected users: %v", users)
	}

	if _, err := FromModels([]model.User{{ID: "a"}, {ID: ""}}); repository.KindOf(err) != repository.KindConversion {
		t.Fatalf("expected conversion kind, got %v", err)
	}

	empty, err := FromModels(nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty result, got %v %v", empty, err)
	}
}

func TestToModelInScope(t *testing.T) {
	m := ToModelInScope(domain.New("alice"), "acme")
	if m.ID != "alice" || m.Scope != "acme" {
		t.Errorf("unexpected model %+v", m)
	}
}
