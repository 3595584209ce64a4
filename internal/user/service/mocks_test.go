package service

import (
	"context"
	"io"

	"github.com/AlibekovAA/userstore/internal/common/logger"
	"github.com/AlibekovAA/userstore/internal/user/model"
	"github.com/AlibekovAA/userstore/internal/user/repository"
)

type mockStore struct {
	addFunc    func(ctx context.Context, u model.User) error
	updateFunc func(ctx context.Context, u model.User) error
	removeFunc func(ctx context.Context, id string) (model.User, error)
	fetchFunc  func(ctx context.Context, id string) (model.User, error)
	listFunc   func(ctx context.Context, scope string) ([]model.User, error)
	existsFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockStore) Add(ctx context.Context, u model.User) error {
	if m.addFunc != nil {
		return m.addFunc(ctx, u)
	}
	return nil
}

func (m *mockStore) Update(ctx context.Context, u model.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, u)
	}
	return nil
}

func (m *mockStore) Remove(ctx context.Context, id string) (model.User, error) {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, id)
	}
	return model.User{}, repository.NotFound(id)
}

func (m *mockStore) Fetch(ctx context.Context, id string) (model.User, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, id)
	}
	return model.User{}, repository.NotFound(id)
}

func (m *mockStore) List(ctx context.Context, scope string) ([]model.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, scope)
	}
	return []model.User{}, nil
}

func (m *mockStore) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, id)
	}
	return false, nil
}

type mockIDGenerator struct {
	newIDFunc func() (string, error)
}

func (m *mockIDGenerator) NewID() (string, error) {
	if m.newIDFunc != nil {
		return m.newIDFunc()
	}
	return "generated-id", nil
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "test", "debug")
}
