package service

import (
	"maps"

	"github.com/AlibekovAA/userstore/internal/user/model"
)

// RecordOption sets record fields the entity does not carry.
type RecordOption func(*model.User)

func WithScope(scope string) RecordOption {
	return func(u *model.User) {
		u.Scope = scope
	}
}

func WithDisplayName(name string) RecordOption {
	return func(u *model.User) {
		u.DisplayName = name
	}
}

func WithAttributes(attrs map[string]string) RecordOption {
	return func(u *model.User) {
		u.Attributes = maps.Clone(attrs)
	}
}
