package repository

import (
	"errors"
	"fmt"

	commonerrors "github.com/AlibekovAA/userstore/internal/common/errors"
)

var (
	ErrDuplicate = commonerrors.NewDomainError(
		"USER_ALREADY_EXISTS",
		commonerrors.CategoryConflict,
		"user already exists",
	)

	ErrNotFound = commonerrors.NewDomainError(
		"USER_NOT_FOUND",
		commonerrors.CategoryNotFound,
		"user not found",
	)

	ErrStorage = commonerrors.NewDomainError(
		"USER_STORAGE_FAILURE",
		commonerrors.CategoryInternal,
		"user storage failure",
	)

	ErrConversion = commonerrors.NewDomainError(
		"USER_CONVERSION_FAILED",
		commonerrors.CategoryValidation,
		"user record conversion failed",
	)
)

type Kind int

const (
	KindUnknown Kind = iota
	KindDuplicate
	KindNotFound
	KindStorage
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

func Duplicate(id string) error {
	return ErrDuplicate.WithCause(fmt.Errorf("id %q", id))
}

func NotFound(id string) error {
	return ErrNotFound.WithCause(fmt.Errorf("id %q", id))
}

// Storage wraps a backend failure. Errors that already carry a kind are
// returned unchanged so they are never reclassified.
func Storage(operation string, cause error) error {
	if cause == nil {
		return nil
	}
	if KindOf(cause) != KindUnknown {
		return cause
	}
	return ErrStorage.WithCause(fmt.Errorf("%s: %w", operation, cause))
}

func Conversion(cause error) error {
	return ErrConversion.WithCause(cause)
}

// KindOf reports which contract error kind err carries.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrConversion):
		return KindConversion
	default:
		return KindUnknown
	}
}
