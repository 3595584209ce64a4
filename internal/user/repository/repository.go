// Package repository defines the storage contract every user backend satisfies
// and the error kinds its operations report.
package repository

import "context"

// Record is the minimum a persisted user shape must expose so generic backends
// can key and group it.
type Record interface {
	RecordID() string
	RecordScope() string
}

// UserStore is the backend-independent access contract over a record type T.
//
// Every operation reports failures as one of the kinds in this package:
// ErrDuplicate, ErrNotFound, ErrStorage or ErrConversion. Ordering of List
// results is defined by each implementation.
type UserStore[T any] interface {
	// Add inserts record. It fails with ErrDuplicate if the identifier is taken.
	Add(ctx context.Context, record T) error
	// Update replaces the whole stored record sharing record's identifier.
	// It fails with ErrNotFound if there is none.
	Update(ctx context.Context, record T) error
	// Remove deletes the record stored under id and returns it. Read and
	// delete happen as one step.
	Remove(ctx context.Context, id string) (T, error)
	// Fetch returns the record stored under id.
	Fetch(ctx context.Context, id string) (T, error)
	// List returns every record in scopeID. An empty scope yields an empty
	// slice and no error.
	List(ctx context.Context, scopeID string) ([]T, error)
	// Exists reports whether id is stored. Absence is false, never ErrNotFound.
	Exists(ctx context.Context, id string) (bool, error)
}
