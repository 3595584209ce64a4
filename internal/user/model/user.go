// Package model defines the persisted shape of a user shared by the bundled
// storage backends.
package model

import (
	"maps"
	"time"
)

type User struct {
	ID          string            `json:"id" db:"id" dynamodbav:"id" validate:"required"`
	Scope       string            `json:"scope" db:"scope" dynamodbav:"scope"`
	DisplayName string            `json:"display_name,omitempty" db:"display_name" dynamodbav:"display_name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty" db:"attributes" dynamodbav:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at" dynamodbav:"updated_at"`
}

func (u User) RecordID() string {
	return u.ID
}

func (u User) RecordScope() string {
	return u.Scope
}

// Clone returns a copy that shares no mutable state with u.
func (u User) Clone() User {
	c := u
	if u.Attributes != nil {
		c.Attributes = maps.Clone(u.Attributes)
	}
	return c
}
