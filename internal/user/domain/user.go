// Package domain holds the storage-independent representation of a user.
package domain

// User is an application user. Its identity is fixed at construction; build a
// new value to represent a different user.
type User struct {
	id string
}

// New creates a User for userID. Uniqueness is only enforced by a store at
// persistence time.
func New(userID string) User {
	return User{id: userID}
}

func (u User) ID() string {
	return u.id
}
