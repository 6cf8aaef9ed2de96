// Package ids centralises the 128-bit opaque identifiers used by every
// entity in the data model.
package ids

import "github.com/google/uuid"

// ID is an opaque 128-bit identifier shared by all entities.
type ID = uuid.UUID

// Nil is the zero-value ID, used as a sentinel for "not yet assigned".
var Nil = uuid.Nil

// New allocates a fresh random ID.
func New() ID {
	return uuid.New()
}

// Parse parses a canonical string representation of an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}
