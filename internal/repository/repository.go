package repository

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique column (domain, email) is already taken
	ErrConflict = errors.New("record already exists")
	// ErrHasDependents is returned when deleting a tenant that users still reference
	ErrHasDependents = errors.New("tenant still has users")
	// ErrInvalidUser is returned when a user violates the tenant affiliation rules
	ErrInvalidUser = errors.New("invalid user tenant affiliation")
)

// parseID parses an opaque identifier; anything that is not a UUID cannot exist.
func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return uid, nil
}
