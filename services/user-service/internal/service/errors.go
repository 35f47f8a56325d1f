package service

import (
	"errors"
	"fmt"
)

// ErrConflict signals a store uniqueness violation on email. It is a
// caller-correctable outcome, never retried here.
var ErrConflict = errors.New("email already exists")

// NotFoundError identifies the missing user by id or email so the
// boundary can report which lookup failed.
type NotFoundError struct {
	ID    int64
	Email string
}

func (e *NotFoundError) Error() string {
	if e.Email != "" {
		return fmt.Sprintf("user with email %s not found", e.Email)
	}
	return fmt.Sprintf("user with id %d not found", e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
