package user

import (
	"errors"
	"strings"
)

var (
	ErrUsernameTaken       = errors.New("a user with that username already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidRegistration = errors.New("invalid registration")
)

// ValidationError lists every problem found in a registration form.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, " ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRegistration
}
