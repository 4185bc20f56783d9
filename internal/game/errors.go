package game

import (
	"errors"
	"fmt"

	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

// Every error returned by Game wraps exactly one of these.
var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrCapacity     = errors.New("room is full")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflicting update")
)

// storeError translates a store failure into a game error
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, store.ErrConstraint):
		return fmt.Errorf("%w: %s", ErrValidation, what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
