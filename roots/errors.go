package roots

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRootName is returned for an empty root name or one containing '/' or '{'.
	ErrInvalidRootName = errors.New("invalid root name")

	// ErrUnknownRoot is returned when a root name is not registered.
	ErrUnknownRoot = errors.New("unknown root")

	// ErrAliasCycle is returned when following aliases revisits a root.
	ErrAliasCycle = errors.New("alias cycle")
)

// AliasCycleError records the alias chain that looped.
type AliasCycleError struct {
	Chain []string
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("alias cycle: %v", e.Chain)
}

func (e *AliasCycleError) Unwrap() error { return ErrAliasCycle }
