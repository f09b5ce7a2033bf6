package locus

import (
	"errors"
	"fmt"

	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/persist"
	"github.com/hupe1980/locus/resource"
	"github.com/hupe1980/locus/roots"
)

var (
	// ErrNotFound is returned when a resource is neither found nor produced.
	ErrNotFound = errors.New("not found")

	// ErrInterrupted is returned when waiting for a lock was cancelled.
	// The operation can be retried.
	ErrInterrupted = errors.New("interrupted")

	// ErrClosed is returned by calls on a closed Locus.
	ErrClosed = errors.New("locus is closed")

	// ErrInvalidRoot is returned for malformed, unknown or cyclic roots.
	ErrInvalidRoot = errors.New("invalid root")
)

// ErrProduction indicates a producer failed to materialize a resource.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrProduction struct {
	Path  string
	cause error
}

func (e *ErrProduction) Error() string {
	return fmt.Sprintf("production failed for %s: %v", e.Path, e.cause)
}

func (e *ErrProduction) Unwrap() error { return e.cause }

// ErrSerialization indicates a cached value could not be stored or loaded.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrSerialization struct {
	Type  persist.ValueType
	Path  string
	cause error
}

func (e *ErrSerialization) Error() string {
	return fmt.Sprintf("serialization failed for %s (%s): %v", e.Path, e.Type, e.cause)
}

func (e *ErrSerialization) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, resource.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var pe *resource.ProductionError
	if errors.As(err, &pe) {
		return &ErrProduction{Path: pe.Path, cause: err}
	}

	if errors.Is(err, lock.ErrLockInterrupted) {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	var se *persist.SerializationError
	if errors.As(err, &se) {
		return &ErrSerialization{Type: se.Type, Path: se.Path, cause: err}
	}
	if errors.Is(err, persist.ErrStoreClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if errors.Is(err, roots.ErrInvalidRootName) || errors.Is(err, roots.ErrUnknownRoot) || errors.Is(err, roots.ErrAliasCycle) {
		return fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}

	return err
}
