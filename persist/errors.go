package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrSerialization is matched by every *SerializationError.
	ErrSerialization = errors.New("persist: serialization failed")

	// ErrNoArtifact is returned when a typed entry has nothing to load.
	ErrNoArtifact = errors.New("persist: no artifact")

	// ErrUnknownType is returned for a ValueType without a serializer.
	ErrUnknownType = errors.New("persist: unknown value type")
)

// SerializationError reports a value that could not be saved or loaded.
type SerializationError struct {
	Type ValueType
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("persist: %s %s: %v", e.Type, e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Is reports ErrSerialization as a match.
func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }
