package resource

import (
	"errors"
	"fmt"
)

// ErrNotFound is the condition a producer reports when it cannot supply the
// resource. Produce records it as done and does not return it.
var ErrNotFound = errors.New("resource not found")

// ProductionError records a producer failure for a path.
type ProductionError struct {
	Path   string
	Target string
	Err    error
}

func (e *ProductionError) Error() string {
	return fmt.Sprintf("produce %s (%s): %v", e.Path, e.Target, e.Err)
}

func (e *ProductionError) Unwrap() error { return e.Err }
