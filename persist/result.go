package persist

import "io"

type resultKind uint8

const (
	kindNone resultKind = iota
	kindValue
	kindStream
	kindTransient
	kindDiscard
)

func (k resultKind) String() string {
	switch k {
	case kindNone:
		return "none"
	case kindValue:
		return "value"
	case kindStream:
		return "stream"
	case kindTransient:
		return "transient"
	case kindDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Result is what a ProduceFunc hands back to the store.
// The zero value is None.
type Result struct {
	kind     resultKind
	value    any
	stream   io.Reader
	keepOpen bool
}

// None reports that the producer returned nothing. It may have written the
// stable path itself.
func None() Result { return Result{} }

// Value returns an in-memory value to be serialized.
func Value(v any) Result { return Result{kind: kindValue, value: v} }

// Transient returns v to the caller without persisting it.
func Transient(v any) Result { return Result{kind: kindTransient, value: v} }

// Discard drops this run: anything written to the stable path is removed.
func Discard() Result { return Result{kind: kindDiscard} }

// StreamOption configures a stream result.
type StreamOption func(*Result)

// KeepOpen leaves the source open after it has been drained.
func KeepOpen() StreamOption {
	return func(r *Result) { r.keepOpen = true }
}

// Stream returns a live byte stream. It is teed to the caller and to a
// background writer. The source is closed when drained if it is an io.Closer.
func Stream(r io.Reader, opts ...StreamOption) Result {
	res := Result{kind: kindStream, stream: r}
	for _, opt := range opts {
		opt(&res)
	}
	return res
}

// String returns the result kind.
func (r Result) String() string { return r.kind.String() }
