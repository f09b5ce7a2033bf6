package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
)

// Entry is the outcome of a Persist call.
type Entry struct {
	Key string
	// Path is the stable path, or the index key for Memory entries. It is
	// empty when nothing was kept.
	Path string
	Type ValueType

	// Value is the loaded or produced value.
	Value any

	// Stream is the caller's copy of a stream result. Closing it waits for
	// the background writer and returns its error.
	Stream io.ReadCloser
	Copies []io.ReadCloser

	// Cached is true when an existing artifact satisfied the call.
	Cached bool
}

// Empty reports whether the entry carries nothing.
func (e *Entry) Empty() bool {
	return e == nil || (e.Path == "" && e.Value == nil && e.Stream == nil)
}

// Close closes the stream and every copy.
func (e *Entry) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.Stream != nil {
		errs = append(errs, e.Stream.Close())
	}
	for _, c := range e.Copies {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Decode stores the entry's value in the value pointed to by v. Values of a
// different Go type are converted with the codec of the entry's type.
func (e *Entry) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("persist: decode requires a non-nil pointer, got %T", v)
	}
	if e == nil || e.Value == nil {
		return ErrNoArtifact
	}

	val := reflect.ValueOf(e.Value)
	if val.Type().AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(val)
		return nil
	}

	c := codecFor(e.Type)
	data, err := c.Marshal(e.Value)
	if err == nil {
		err = c.Unmarshal(data, v)
	}
	if err != nil {
		return &SerializationError{Type: e.Type, Path: e.Path, Err: err}
	}
	return nil
}

// Get persists key and decodes the result into a T. Stream results are read
// to the end and decoded from their bytes. A missing value yields the zero T.
func Get[T any](ctx context.Context, s *Store, key string, typ ValueType, fn ProduceFunc, opts ...Option) (T, error) {
	var out T
	e, err := s.Persist(ctx, key, typ, fn, opts...)
	if err != nil {
		return out, err
	}

	if e.Stream != nil {
		data, err := io.ReadAll(e.Stream)
		if cerr := e.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return out, err
		}
		e.Value = data
		if _, ok := any(out).([]byte); ok {
			return e.Value.(T), nil
		}
		if err := codecFor(typ).Unmarshal(data, &out); err != nil {
			return out, &SerializationError{Type: typ, Path: e.Path, Err: err}
		}
		return out, nil
	}

	if e.Value == nil {
		return out, nil
	}
	if err := e.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
