package codec

import (
	"encoding"
	"fmt"
	"strconv"
)

// UnsupportedError reports a value a codec cannot handle.
type UnsupportedError struct {
	Codec string
	Type  string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("codec %s: unsupported type %s", e.Codec, e.Type)
}

// Text stores the textual form of a value.
//
// Strings, byte slices, fmt.Stringer, encoding.TextMarshaler, numbers and
// booleans are accepted. Unmarshal fills *string, *[]byte, *any (as a string)
// or an encoding.TextUnmarshaler.
type Text struct{}

// Marshal renders v as text.
func (Text) Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case encoding.TextMarshaler:
		return x.MarshalText()
	case fmt.Stringer:
		return []byte(x.String()), nil
	case bool:
		return strconv.AppendBool(nil, x), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Appendf(nil, "%d", x), nil
	case float32:
		return strconv.AppendFloat(nil, float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
	case nil:
		return nil, nil
	default:
		return nil, &UnsupportedError{Codec: "text", Type: fmt.Sprintf("%T", v)}
	}
}

// Unmarshal stores data into v.
func (Text) Unmarshal(data []byte, v any) error {
	switch x := v.(type) {
	case *string:
		*x = string(data)
	case *[]byte:
		*x = append((*x)[:0], data...)
	case *any:
		*x = string(data)
	case encoding.TextUnmarshaler:
		return x.UnmarshalText(data)
	default:
		return &UnsupportedError{Codec: "text", Type: fmt.Sprintf("%T", v)}
	}
	return nil
}

// Name returns the unique name of the codec ("text").
func (Text) Name() string { return "text" }

// Raw stores bytes verbatim.
//
// Marshal accepts string and []byte. Unmarshal fills *[]byte, *string or
// *any (as []byte).
type Raw struct{}

// Marshal returns v's bytes.
func (Raw) Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case nil:
		return nil, nil
	default:
		return nil, &UnsupportedError{Codec: "raw", Type: fmt.Sprintf("%T", v)}
	}
}

// Unmarshal stores a copy of data into v.
func (Raw) Unmarshal(data []byte, v any) error {
	switch x := v.(type) {
	case *[]byte:
		*x = append([]byte(nil), data...)
	case *string:
		*x = string(data)
	case *any:
		*x = append([]byte(nil), data...)
	default:
		return &UnsupportedError{Codec: "raw", Type: fmt.Sprintf("%T", v)}
	}
	return nil
}

// Name returns the unique name of the codec ("raw").
func (Raw) Name() string { return "raw" }
