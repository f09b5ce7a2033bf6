// Package codec centralizes value encoding for cached artifacts.
//
// Each codec has a stable name. Artifacts on disk do not record the codec,
// so the value type chosen at the call site selects it: changing the codec
// for a key invalidates what was persisted under that key.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Decoder is implemented by codecs that can read a value straight from a
// stream without buffering the whole artifact.
type Decoder interface {
	Decode(r io.Reader, v any) error
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "yaml":
		return YAML{}, true
	case "cbor":
		return CBOR{}, true
	case "text":
		return Text{}, true
	case "raw":
		return Raw{}, true
	default:
		return nil, false
	}
}

// Names lists the built-in codec names.
func Names() []string {
	return []string{"json", "go-json", "yaml", "cbor", "text", "raw"}
}

// MustMarshal is a helper for tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the codec used when a caller does not pick one.
var Default Codec = JSON{}
