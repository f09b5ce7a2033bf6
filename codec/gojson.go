package codec

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// GoJSON uses github.com/goccy/go-json. Its output is interchangeable with
// JSON, so an artifact written by one can be read by the other.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Decode reads a single JSON document from r.
func (GoJSON) Decode(r io.Reader, v any) error { return gojson.NewDecoder(r).Decode(v) }

func (GoJSON) Name() string { return "go-json" }
