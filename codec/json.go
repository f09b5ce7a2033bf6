package codec

import (
	"encoding/json"
	"io"
)

// JSON uses encoding/json.
//
// Decoding into an untyped target yields map[string]any, []any, float64,
// string, bool or nil.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Decode reads a single JSON document from r.
func (JSON) Decode(r io.Reader, v any) error { return json.NewDecoder(r).Decode(v) }

func (JSON) Name() string { return "json" }
