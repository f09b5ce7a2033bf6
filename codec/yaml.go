package codec

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAML is a codec backed by gopkg.in/yaml.v3.
type YAML struct{}

// Marshal encodes the value to YAML.
func (YAML) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

// Unmarshal decodes the YAML data into v.
func (YAML) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// Decode reads the first YAML document from r.
func (YAML) Decode(r io.Reader, v any) error { return yaml.NewDecoder(r).Decode(v) }

// Name returns the unique name of the codec ("yaml").
func (YAML) Name() string { return "yaml" }
