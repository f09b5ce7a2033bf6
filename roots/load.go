package roots

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Entry is one name/value pair read from a roots file, in file order.
type Entry struct {
	Name  string
	Value string
}

// ParseFile reads a roots file. Files ending in .json or .jsonc are parsed
// as JSON with comments, anything else as YAML. Both must hold a single
// mapping of root name to template.
func ParseFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return parseJSON(jsonc.ToJSON(data))
	default:
		return parseYAML(data)
	}
}

func parseYAML(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("roots: parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("roots: expected a mapping, got yaml kind %d", m.Kind)
	}
	entries := make([]Entry, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("roots: value of %q must be a string", k.Value)
		}
		entries = append(entries, Entry{Name: k.Value, Value: v.Value})
	}
	return entries, nil
}

// parseJSON walks the token stream so that file order is preserved.
func parseJSON(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roots: parse json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("roots: expected a json object")
	}
	var entries []Entry
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("roots: parse json: %w", err)
		}
		key, _ := kt.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("roots: value of %q must be a string: %w", key, err)
		}
		entries = append(entries, Entry{Name: key, Value: value})
	}
	return entries, nil
}

// LoadFile parses path and registers every entry with Add. A value that
// names an already known root and contains neither '/' nor '{' is
// registered as an alias instead.
func (r *Registry) LoadFile(path string) error {
	entries, err := ParseFile(path)
	if err != nil {
		return err
	}
	return r.Apply(entries)
}

// Apply registers entries in order with the same rules as LoadFile.
func (r *Registry) Apply(entries []Entry) error {
	for _, e := range entries {
		var err error
		if isAliasValue(e.Value) && r.Has(e.Value) {
			err = r.AddAlias(e.Name, e.Value)
		} else {
			err = r.Add(e.Name, e.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isAliasValue(v string) bool {
	return v != "" && !strings.ContainsAny(v, "/{")
}
