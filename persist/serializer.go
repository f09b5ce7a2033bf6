package persist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/locus/codec"
	"github.com/hupe1980/locus/internal/fs"
)

// ValueType selects how a value is stored and loaded.
type ValueType string

const (
	// Untyped values are neither serialized nor loaded.
	Untyped ValueType = ""
	// Memory values live in a MemoryIndex and never touch the disk.
	Memory  ValueType = "memory"
	Raw     ValueType = "raw"
	Text    ValueType = "text"
	Lines   ValueType = "lines"
	Integer ValueType = "integer"
	Float   ValueType = "float"
	Boolean ValueType = "boolean"
	JSON    ValueType = "json"
	GoJSON  ValueType = "go-json"
	YAML    ValueType = "yaml"
	CBOR    ValueType = "cbor"
	// File artifacts are written by the producer; loading yields the path.
	File ValueType = "file"
)

// Serializer stores and loads the values of one ValueType.
type Serializer interface {
	// Save writes v to path and returns the path holding the artifact.
	Save(fsys fs.FileSystem, v any, path string) (string, error)
	// Load reads the artifact at path.
	Load(fsys fs.FileSystem, path string) (any, error)
}

var (
	serializersMu sync.RWMutex
	serializers   = map[ValueType]Serializer{
		Raw:     rawSerializer{},
		Text:    textSerializer{},
		Lines:   linesSerializer{},
		Integer: scalarSerializer{parse: func(s string) (any, error) { return strconv.Atoi(s) }},
		Float:   scalarSerializer{parse: func(s string) (any, error) { return strconv.ParseFloat(s, 64) }},
		Boolean: scalarSerializer{parse: func(s string) (any, error) { return strconv.ParseBool(s) }},
		JSON:    CodecSerializer{Codec: codec.JSON{}},
		GoJSON:  CodecSerializer{Codec: codec.GoJSON{}},
		YAML:    CodecSerializer{Codec: codec.YAML{}},
		CBOR:    CodecSerializer{Codec: codec.CBOR{}},
		File:    fileSerializer{},
	}
)

// Register installs s for t, replacing any previous serializer.
// Untyped and Memory cannot be registered.
func Register(t ValueType, s Serializer) {
	if t == Untyped || t == Memory {
		panic(fmt.Sprintf("persist: cannot register serializer for %q", t))
	}
	serializersMu.Lock()
	defer serializersMu.Unlock()
	serializers[t] = s
}

// SerializerFor returns the serializer registered for t.
func SerializerFor(t ValueType) (Serializer, bool) {
	serializersMu.RLock()
	defer serializersMu.RUnlock()
	s, ok := serializers[t]
	return s, ok
}

// Types returns every value type with a serializer, plus Memory, sorted.
func Types() []ValueType {
	serializersMu.RLock()
	out := make([]ValueType, 0, len(serializers)+1)
	for t := range serializers {
		out = append(out, t)
	}
	serializersMu.RUnlock()
	out = append(out, Memory)
	slices.Sort(out)
	return out
}

// ParseValueType maps a name to a ValueType. The empty string is Untyped.
func ParseValueType(name string) (ValueType, error) {
	t := ValueType(strings.ToLower(name))
	if t == Untyped || t == Memory {
		return t, nil
	}
	if _, ok := SerializerFor(t); !ok {
		return Untyped, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// CodecSerializer stores values with a codec.Codec. Loaded values are
// generic (maps, slices and scalars).
type CodecSerializer struct {
	Codec codec.Codec
}

// Save implements Serializer.
func (c CodecSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	data, err := c.Codec.Marshal(v)
	if err != nil {
		return "", err
	}
	return writeBytes(fsys, path, data)
}

// Load implements Serializer.
func (c CodecSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	if dec, ok := c.Codec.(codec.Decoder); ok {
		f, err := fs.Open(fsys, path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var v any
		if err := dec.Decode(bufio.NewReader(f), &v); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return v, nil
	}

	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := c.Codec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type rawSerializer struct{}

func (rawSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	if r, ok := v.(io.Reader); ok {
		if _, err := fs.WriteAtomic(fsys, path, r); err != nil {
			return "", err
		}
		return path, nil
	}
	data, err := codec.Raw{}.Marshal(v)
	if err != nil {
		return "", err
	}
	return writeBytes(fsys, path, data)
}

func (rawSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	return fs.ReadFile(fsys, path)
}

type textSerializer struct{}

func (textSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	data, err := codec.Text{}.Marshal(v)
	if err != nil {
		return "", err
	}
	return writeBytes(fsys, path, data)
}

func (textSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type linesSerializer struct{}

func (linesSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	var buf bytes.Buffer
	switch x := v.(type) {
	case []string:
		for _, line := range x {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	case string:
		buf.WriteString(x)
	default:
		return "", &codec.UnsupportedError{Codec: string(Lines), Type: fmt.Sprintf("%T", v)}
	}
	return writeBytes(fsys, path, buf.Bytes())
}

func (linesSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return []string{}, nil
	}
	return strings.Split(s, "\n"), nil
}

// scalarSerializer stores a single number or boolean as text.
type scalarSerializer struct {
	parse func(string) (any, error)
}

func (s scalarSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	data, err := codec.Text{}.Marshal(v)
	if err != nil {
		return "", err
	}
	if _, err := s.parse(strings.TrimSpace(string(data))); err != nil {
		return "", err
	}
	return writeBytes(fsys, path, data)
}

func (s scalarSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return s.parse(strings.TrimSpace(string(data)))
}

// fileSerializer handles artifacts the producer writes itself. A value naming
// another file is copied into place.
type fileSerializer struct{}

func (fileSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	switch x := v.(type) {
	case string:
		if x == path || x == "" {
			if !fs.Exists(fsys, path) {
				return "", os.ErrNotExist
			}
			return path, nil
		}
		src, err := fs.Open(fsys, x)
		if err != nil {
			return "", err
		}
		defer src.Close()
		if _, err := fs.WriteAtomic(fsys, path, src); err != nil {
			return "", err
		}
		return path, nil
	case []byte:
		return writeBytes(fsys, path, x)
	case io.Reader:
		if _, err := fs.WriteAtomic(fsys, path, x); err != nil {
			return "", err
		}
		return path, nil
	default:
		return "", &codec.UnsupportedError{Codec: string(File), Type: fmt.Sprintf("%T", v)}
	}
}

func (fileSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	if !fs.Exists(fsys, path) {
		return nil, os.ErrNotExist
	}
	return path, nil
}

func writeBytes(fsys fs.FileSystem, path string, data []byte) (string, error) {
	if _, err := fs.WriteAtomic(fsys, path, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return path, nil
}

// codecFor returns the codec used to convert a loaded value of type t into a
// caller-supplied Go type.
func codecFor(t ValueType) codec.Codec {
	switch t {
	case GoJSON:
		return codec.GoJSON{}
	case YAML:
		return codec.YAML{}
	case CBOR:
		return codec.CBOR{}
	case Text, File:
		return codec.Text{}
	case Raw:
		return codec.Raw{}
	default:
		return codec.JSON{}
	}
}
