package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name" yaml:"name" cbor:"name"`
	Count int      `json:"count" yaml:"count" cbor:"count"`
	Tags  []string `json:"tags" yaml:"tags" cbor:"tags"`
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestStructuredCodecs_Struct(t *testing.T) {
	in := record{Name: "alpha", Count: 3, Tags: []string{"a", "b"}}
	for _, c := range []Codec{JSON{}, GoJSON{}, YAML{}, CBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out record
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestStructuredCodecs_UntypedMaps(t *testing.T) {
	in := map[string]any{"k": "v"}
	for _, c := range []Codec{JSON{}, GoJSON{}, YAML{}, CBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			var out any
			require.NoError(t, c.Unmarshal(MustMarshal(c, in), &out))
			m, ok := out.(map[string]any)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, "v", m["k"])
		})
	}
}

func TestDecoder(t *testing.T) {
	in := record{Name: "stream", Count: 7, Tags: []string{"x"}}
	for _, c := range []Codec{JSON{}, GoJSON{}, YAML{}, CBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			dec, ok := c.(Decoder)
			require.True(t, ok)

			var out record
			require.NoError(t, dec.Decode(bytes.NewReader(MustMarshal(c, in)), &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestJSONCompatibility(t *testing.T) {
	in := record{Name: "x", Count: 1}
	var out record
	require.NoError(t, JSON{}.Unmarshal(MustMarshal(GoJSON{}, in), &out))
	assert.Equal(t, in, out)
}

func TestCBOR_Deterministic(t *testing.T) {
	a := map[string]int{"b": 2, "a": 1, "c": 3}
	b := map[string]int{"c": 3, "a": 1, "b": 2}
	assert.Equal(t, MustMarshal(CBOR{}, a), MustMarshal(CBOR{}, b))
}

func TestText(t *testing.T) {
	c := Text{}
	cases := map[string]any{
		"hello": "hello",
		"42":    42,
		"2.5":   2.5,
		"true":  true,
		"raw":   []byte("raw"),
	}
	for want, in := range cases {
		got, err := c.Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	var s string
	require.NoError(t, c.Unmarshal([]byte("abc"), &s))
	assert.Equal(t, "abc", s)

	var anyV any
	require.NoError(t, c.Unmarshal([]byte("abc"), &anyV))
	assert.Equal(t, "abc", anyV)

	_, err := c.Marshal(struct{}{})
	var unsupported *UnsupportedError
	assert.ErrorAs(t, err, &unsupported)
	assert.Error(t, c.Unmarshal([]byte("x"), new(int)))
}

func TestRaw(t *testing.T) {
	c := Raw{}
	data, err := c.Marshal("bytes")
	require.NoError(t, err)

	var b []byte
	require.NoError(t, c.Unmarshal(data, &b))
	assert.Equal(t, []byte("bytes"), b)

	data[0] = 'B'
	assert.Equal(t, []byte("bytes"), b, "unmarshal copies")

	_, err = c.Marshal(12)
	assert.Error(t, err)
}
