package persist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/locus/internal/fs"
)

type gene struct {
	Name  string
	Exons int
}

func TestGet_Struct(t *testing.T) {
	for _, typ := range []ValueType{JSON, GoJSON, YAML, CBOR, Memory} {
		t.Run(string(typ), func(t *testing.T) {
			s, _ := newStore(t)
			fn := func(context.Context, string) (Result, error) {
				return Value(gene{Name: "BRCA1", Exons: 23}), nil
			}

			got, err := Get[gene](t.Context(), s, "g", typ, fn)
			require.NoError(t, err)
			assert.Equal(t, gene{Name: "BRCA1", Exons: 23}, got)

			got, err = Get[gene](t.Context(), s, "g", typ, mustNotRun(t))
			require.NoError(t, err)
			assert.Equal(t, gene{Name: "BRCA1", Exons: 23}, got)
		})
	}
}

func TestGet_Stream(t *testing.T) {
	s, _ := newStore(t)
	got, err := Get[[]byte](t.Context(), s, "raw", Raw, func(context.Context, string) (Result, error) {
		return Stream(strings.NewReader("bytes")), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), got)

	doc, err := Get[map[string]int](t.Context(), s, "doc", JSON, func(context.Context, string) (Result, error) {
		return Stream(strings.NewReader(`{"a":1}`)), nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, doc)
}

func TestGet_CanFailYieldsZero(t *testing.T) {
	s, _ := newStore(t)
	got, err := Get[int](t.Context(), s, "n", Integer, func(context.Context, string) (Result, error) {
		return None(), assert.AnError
	}, WithCanFail())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestEntry_Decode(t *testing.T) {
	e := &Entry{Type: Integer, Value: 7}
	var n int64
	require.NoError(t, e.Decode(&n))
	assert.Equal(t, int64(7), n)

	e = &Entry{Type: Raw, Value: []byte("text")}
	var s string
	require.NoError(t, e.Decode(&s))
	assert.Equal(t, "text", s)

	e = &Entry{Type: Text, Value: "abc"}
	var i int
	require.ErrorIs(t, e.Decode(&i), ErrSerialization)

	require.Error(t, e.Decode(i))
	require.ErrorIs(t, (&Entry{}).Decode(&i), ErrNoArtifact)
}

func TestEntry_Empty(t *testing.T) {
	var e *Entry
	assert.True(t, e.Empty())
	assert.True(t, (&Entry{Key: "k"}).Empty())
	assert.False(t, (&Entry{Key: "k", Path: "/p"}).Empty())
}

func TestParseValueType(t *testing.T) {
	typ, err := ParseValueType("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, typ)

	typ, err = ParseValueType("")
	require.NoError(t, err)
	assert.Equal(t, Untyped, typ)

	_, err = ParseValueType("bogus")
	require.ErrorIs(t, err, ErrUnknownType)

	assert.Contains(t, Types(), Memory)
	assert.Contains(t, Types(), CBOR)
}

type upperSerializer struct{}

func (upperSerializer) Save(fsys fs.FileSystem, v any, path string) (string, error) {
	return writeBytes(fsys, path, []byte(strings.ToUpper(v.(string))))
}

func (upperSerializer) Load(fsys fs.FileSystem, path string) (any, error) {
	data, err := fs.ReadFile(fsys, path)
	return string(data), err
}

func TestRegister(t *testing.T) {
	const upper ValueType = "upper"
	Register(upper, upperSerializer{})

	s, _ := newStore(t)
	_, err := s.Persist(t.Context(), "k", upper, func(context.Context, string) (Result, error) {
		return Value("shout"), nil
	})
	require.NoError(t, err)

	e, err := s.Persist(t.Context(), "k", upper, mustNotRun(t))
	require.NoError(t, err)
	assert.Equal(t, "SHOUT", e.Value)

	assert.Panics(t, func() { Register(Memory, upperSerializer{}) })
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	v, cached, err := idx.Do("k", func() (any, bool, error) { return 1, true, nil })
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, v)

	v, cached, err = idx.Do("k", func() (any, bool, error) { return 2, true, nil })
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, v)

	_, _, err = idx.Do("skip", func() (any, bool, error) { return 3, false, nil })
	require.NoError(t, err)
	_, ok := idx.Get("skip")
	assert.False(t, ok)

	hits, misses := idx.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)

	idx.Forget("k")
	assert.Equal(t, 0, idx.Len())
	idx.Set("a", 1)
	idx.Clear()
	assert.Equal(t, 0, idx.Len())
}

func TestMemoryIndex_Refresh(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Set("k", "old")

	v, err := idx.Refresh("k", func() (any, bool, error) { return "new", true, nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	got, ok := idx.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)

	_, err = idx.Refresh("k", func() (any, bool, error) { return nil, false, errors.New("boom") })
	require.Error(t, err)
	_, ok = idx.Get("k")
	assert.False(t, ok, "a failed refresh leaves the key empty")
}

func TestMemoryIndex_Bounded(t *testing.T) {
	idx := NewBoundedMemoryIndex(2)
	idx.Set("a", 1)
	idx.Set("b", 2)
	_, ok := idx.Get("a")
	require.True(t, ok)

	idx.Set("c", 3)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, int64(1), idx.Evictions())

	_, ok = idx.Get("b")
	assert.False(t, ok, "least recently used key is evicted")
	v, ok := idx.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	idx.Set("a", 10)
	v, _ = idx.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, idx.Len())
}
