// Package digest derives deterministic, collision-resistant identifiers for
// cache keys and option sets.
//
// Option values are first rendered into a canonical, type-tagged string (maps
// sorted by key, strings quoted, floats rounded the same way every time,
// existing files replaced by a content digest) and the string is then hashed
// with BLAKE3.
package digest

import (
	_ "crypto/sha256" // registers the hash behind godigest.SHA256
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	godigest "github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

// maxSliceLen bounds how many slice elements are rendered before sampling.
const maxSliceLen = 100_000

// Stringer lets a value choose its own canonical representation.
type Stringer interface {
	DigestString() string
}

// Sum returns the hex BLAKE3 digest of s.
func Sum(s string) string {
	h := blake3.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Short returns the first n hex characters of Sum(s).
func Short(s string, n int) string {
	sum := Sum(s)
	if n <= 0 || n >= len(sum) {
		return sum
	}
	return sum[:n]
}

// Of returns the digest of the canonical form of v.
func Of(v any) string {
	return Sum(String(v))
}

// File returns the content digest of the file at path.
func File(path string) (godigest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return godigest.SHA256.FromReader(f)
}

// String renders v canonically. Equal inputs always render equal strings.
func String(v any) string {
	var b strings.Builder
	write(&b, v)
	return b.String()
}

// write renders v with a type tag in front of every scalar. Strings are
// quoted and containers carry their length, so distinct values never share
// a rendering.
func write(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
	case Stringer:
		b.WriteString("d:")
		b.WriteString(strconv.Quote(x.DigestString()))
	case string:
		writeString(b, x)
	case []byte:
		b.WriteString("b:")
		b.WriteString(Sum(string(x)))
	case bool:
		b.WriteString("t:")
		b.WriteString(strconv.FormatBool(x))
	case int:
		b.WriteString("i:")
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		b.WriteString("f:")
		b.WriteString(formatFloat(x))
	case float32:
		b.WriteString("f:")
		b.WriteString(formatFloat(float64(x)))
	case fmt.Stringer:
		b.WriteString("S:")
		b.WriteString(strconv.Quote(x.String()))
	default:
		writeReflect(b, reflect.ValueOf(v))
	}
}

func writeString(b *strings.Builder, s string) {
	if looksLikeFile(s) {
		if info, err := os.Stat(s); err == nil {
			if info.IsDir() {
				matches, _ := filepath.Glob(filepath.Join(s, "*"))
				sort.Strings(matches)
				b.WriteString("dir:")
				write(b, matches)
				return
			}
			if d, err := File(s); err == nil {
				b.WriteString("file:")
				b.WriteString(d.String())
				return
			}
		}
	}
	b.WriteString("s:")
	b.WriteString(strconv.Quote(s))
}

func looksLikeFile(s string) bool {
	if s == "" || strings.ContainsRune(s, '\n') || len(s) > 4096 {
		return false
	}
	return strings.ContainsRune(s, filepath.Separator)
}

func formatFloat(f float64) string {
	switch {
	case f == float64(int64(f)):
		return strconv.FormatInt(int64(f), 10)
	case f > 10 || f < -10:
		return strconv.FormatFloat(f, 'f', 1, 64)
	case f > 1 || f < -1:
		return strconv.FormatFloat(f, 'f', 3, 64)
	default:
		return strconv.FormatFloat(f, 'f', 6, 64)
	}
}

func writeReflect(b *strings.Builder, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Invalid:
		b.WriteString("nil")
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("nil")
			return
		}
		write(b, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		fmt.Fprintf(b, "[%d:", n)
		if n > maxSliceLen {
			// Large slices are summarised by a fixed sample.
			for i, pos := range []int{1, 2, n / 2, n - 2, n - 1} {
				if i > 0 {
					b.WriteString(", ")
				}
				write(b, rv.Index(pos).Interface())
			}
		} else {
			for i := 0; i < n; i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				write(b, rv.Index(i).Interface())
			}
		}
		b.WriteByte(']')
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := String(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)
		fmt.Fprintf(b, "{%d:", len(keys))
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteByte('=')
			write(b, byKey[k].Interface())
		}
		b.WriteByte('}')
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString("u:")
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.String:
		writeString(b, rv.String())
	case reflect.Bool:
		b.WriteString("t:")
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Float32, reflect.Float64:
		b.WriteString("f:")
		b.WriteString(formatFloat(rv.Float()))
	case reflect.Func:
		b.WriteString("func")
	default:
		b.WriteString("r:")
		b.WriteString(strconv.Quote(fmt.Sprintf("%#v", rv.Interface())))
	}
}
