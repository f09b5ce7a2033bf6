// Package compress opens compressed resources transparently.
//
// The format is chosen from the file extension: .gz and .bgz (gzip, including
// multi-member BGZF), .zst (zstd), .lz4 (lz4 frame) and .zip (first regular
// file of the archive).
package compress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/locus/internal/fs"
)

// Format identifies a compression container.
type Format uint8

const (
	// None indicates a plain file.
	None Format = iota
	// Gzip is a gzip stream (.gz).
	Gzip
	// BGzip is block gzip (.bgz), a sequence of gzip members.
	BGzip
	// Zip is a zip archive (.zip).
	Zip
	// Zstd is a zstd stream (.zst).
	Zstd
	// LZ4 is an lz4 frame stream (.lz4).
	LZ4
)

// ErrEmptyArchive is returned when a zip archive holds no regular file.
var ErrEmptyArchive = errors.New("compress: archive has no files")

// Extensions lists the recognised extensions in lookup order.
var Extensions = []string{".gz", ".bgz", ".zip", ".zst", ".lz4"}

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case BGzip:
		return "bgzip"
	case Zip:
		return "zip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// Detect returns the format implied by name's extension.
func Detect(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return Gzip
	case ".bgz":
		return BGzip
	case ".zip":
		return Zip
	case ".zst":
		return Zstd
	case ".lz4":
		return LZ4
	default:
		return None
	}
}

// Strip removes a recognised compression extension from name.
func Strip(name string) string {
	if Detect(name) == None {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Open opens name and returns a reader over its decompressed content.
func Open(fsys fs.FileSystem, name string) (io.ReadCloser, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	rc, err := NewReader(Detect(name), f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("compress: open %s: %w", name, err)
	}
	return rc, nil
}

// NewReader wraps f according to format. Closing the result closes f.
func NewReader(format Format, f fs.File) (io.ReadCloser, error) {
	switch format {
	case None:
		return f, nil
	case Gzip, BGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case Zstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: dec, closers: []io.Closer{dec.IOReadCloser(), f}}, nil
	case LZ4:
		return &readCloser{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	case Zip:
		return openZip(f)
	default:
		return nil, fmt.Errorf("compress: unknown format %d", format)
	}
}

func openZip(f fs.File) (io.ReadCloser, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, err
	}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
	}
	return nil, ErrEmptyArchive
}

// NewWriter wraps w so that writes are compressed in format. Zip is not
// supported for writing. Closing the result flushes the compressor but does
// not close w.
func NewWriter(format Format, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip, BGzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compress: cannot write %s", format)
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
