package resource

import (
	"context"
	"io"

	"github.com/hupe1980/locus/internal/compress"
	"github.com/hupe1980/locus/internal/fs"
)

// Open produces the path if needed and opens the resolved file, decompressing
// .gz, .bgz, .zip, .zst and .lz4 transparently.
func (p *Path) Open(ctx context.Context) (io.ReadCloser, error) {
	if _, err := p.Produce(ctx, false); err != nil {
		return nil, err
	}
	found := p.Find()
	if !fs.Exists(p.ns.fs, found.raw) {
		return nil, &ProductionError{Path: p.raw, Target: found.raw, Err: ErrNotFound}
	}
	return compress.Open(p.ns.fs, found.raw)
}

// Read returns the decompressed content of the path.
func (p *Path) Read(ctx context.Context) ([]byte, error) {
	rc, err := p.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Newer reports whether the resolved path exists and was modified after
// the file at ref. A missing ref counts as older.
func (p *Path) Newer(ref string) bool {
	mine, ok := fs.ModTime(p.ns.fs, p.Find().raw)
	if !ok {
		return false
	}
	theirs, ok := fs.ModTime(p.ns.fs, ref)
	if !ok {
		return true
	}
	return mine.After(theirs)
}
