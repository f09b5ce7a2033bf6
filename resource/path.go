package resource

import (
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/locus/roots"
	"github.com/hupe1980/locus/template"
)

// Path is a logical path bound to a namespace, or a located path produced
// by resolution.
//
// Production state belongs to the instance: two Path values for the same
// string each track their own state.
type Path struct {
	ns  *Namespace
	raw string

	mu     sync.Mutex
	roots  *roots.Registry
	owned  bool
	libdir string

	where    string
	original string

	prodMu sync.Mutex
	state  ProducedState
	found  bool
	err    error
}

// String returns the raw path.
func (p *Path) String() string { return p.raw }

// Namespace returns the owning namespace.
func (p *Path) Namespace() *Namespace { return p.ns }

// Where returns the root a resolved path came from, or "".
func (p *Path) Where() string { return p.where }

// Original returns the unresolved string a resolved path came from, or "".
func (p *Path) Original() string { return p.original }

// Parts returns the '/' separated segments.
func (p *Path) Parts() []string {
	return strings.Split(strings.Trim(p.raw, "/"), "/")
}

// Toplevel returns the first segment.
func (p *Path) Toplevel() string { return p.subject().TopLevel() }

// Subpath returns everything after the first segment.
func (p *Path) Subpath() string { return p.subject().SubPath() }

// Base returns the last segment.
func (p *Path) Base() string { return path.Base(p.raw) }

// Located reports whether the path is absolute, home-relative or
// current-directory-relative.
func (p *Path) Located() bool { return IsLocated(p.raw) }

// IsLocated reports whether s starts with "/", "~/" or "./".
func IsLocated(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~/") || strings.HasPrefix(s, "./")
}

// Join returns a child path. It shares the parent's roots and library directory.
func (p *Path) Join(segments ...string) *Path {
	raw := p.raw
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		if raw == "" {
			raw = s
		} else {
			raw = strings.TrimSuffix(raw, "/") + "/" + s
		}
	}
	return p.derive(raw)
}

// derive returns a fresh instance with raw, sharing roots and libdir.
func (p *Path) derive(raw string) *Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Path{ns: p.ns, raw: raw, roots: p.roots, libdir: p.libdir}
}

// Registry returns the roots this path resolves against.
func (p *Path) Registry() *roots.Registry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roots
}

// own copies the shared registry on first mutation. Callers hold p.mu.
func (p *Path) own() *roots.Registry {
	if !p.owned {
		p.roots = p.roots.Clone()
		p.owned = true
	}
	return p.roots
}

// AddRoot registers a root on this path only.
func (p *Path) AddRoot(name, tmpl string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.own().Add(name, tmpl)
}

// PrependRoot registers a root on this path only and searches it first.
func (p *Path) PrependRoot(name, tmpl string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.own().Prepend(name, tmpl)
}

// AppendRoot registers a root on this path only and searches it last.
func (p *Path) AppendRoot(name, tmpl string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.own().Append(name, tmpl)
}

// SetLibDir sets the {LIBDIR} hint for this path.
func (p *Path) SetLibDir(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.libdir = dir
}

// LibDir returns the effective library directory, or "".
func (p *Path) LibDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.libdir != "" {
		return p.libdir
	}
	return p.ns.libdir
}

func (p *Path) subject() template.Subject {
	return template.Subject{
		Path:    p.raw,
		Package: p.ns.pkg,
		LibDir:  p.LibDir(),
		Home:    p.ns.homeDir(),
		Pwd:     p.ns.workDir(),
	}
}

// SetExtension returns the path with ".ext" appended.
func (p *Path) SetExtension(ext string) *Path {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return p.derive(p.raw)
	}
	return p.derive(p.raw + "." + ext)
}

// UnsetExtension returns the path without its last extension.
func (p *Path) UnsetExtension() *Path {
	ext := path.Ext(p.raw)
	if ext == "" || strings.Contains(ext, "/") {
		return p.derive(p.raw)
	}
	return p.derive(strings.TrimSuffix(p.raw, ext))
}

// Extension returns the last extension without the dot.
func (p *Path) Extension() string {
	return strings.TrimPrefix(path.Ext(p.raw), ".")
}

// canonical expands "~/" and "./" and cleans a located path.
func (p *Path) canonical() string {
	switch {
	case strings.HasPrefix(p.raw, "~/"):
		return filepath.Join(p.ns.homeDir(), p.raw[2:])
	case strings.HasPrefix(p.raw, "./"):
		return filepath.Join(p.ns.workDir(), p.raw[2:])
	default:
		return filepath.Clean(p.raw)
	}
}
