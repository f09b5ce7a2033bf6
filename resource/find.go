package resource

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/locus/internal/compress"
	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/roots"
	"github.com/hupe1980/locus/template"
)

// lookupParallelism bounds concurrent existence checks in FindAll and GlobAll.
const lookupParallelism = 8

// Find resolves the path.
//
// A located path is returned canonicalized if it exists, else its first
// existing compressed sibling, else unchanged. A logical path is expanded
// through every root in priority order and the first existing expansion is
// returned. When none exists the default root's expansion is returned.
func (p *Path) Find() *Path {
	if p.Located() {
		return p.findLocated()
	}

	reg := p.Registry()
	for _, name := range reg.Order() {
		expanded, resolved, err := p.expand(reg, name)
		if err != nil {
			continue
		}
		if found, ok := existsOrAlternative(p.ns.fs, expanded); ok {
			return p.resolved(found, resolved)
		}
	}

	if def, err := p.Follow(roots.Default); err == nil {
		return def
	}
	return p
}

// FindIn resolves the path through a single root and returns the expansion
// whether or not it exists. Since it yields one path, roots.All selects the
// highest priority existing match, as FindAll()[0], and falls back to Find.
// Resolve returns every match for roots.All.
func (p *Path) FindIn(where string) (*Path, error) {
	if p.Located() {
		return p.findLocated(), nil
	}
	if where == "" {
		return p.Find(), nil
	}
	if where == roots.All {
		if all := p.FindAll(); len(all) > 0 {
			return all[0], nil
		}
		return p.Find(), nil
	}
	return p.Follow(where)
}

// Resolve is FindIn for callers that accept several results: roots.All
// yields FindAll, which is empty when nothing exists, and any other name
// yields the single FindIn expansion.
func (p *Path) Resolve(where string) ([]*Path, error) {
	if where == roots.All {
		return p.FindAll(), nil
	}
	found, err := p.FindIn(where)
	if err != nil {
		return nil, err
	}
	return []*Path{found}, nil
}

// Follow expands the path through the named root. Aliases are followed.
//
// An unknown name that looks like a directory (it contains '/' or starts
// with '.') is used as the template "<name>/{TOPLEVEL}/{SUBPATH}".
func (p *Path) Follow(where string) (*Path, error) {
	if where == "" || where == roots.All {
		return nil, fmt.Errorf("%w: %q", roots.ErrInvalidRootName, where)
	}
	expanded, resolved, err := p.expand(p.Registry(), where)
	if err == nil {
		return p.resolved(expanded, resolved), nil
	}
	if errors.Is(err, roots.ErrUnknownRoot) && looksLikeDir(where) {
		tmpl := strings.TrimSuffix(where, "/") + "/{TOPLEVEL}/{SUBPATH}"
		return p.resolved(p.expandTemplate(tmpl, where), where), nil
	}
	return nil, err
}

// FindAll returns every root's existing expansion in priority order without
// duplicates. Located paths yield themselves if they exist.
func (p *Path) FindAll() []*Path {
	if p.Located() {
		found := p.findLocated()
		if fs.Exists(p.ns.fs, found.raw) {
			return []*Path{found}
		}
		return nil
	}

	reg := p.Registry()
	order := reg.Order()
	hits := make([]string, len(order))
	resolvedNames := make([]string, len(order))

	var g errgroup.Group
	g.SetLimit(lookupParallelism)
	for i, name := range order {
		g.Go(func() error {
			expanded, resolved, err := p.expand(reg, name)
			if err != nil {
				return nil
			}
			if found, ok := existsOrAlternative(p.ns.fs, expanded); ok {
				hits[i] = found
				resolvedNames[i] = resolved
			}
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{}, len(hits))
	var out []*Path
	for i, h := range hits {
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, p.resolved(h, resolvedNames[i]))
	}
	return out
}

// Exists reports whether the resolved path exists.
func (p *Path) Exists() bool {
	return fs.Exists(p.ns.fs, p.Find().raw)
}

// IsDir reports whether the resolved path is a directory.
func (p *Path) IsDir() bool {
	return fs.IsDir(p.ns.fs, p.Find().raw)
}

// FindWithExtension resolves the path and, unless it is an existing file,
// tries the path with each extension in turn.
func (p *Path) FindWithExtension(exts ...string) *Path {
	found := p.Find()
	if fs.Exists(p.ns.fs, found.raw) && !fs.IsDir(p.ns.fs, found.raw) {
		return found
	}
	for _, ext := range exts {
		alt := p.SetExtension(ext).Find()
		if fs.Exists(p.ns.fs, alt.raw) {
			return alt
		}
	}
	return found
}

func (p *Path) findLocated() *Path {
	canon := p.canonical()
	if found, ok := existsOrAlternative(p.ns.fs, canon); ok {
		return p.derive(found)
	}
	return p
}

// expand resolves name in reg and expands the path through it.
func (p *Path) expand(reg *roots.Registry, name string) (expanded, resolved string, err error) {
	root, err := reg.Lookup(name)
	if err != nil {
		return "", "", err
	}
	return p.expandTemplate(root.Template, root.Name), root.Name, nil
}

func (p *Path) expandTemplate(tmpl, rootName string) string {
	out := template.Expand(p.subject(), tmpl, rootName)
	if strings.HasPrefix(out, "/") {
		out = filepath.Clean(out)
	}
	return out
}

// resolved returns a located path annotated with its origin.
func (p *Path) resolved(found, where string) *Path {
	r := p.derive(found)
	r.where = where
	r.original = p.raw
	return r
}

func looksLikeDir(name string) bool {
	return strings.Contains(name, "/") || strings.HasPrefix(name, ".")
}

// existsOrAlternative returns name if it exists, else its first existing
// compressed sibling.
func existsOrAlternative(fsys fs.FileSystem, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if fs.Exists(fsys, name) {
		return name, true
	}
	for _, ext := range compress.Extensions {
		if alt := name + ext; fs.Exists(fsys, alt) {
			return alt, true
		}
	}
	return "", false
}
