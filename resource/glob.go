package resource

import (
	"path"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/locus/internal/fs"
)

// GlobAll matches pattern below every root's expansion of the path and
// returns the matches in root priority order, each root's matches sorted.
// Patterns use '/' as separator, "*" stays within a segment and "**"
// crosses segments.
func (p *Path) GlobAll(pattern string) ([]*Path, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	var bases []*Path
	if p.Located() {
		bases = []*Path{p.findLocated()}
	} else {
		reg := p.Registry()
		for _, name := range reg.Order() {
			if b, err := p.Follow(name); err == nil {
				bases = append(bases, b)
			}
		}
	}

	matches := make([][]string, len(bases))
	var eg errgroup.Group
	eg.SetLimit(lookupParallelism)
	for i, base := range bases {
		eg.Go(func() error {
			if !fs.IsDir(p.ns.fs, base.raw) {
				return nil
			}
			found, err := walkMatch(p.ns.fs, base.raw, "", g)
			if err != nil {
				return err
			}
			sort.Strings(found)
			matches[i] = found
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []*Path
	for i, found := range matches {
		for _, m := range found {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, p.resolved(m, bases[i].where))
		}
	}
	return out, nil
}

// Glob matches pattern below the resolved path only.
func (p *Path) Glob(pattern string) ([]*Path, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	base := p.Find()
	if !fs.IsDir(p.ns.fs, base.raw) {
		return nil, nil
	}
	found, err := walkMatch(p.ns.fs, base.raw, "", g)
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	out := make([]*Path, len(found))
	for i, m := range found {
		out[i] = p.resolved(m, base.where)
	}
	return out, nil
}

// walkMatch returns every entry below dir whose '/'-separated path relative
// to the walk root matches g.
func walkMatch(fsys fs.FileSystem, dir, rel string, g glob.Glob) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = path.Join(rel, e.Name())
		}
		child := filepath.Join(dir, e.Name())
		if g.Match(childRel) {
			out = append(out, child)
		}
		if e.IsDir() {
			sub, err := walkMatch(fsys, child, childRel, g)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}
