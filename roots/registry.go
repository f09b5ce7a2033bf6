package roots

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Baseline root names.
const (
	Current = "current"
	User    = "user"
	Global  = "global"
	Usr     = "usr"
	Local   = "local"
	Fast    = "fast"
	Cache   = "cache"
	Bulk    = "bulk"
	Lib     = "lib"
	Tmp     = "tmp"
	Default = "default"

	// All is the pseudo root that selects every root.
	All = "all"

	// LibSuffix marks roots that are searched right before Lib.
	LibSuffix = "_lib"
)

// BaselineOrder is the fixed search order for known root names.
var BaselineOrder = []string{Current, "workflow", User, Local, Global, Usr, Lib, Fast, Cache, Bulk}

// Root is a named template or an alias to another root.
type Root struct {
	Name     string
	Template string
	// Alias names the target root. Template is empty when Alias is set.
	Alias string
}

// IsAlias reports whether r redirects to another root.
func (r Root) IsAlias() bool { return r.Alias != "" }

// Registry is an ordered set of named roots. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	roots map[string]Root
	// added records first registration order. Re-registering keeps the position.
	added []string
	// head and tail hold pinned names; head is most recent first.
	head []string
	tail []string

	order []string // cached; nil when stale
}

// New returns a registry with the baseline roots.
func New() *Registry {
	r := Empty()
	for _, root := range baseline() {
		r.put(root)
	}
	return r
}

// Empty returns a registry with no roots.
func Empty() *Registry {
	return &Registry{roots: make(map[string]Root)}
}

func baseline() []Root {
	return []Root{
		{Name: Current, Template: "{PWD}/{TOPLEVEL}/{SUBPATH}"},
		{Name: User, Template: "{HOME}/.{PKGDIR}/{TOPLEVEL}/{SUBPATH}"},
		{Name: Global, Template: "/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Usr, Template: "/usr/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Local, Template: "/usr/local/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Fast, Template: "/fast/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Cache, Template: "/cache/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Bulk, Template: "/bulk/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"},
		{Name: Lib, Template: "{LIBDIR}/{TOPLEVEL}/{SUBPATH}"},
		{Name: Tmp, Template: "/tmp/{PKGDIR}/{TOPLEVEL}/{SUBPATH}"},
		{Name: Default, Alias: User},
	}
}

// ValidName reports whether name can be registered.
func ValidName(name string) bool {
	return name != "" && name != All && !strings.ContainsAny(name, "/{}")
}

func validate(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidRootName, name)
	}
	return nil
}

// Add registers or replaces the template for name. A pinned name keeps its pin.
func (r *Registry) Add(name, tmpl string) error {
	if err := validate(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(Root{Name: name, Template: tmpl})
	return nil
}

// AddAlias registers name as an alias of target. The target need not exist yet.
func (r *Registry) AddAlias(name, target string) error {
	if err := validate(name); err != nil {
		return err
	}
	if err := validate(target); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(Root{Name: name, Alias: target})
	return nil
}

// Prepend registers name and pins it to the front of the search order.
func (r *Registry) Prepend(name, tmpl string) error {
	if err := validate(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(Root{Name: name, Template: tmpl})
	r.unpin(name)
	r.head = append([]string{name}, r.head...)
	r.order = nil
	return nil
}

// Append registers name and pins it to the end of the search order.
func (r *Registry) Append(name, tmpl string) error {
	if err := validate(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(Root{Name: name, Template: tmpl})
	r.unpin(name)
	r.tail = append(r.tail, name)
	r.order = nil
	return nil
}

// Remove drops name and any pin on it. Aliases pointing at it become dangling.
// Default cannot be dropped: removing it restores it as an alias of User.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == Default {
		r.put(Root{Name: Default, Alias: User})
		r.unpin(name)
		return
	}
	delete(r.roots, name)
	r.added = slices.DeleteFunc(r.added, func(n string) bool { return n == name })
	r.unpin(name)
	r.order = nil
}

func (r *Registry) put(root Root) {
	if r.roots == nil {
		r.roots = make(map[string]Root)
	}
	if _, ok := r.roots[root.Name]; !ok {
		r.added = append(r.added, root.Name)
	}
	r.roots[root.Name] = root
	r.order = nil
}

func (r *Registry) unpin(name string) {
	match := func(n string) bool { return n == name }
	r.head = slices.DeleteFunc(r.head, match)
	r.tail = slices.DeleteFunc(r.tail, match)
}

// Get returns the root registered under name without following aliases.
func (r *Registry) Get(name string) (Root, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	root, ok := r.roots[name]
	return root, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Lookup resolves name to a template root, following aliases.
func (r *Registry) Lookup(name string) (Root, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (Root, error) {
	visited := make(map[string]struct{})
	var chain []string
	for {
		root, ok := r.roots[name]
		if !ok {
			return Root{}, fmt.Errorf("%w: %q", ErrUnknownRoot, name)
		}
		if _, seen := visited[name]; seen {
			return Root{}, &AliasCycleError{Chain: append(chain, name)}
		}
		visited[name] = struct{}{}
		chain = append(chain, name)
		if !root.IsAlias() {
			return root, nil
		}
		name = root.Alias
	}
}

// Order returns the search order. Aliases are not part of it since they
// only repeat their target.
func (r *Registry) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.order == nil {
		r.order = r.computeOrder()
	}
	return slices.Clone(r.order)
}

func (r *Registry) computeOrder() []string {
	var libs []string
	for i := len(r.added) - 1; i >= 0; i-- {
		if name := r.added[i]; strings.HasSuffix(name, LibSuffix) {
			libs = append(libs, name)
		}
	}

	base := make([]string, 0, len(BaselineOrder)+len(libs))
	for _, name := range BaselineOrder {
		if name == Lib {
			base = append(base, libs...)
		}
		base = append(base, name)
	}

	pinned := make(map[string]struct{}, len(r.head)+len(r.tail))
	for _, n := range r.head {
		pinned[n] = struct{}{}
	}
	for _, n := range r.tail {
		pinned[n] = struct{}{}
	}

	eligible := func(name string) bool {
		root, ok := r.roots[name]
		if !ok || root.IsAlias() {
			return false
		}
		_, isPinned := pinned[name]
		return !isPinned
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(r.roots))
	emit := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, n := range r.head {
		emit(n)
	}
	for _, n := range base {
		if eligible(n) {
			emit(n)
		}
	}
	for i := len(r.added) - 1; i >= 0; i-- {
		if n := r.added[i]; eligible(n) {
			emit(n)
		}
	}
	for _, n := range r.tail {
		emit(n)
	}
	return out
}

// Names returns every registered name, aliases included, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.roots))
}

// Templates returns the resolved template of every registered name.
// Names whose alias chain is broken are omitted.
func (r *Registry) Templates() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.roots))
	for name := range r.roots {
		if root, err := r.lookup(name); err == nil {
			out[name] = root.Template
		}
	}
	return out
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{
		roots: maps.Clone(r.roots),
		added: slices.Clone(r.added),
		head:  slices.Clone(r.head),
		tail:  slices.Clone(r.tail),
		order: slices.Clone(r.order),
	}
}
