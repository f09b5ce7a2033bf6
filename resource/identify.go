package resource

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/locus/roots"
)

// Identify maps a concrete path back to the shortest logical path that one
// of the roots would expand to it. The current root is skipped since it
// matches almost anything. Paths that are not located, or that no root
// matches, are returned as they are.
func (ns *Namespace) Identify(located string) *Path {
	if !IsLocated(located) {
		return ns.Path(located)
	}
	canon := ns.Path(located).canonical()

	var choices []string
	for _, name := range ns.roots.Order() {
		if name == roots.Current {
			continue
		}
		root, err := ns.roots.Lookup(name)
		if err != nil {
			continue
		}
		re, ok := ns.identifyPattern(root)
		if !ok {
			continue
		}
		if logical, ok := ns.matchLogical(re, canon); ok {
			choices = append(choices, logical)
		}
	}
	if len(choices) == 0 {
		return ns.Path(located)
	}
	sort.SliceStable(choices, func(i, j int) bool { return len(choices[i]) < len(choices[j]) })
	return ns.Path(choices[0])
}

// Identify is shorthand for p.Namespace().Identify(p.String()).
func (p *Path) Identify() *Path {
	return p.ns.Identify(p.raw)
}

var placeholderRE = regexp.MustCompile(`\{([^{}]*)\}`)

// identifyPattern turns a root template into a regexp with named groups.
func (ns *Namespace) identifyPattern(root roots.Root) (*regexp.Regexp, bool) {
	tmpl := root.Template
	if !strings.Contains(tmpl, "{") {
		tmpl = strings.TrimSuffix(tmpl, "/") + "/{PATH}"
	}
	tmpl = strings.ReplaceAll(tmpl, "{PWD}", ns.workDir())
	tmpl = strings.ReplaceAll(tmpl, "{HOME}", ns.homeDir())
	tmpl = strings.ReplaceAll(tmpl, "{MAPNAME}", root.Name)
	tmpl = strings.ReplaceAll(tmpl, "{REMOVE}/", "")
	tmpl = strings.ReplaceAll(tmpl, "{REMOVE}", "")
	if ns.libdir != "" {
		tmpl = strings.ReplaceAll(tmpl, "{LIBDIR}", ns.libdir)
	} else if strings.Contains(tmpl, "{LIBDIR}") {
		return nil, false
	}

	var b strings.Builder
	b.WriteString("^")
	used := make(map[string]bool)
	rest := tmpl
	for {
		loc := placeholderRE.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		literal := rest[:loc[0]]
		name := rest[loc[2]:loc[3]]
		rest = rest[loc[1]:]

		if strings.Contains(name, "/") || name == "" {
			// Nested substitutions cannot be reversed.
			return nil, false
		}
		group := "(?:[^/]+)"
		if !used[name] {
			group = "(?P<" + name + ">[^/]+)"
			used[name] = true
		}

		switch {
		case name == "TOPLEVEL":
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString(group)
		case strings.HasSuffix(literal, "/"):
			b.WriteString(regexp.QuoteMeta(strings.TrimSuffix(literal, "/")))
			b.WriteString("(?:/" + group + ")?")
		default:
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString(group)
		}
	}
	b.WriteString("(?:/(?P<REST>.+))?/?$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false
	}
	return re, true
}

func (ns *Namespace) matchLogical(re *regexp.Regexp, path string) (string, bool) {
	m := re.FindStringSubmatch(filepath.ToSlash(path))
	if m == nil {
		return "", false
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	for _, key := range []string{"PKGDIR", "RESOURCE"} {
		if v, ok := groups[key]; ok && v != ns.pkg {
			return "", false
		}
	}
	var parts []string
	for _, key := range []string{"TOPLEVEL", "SUBPATH", "PATH", "REST"} {
		if v := groups[key]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "/"), true
}
