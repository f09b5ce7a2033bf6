package template

import (
	"os"
	"path"
	"strings"
)

// Placeholders recognised by Expand.
const (
	PkgDir   = "{PKGDIR}"
	Resource = "{RESOURCE}"
	TopLevel = "{TOPLEVEL}"
	SubPath  = "{SUBPATH}"
	Path     = "{PATH}"
	Basename = "{BASENAME}"
	Home     = "{HOME}"
	Pwd      = "{PWD}"
	LibDir   = "{LIBDIR}"
	MapName  = "{MAPNAME}"
	Remove   = "{REMOVE}"
)

// NoLibDir is substituted for {LIBDIR} when no library directory is known.
const NoLibDir = "NOLIBDIR"

// maxPasses bounds nested expansion on malformed or self-producing templates.
const maxPasses = 64

// Subject is the logical path being expanded together with its environment.
type Subject struct {
	// Path is the logical path, segments separated by '/'.
	Path string
	// Package is the namespace package id used for {PKGDIR} and {RESOURCE}.
	Package string
	// LibDir is the library directory hint. Empty means unknown.
	LibDir string
	// Home and Pwd default to the process values when empty.
	Home string
	Pwd  string
}

// TopLevel returns the first path segment.
func (s Subject) TopLevel() string {
	top, _, _ := strings.Cut(s.Path, "/")
	return top
}

// SubPath returns everything after the first segment, or "" for single-segment paths.
func (s Subject) SubPath() string {
	_, rest, _ := strings.Cut(s.Path, "/")
	return rest
}

// Basename returns the last path segment.
func (s Subject) Basename() string {
	return path.Base(s.Path)
}

func (s Subject) home() string {
	if s.Home != "" {
		return s.Home
	}
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}

func (s Subject) pwd() string {
	if s.Pwd != "" {
		return s.Pwd
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// IsPlain reports whether tmpl has no placeholders and therefore denotes a
// plain directory under which the logical path is appended.
func IsPlain(tmpl string) bool {
	return !strings.Contains(tmpl, "{")
}

// Expand expands tmpl for s under the root named rootName.
func Expand(s Subject, tmpl, rootName string) string {
	if IsPlain(tmpl) {
		tmpl = strings.TrimSuffix(tmpl, "/") + "/" + Path
	}
	out := substitute(s, tmpl, rootName)
	return expandNested(s, out, rootName)
}

func substitute(s Subject, tmpl, rootName string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	libdir := s.LibDir
	if libdir == "" {
		libdir = NoLibDir
	}
	r := strings.NewReplacer(
		PkgDir, s.Package,
		Resource, s.Package,
		TopLevel, s.TopLevel(),
		SubPath, s.SubPath(),
		Path, s.Path,
		Basename, s.Basename(),
		Home, s.home(),
		Pwd, s.pwd(),
		LibDir, libdir,
		MapName, rootName,
		Remove+"/", "",
		Remove, "",
	)
	return r.Replace(tmpl)
}

// expandNested resolves {KEY/pattern/replacement} forms until a pass makes no
// progress or maxPasses is reached.
func expandNested(s Subject, text, rootName string) string {
	for i := 0; i < maxPasses; i++ {
		next, changed := nestedPass(s, text, rootName)
		if !changed || next == text {
			return next
		}
		text = next
	}
	return text
}

func nestedPass(s Subject, text, rootName string) (string, bool) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			b.WriteString(text[i:])
			break
		}
		open += i
		end := strings.IndexByte(text[open+1:], '}')
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		end += open + 1
		inner := text[open+1 : end]

		// Restart from the innermost opening brace.
		if j := strings.LastIndexByte(inner, '{'); j >= 0 {
			next := open + 1 + j
			b.WriteString(text[i:next])
			i = next
			continue
		}

		parts := splitUnescaped(inner)
		if len(parts) < 3 {
			b.WriteString(text[i : end+1])
			i = end + 1
			continue
		}

		key, pattern, replacement := parts[0], parts[1], strings.Join(parts[2:], "/")
		expanded := substitute(s, "{"+key+"}", rootName)
		if pattern != "" {
			expanded = strings.Replace(expanded, pattern, replacement, 1)
		}
		b.WriteString(text[i:open])
		b.WriteString(expanded)
		changed = true
		i = end + 1
	}
	return b.String(), changed
}

// splitUnescaped splits on '/' not preceded by a backslash and unescapes `\/`.
func splitUnescaped(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && (i == 0 || s[i-1] != '\\') {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, `\/`, "/")
	}
	return parts
}
