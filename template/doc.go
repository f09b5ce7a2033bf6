// Package template expands root templates against logical paths.
//
// A template is a string with placeholders such as {TOPLEVEL}, {PKGDIR} or
// {SUBPATH}. Expansion substitutes every recognised placeholder from a fixed
// table and then resolves nested forms of the shape {KEY/pattern/replacement}:
// KEY is expanded, the first literal occurrence of pattern inside it is
// replaced by replacement, and the scan repeats until no nested form is left.
//
//	s := template.Subject{Path: "share/data/file", Package: "locus"}
//	template.Expand(s, "/usr/local/{TOPLEVEL}/{PKGDIR}/{SUBPATH}", "local")
//	// "/usr/local/share/locus/data/file"
//
// Unknown placeholders are kept as literal text. Expansion never fails.
package template
