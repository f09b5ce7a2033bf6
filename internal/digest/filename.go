package digest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFilenameLength is the longest filename Sanitize returns.
const MaxFilenameLength = 254

var extensionRe = regexp.MustCompile(`(\.[^./]{2,9})$`)

// Sanitize turns a cache key into a single safe filename. Separators become
// underscores, and a name that had to be rewritten (or already carries the
// '@' marker) gets a short digest of the original key before its extension,
// so "a/b" and "a_b" stay distinct. Names longer than length are truncated
// with a postfix that records the original length and a digest, keeping any
// short extension.
func Sanitize(name string, length int) string {
	if length <= 0 {
		length = MaxFilenameLength
	}
	original := name
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		name = "_"
	}
	if name != original || strings.Contains(original, "@") {
		ext := extensionRe.FindString(name)
		name = strings.TrimSuffix(name, ext) + "@" + Short(original, 8) + ext
	}
	if len(name) <= length {
		return name
	}

	ext := ""
	if m := extensionRe.FindString(name); m != "" {
		ext = m
	}
	postfix := fmt.Sprintf("--%d@%d_%s%s", len(name), length, Short(name, 5), ext)
	return name[:length-len(postfix)] + postfix
}

// Filename returns the filename for key, suffixed with the digest of options
// when options is non-empty.
func Filename(key string, options map[string]any) string {
	clean := make(map[string]any, len(options))
	for k, v := range options {
		if v == nil {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		return Sanitize(key, MaxFilenameLength)
	}
	suffix := "_" + Short(String(clean), 32)
	return Sanitize(key, MaxFilenameLength-len(suffix)) + suffix
}
