package pipeline

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extension returns the lowercased extension of name without the dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// SafeName folds name to ASCII and keeps only letters, digits, '_', '.' and '-'.
func SafeName(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// displayName is the client-facing file name for an upload with extension ext.
func displayName(original, ext string) string {
	name := SafeName(original)
	if !strings.HasSuffix(strings.ToLower(name), "."+ext) {
		return "upload." + ext
	}
	return name
}

// withExtension swaps the extension of name.
func withExtension(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}
