package asset

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeName turns an archive object name into an asset name: accents are
// stripped, and anything outside letters, digits, '_' and '-' becomes '_'.
// An empty result is replaced by "Unnamed".
func SanitizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		if r == '_' || r == '-' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "Unnamed"
	}
	return b.String()
}

// BaseName returns the file name of path without directory or extension,
// sanitized for use as an asset name.
func BaseName(path string) string {
	base := filepath.Base(path)
	return SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))
}
