package services

import (
	"path/filepath"
	"strings"
)

// SecureFilename reduces a client-supplied name to a safe flat file name:
// path separators become underscores, only ASCII letters, digits, '_', '.'
// and '-' survive, and leading/trailing dots and underscores are trimmed.
// The result may be empty.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// extension returns the lowercase extension of name without the dot
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
