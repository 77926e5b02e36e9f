package toolrack

import (
	"regexp"
	"strings"
	"unicode"
)

// nameSep joins a namespace prefix and a base tool name into the qualified
// name shown to the LLM.
const nameSep = "."

var nonNameRun = regexp.MustCompile(`[^a-z0-9_]+`)

// NormalizeName converts a user-supplied namespace or tool name into the
// canonical dotted-path-segment form: lowercase, with underscores inserted
// at camelCase boundaries and every run of characters outside [a-z0-9_]
// collapsed to a single underscore. The same rule is applied wherever a name
// becomes a namespace prefix, so merge followed by spinoff round-trips.
func NormalizeName(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(runes) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			// Boundary before an upper after lower/digit (fooBar), and
			// before the last upper of an acronym run (HTTPServer).
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return nonNameRun.ReplaceAllString(b.String(), "_")
}

// qualifiedName computes the display name from a (namespace, baseName) pair.
func qualifiedName(namespace, baseName string) string {
	if namespace == "" {
		return baseName
	}
	return namespace + nameSep + baseName
}
