package fields

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var normalizers = map[string]Normalizer{
	"trim":   Trim,
	"nemail": NormalizeEmail,
	"nname":  NormalizeName,
}

// GetNormalizer retrieves a normalizer by name
func GetNormalizer(name string) (Normalizer, bool) {
	fn, ok := normalizers[name]
	return fn, ok
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lowercases, trims and collapses inner whitespace.
func NormalizeName(s string) string {
	var result strings.Builder
	prevSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsSpace(r) {
			if !prevSpace {
				result.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		result.WriteRune(r)
		prevSpace = false
	}
	return result.String()
}
