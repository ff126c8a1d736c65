package expressions

import "strings"

// SplitPath breaks a plain field path such as `a.b` or `a."key with space"`
// into its keys. It reports false for expressions that are not a chain of
// identifiers, e.g. projections, indexes or function calls.
func SplitPath(expression string) ([]string, bool) {
	var keys []string
	rest := expression
	for {
		if rest == "" {
			return nil, false
		}

		var key string
		if rest[0] == '"' {
			var ok bool
			key, rest, ok = quotedKey(rest[1:])
			if !ok {
				return nil, false
			}
		} else {
			end := 0
			for end < len(rest) && isIdentByte(rest[end], end == 0) {
				end++
			}
			if end == 0 {
				return nil, false
			}
			key, rest = rest[:end], rest[end:]
		}
		keys = append(keys, key)

		if rest == "" {
			return keys, true
		}
		if rest[0] != '.' {
			return nil, false
		}
		rest = rest[1:]
	}
}

func quotedKey(s string) (string, string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) || (s[i+1] != '"' && s[i+1] != '\\') {
				return "", "", false
			}
			i++
			b.WriteByte(s[i])
		case '"':
			return b.String(), s[i+1:], true
		default:
			b.WriteByte(s[i])
		}
	}
	return "", "", false
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
