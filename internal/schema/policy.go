package schema

import "strings"

// Policy controls which paths callers may use against a root entity.
//
// Patterns are exact paths, "*" (everything), or a prefix ending in ".*"
// that matches every path below it ("customer.*" matches "customer.name"
// and "customer.address.city" but not "customer" itself).
type Policy struct {
	// Allow lists permitted paths. Empty allows everything.
	Allow []string

	// Deny lists rejected paths. Deny wins over Allow.
	Deny []string

	// Permissive lists paths that are dropped from the request instead of
	// failing it when they do not resolve or are not allowed.
	Permissive []string

	// Shallow restricts the root to its own fields: paths that traverse
	// relations are rejected even when the caller allows deep dives.
	Shallow bool
}

// Allows reports whether path passes the allow and deny lists.
func (p Policy) Allows(path string) bool {
	if matchAny(p.Deny, path) {
		return false
	}
	return len(p.Allow) == 0 || matchAny(p.Allow, path)
}

// IsPermissive reports whether failures on path should be skipped.
func (p Policy) IsPermissive(path string) bool {
	return matchAny(p.Permissive, path)
}

func matchAny(patterns []string, path string) bool {
	for _, pat := range patterns {
		if matchPattern(pat, path) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, path string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == path
	}
}
