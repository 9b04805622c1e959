package primitives

import (
	"sort"
	"strings"
)

// IsWildcardPattern reports whether an event pattern contains a '*'.
func IsWildcardPattern(pattern string) bool {
	return strings.IndexByte(pattern, '*') >= 0
}

// MatchEvent reports whether an event type matches a transition pattern.
// Exact patterns compare for equality; '*' matches zero or more characters,
// so "*" matches everything and "order.*" matches "order.paid".
func MatchEvent(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if pattern == Wildcard {
		return true
	}
	n := len(pattern)
	if n == 0 {
		return eventType == ""
	}
	if pattern[n-1] == '*' && strings.IndexByte(pattern[:n-1], '*') < 0 {
		return strings.HasPrefix(eventType, pattern[:n-1])
	}
	return matchGlob(eventType, pattern)
}

// matchGlob is an iterative '*' matcher with single-star backtracking.
func matchGlob(value, pattern string) bool {
	vi, pi := 0, 0
	starP, starV := -1, -1
	for vi < len(value) {
		switch {
		case pi < len(pattern) && pattern[pi] == '*':
			starP = pi
			starV = vi
			pi++
		case pi < len(pattern) && pattern[pi] == value[vi]:
			vi++
			pi++
		case starP >= 0:
			starV++
			vi = starV
			pi = starP + 1
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// OrderPatterns returns the keys of an On map in evaluation order: exact
// patterns first (sorted), then wildcard patterns with the longest literal
// prefix first. Ties fall back to lexical order so that evaluation never
// depends on map iteration.
func OrderPatterns(on map[string][]TransitionConfig) (exact, wildcard []string) {
	for pattern := range on {
		if IsWildcardPattern(pattern) {
			wildcard = append(wildcard, pattern)
		} else {
			exact = append(exact, pattern)
		}
	}
	sort.Strings(exact)
	sort.Slice(wildcard, func(i, j int) bool {
		pi, pj := literalPrefix(wildcard[i]), literalPrefix(wildcard[j])
		if pi != pj {
			return pi > pj
		}
		return wildcard[i] < wildcard[j]
	})
	return exact, wildcard
}

func literalPrefix(pattern string) int {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return i
	}
	return len(pattern)
}
