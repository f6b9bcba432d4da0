// Package strings normalizes repeated request fields such as subset ids,
// identifier types and country indicators.
package strings

import (
	"strings"
)

// Normalizer maps a raw value to its canonical form. An empty result drops
// the value.
type Normalizer func(string) string

// Dedupe normalizes every value and keeps the first occurrence of each
// canonical form. Order is preserved; nil stays nil.
func Dedupe(values []string, normalize Normalizer) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// DedupeAndTrim drops blank and repeated values after trimming whitespace.
//
//	DedupeAndTrim([]string{" SI01 ", "SI02", "SI01", ""}) // [SI01 SI02]
func DedupeAndTrim(values []string) []string {
	return Dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folded to lower.
func DedupeAndTrimLower(values []string) []string {
	return Dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

// DedupeAndTrimUpper is DedupeAndTrim with case folded to upper, the form
// country indicators are compared in.
func DedupeAndTrimUpper(values []string) []string {
	return Dedupe(values, func(v string) string {
		return strings.ToUpper(strings.TrimSpace(v))
	})
}
