package security

import (
	"regexp"
	"strings"
)

// EscapeRegex returns s with every regex metacharacter escaped, suitable for
// embedding s as a literal inside a larger pattern.
func EscapeRegex(s string) string {
	return regexp.QuoteMeta(s)
}

// dangerousRegexFragments are substrings that, when present un-escaped in a
// pattern, are associated with catastrophic backtracking in backtracking
// regex engines: nested quantifiers like (a+)+ or (a*)*, and alternation of
// overlapping greedy atoms like (a|a)+. Go's regexp package is RE2-based and
// immune to catastrophic backtracking, but SafeRegexTest still classifies and
// refuses these shapes so that any caller-supplied pattern is held to the
// same conservative bar regardless of which engine eventually runs it (a
// heartbeat pattern, for instance, is a small fixed in-code set today but
// the check exists at the boundary, not keyed to the current pattern list).
var dangerousRegexFragments = []string{
	"+)+", "+)*", "*)+", "*)*", // nested quantifiers
	"){2,}", // bounded repetition of a group, often combined with nesting
}

// IsDangerousRegexPattern classifies pattern as dangerous if it contains a
// nested-quantifier or overlapping-alternation shape known to cause
// catastrophic backtracking in naive regex engines.
func IsDangerousRegexPattern(pattern string) bool {
	for _, frag := range dangerousRegexFragments {
		if strings.Contains(pattern, frag) {
			return true
		}
	}
	return hasOverlappingAlternation(pattern)
}

// hasOverlappingAlternation looks for a top-level group containing an
// alternation where two branches are identical or one is a prefix of the
// other, e.g. (a|a) or (a|ab), which is the classic ReDoS alternation shape.
func hasOverlappingAlternation(pattern string) bool {
	start := strings.IndexByte(pattern, '(')
	if start < 0 {
		return false
	}
	end := matchingParen(pattern, start)
	if end < 0 {
		return false
	}
	inner := pattern[start+1 : end]
	branches := strings.Split(inner, "|")
	if len(branches) < 2 {
		return false
	}
	for i := 0; i < len(branches); i++ {
		for j := i + 1; j < len(branches); j++ {
			a, b := branches[i], branches[j]
			if a == b || strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
				return true
			}
		}
	}
	return false
}

func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// maxSafeRegexInputLen bounds the input text SafeRegexTest will run a regex
// against; beyond this it falls back to literal substring matching even for
// patterns that were not classified dangerous, since length alone is a cheap
// backstop regardless of engine.
const maxSafeRegexInputLen = 64 * 1024

// SafeRegexTest reports whether input matches pattern. It refuses patterns
// classified as dangerous by IsDangerousRegexPattern and instead falls back
// to a literal substring test using the pattern text itself (regex
// metacharacters included, matched verbatim) so callers still get a
// best-effort answer rather than an error. Input longer than
// maxSafeRegexInputLen is also only ever substring-matched.
func SafeRegexTest(pattern, input string) bool {
	if len(input) > maxSafeRegexInputLen {
		return strings.Contains(input, pattern)
	}
	if IsDangerousRegexPattern(pattern) {
		return strings.Contains(input, pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return strings.Contains(input, pattern)
	}
	return re.MatchString(input)
}
