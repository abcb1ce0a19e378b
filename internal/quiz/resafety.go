package quiz

import "regexp"

// RegexGuard decides whether an authored regex pattern is safe to compile
// and run against learner input. It is a best-effort heuristic, not a proof
// of safety; it is pluggable so the screening can be hardened without
// touching the evaluator.
type RegexGuard func(pattern string) bool

// maxRegexPatternLen bounds authored patterns before any structural check.
const maxRegexPatternLen = 200

var (
	// A quantified group that itself contains a quantified sub-expression,
	// e.g. (a+)+ or (\d*)*, the classic catastrophic-backtracking shape.
	nestedQuantifier = regexp.MustCompile(`\([^()]*[*+][^()]*\)\s*[*+{]`)
	// Adjacent unbounded wildcard segments, e.g. .*.* or .+.+.
	repeatedWildcard = regexp.MustCompile(`\.[*+]\.[*+]`)
)

// DefaultRegexGuard rejects over-long patterns and the common nested
// quantifier / repeated wildcard shapes. A rejected pattern is treated as a
// non-match by the evaluator, never as an error: unsafe authored content
// must not crash scoring for unrelated learners.
func DefaultRegexGuard(pattern string) bool {
	if len(pattern) > maxRegexPatternLen {
		return false
	}
	if nestedQuantifier.MatchString(pattern) {
		return false
	}
	if repeatedWildcard.MatchString(pattern) {
		return false
	}
	return true
}
