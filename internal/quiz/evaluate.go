package quiz

import (
	"sort"
	"strings"
)

// Evaluate scores one frozen question snapshot against the learner's current
// response. It is a pure function with no storage, clock, or error return.
// Degraded authored content (bad regex, malformed key) defuses to a
// non-match instead of failing the whole submission.
func Evaluate(snap QuestionSnapshot, resp Response, guard RegexGuard) Outcome {
	if guard == nil {
		guard = DefaultRegexGuard
	}

	if !IsAnswered(snap, resp) {
		return Outcome{}
	}

	out := Outcome{Answered: true}
	switch NormalizeType(snap.Type) {
	case "fill_blank":
		out.Correct = evaluateFillBlank(snap, fillBlankInput(resp), guard)
	case "matching":
		out.Correct = evaluateMatching(snap, resp.SelectedOptions)
	default:
		// Single/multi select, true/false and anything unrecognized score as
		// an exact set comparison on option ids.
		out.Correct = equalIDSets(resp.SelectedOptions, snap.CorrectAnswers)
	}
	return out
}

// IsAnswered reports whether the item counts as answered. For
// fill-in-the-blank that means non-blank text (or its selectedOptions[0]
// mirror); for everything else a non-empty selection.
func IsAnswered(snap QuestionSnapshot, resp Response) bool {
	if NormalizeType(snap.Type) == "fill_blank" {
		return strings.TrimSpace(fillBlankInput(resp)) != ""
	}
	return len(resp.SelectedOptions) > 0
}

// fillBlankInput prefers the text response and falls back to the mirrored
// first selection, so both write paths evaluate identically.
func fillBlankInput(resp Response) string {
	if strings.TrimSpace(resp.TextResponse) != "" {
		return resp.TextResponse
	}
	if len(resp.SelectedOptions) > 0 {
		return resp.SelectedOptions[0]
	}
	return ""
}

// equalIDSets compares two id sets: size and membership must both match.
// No partial credit.
func equalIDSets(got, want []string) bool {
	if len(got) != len(want) || len(want) == 0 {
		return false
	}
	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
