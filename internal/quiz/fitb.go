package quiz

import (
	"regexp"
	"strings"
)

// Fill-in-the-blank accepted answers are authored into option text as
//
//	<mode>:<value> | flags=<csv>
//
// where mode is exact, exact_cs, contains or regex and flags may combine
// ignore_punct and normalize_ws. A bare value without a mode prefix is
// treated as exact.

// MatchMode selects how a fill-in-the-blank accepted value is compared.
type MatchMode string

const (
	MatchExact     MatchMode = "exact"
	MatchExactCase MatchMode = "exact_cs"
	MatchContains  MatchMode = "contains"
	MatchRegex     MatchMode = "regex"
)

// AcceptedAnswer is one decoded fill-in-the-blank alternative.
type AcceptedAnswer struct {
	Mode        MatchMode
	Value       string
	IgnorePunct bool
	NormalizeWS bool
}

const flagsSeparator = " | flags="

// ParseAcceptedAnswer decodes one authored accepted-answer encoding.
func ParseAcceptedAnswer(text string) AcceptedAnswer {
	answer := AcceptedAnswer{Mode: MatchExact, Value: text}

	if idx := strings.LastIndex(text, flagsSeparator); idx >= 0 {
		answer.Value = text[:idx]
		for _, flag := range strings.Split(text[idx+len(flagsSeparator):], ",") {
			switch strings.TrimSpace(flag) {
			case "ignore_punct":
				answer.IgnorePunct = true
			case "normalize_ws":
				answer.NormalizeWS = true
			}
		}
	}

	if idx := strings.Index(answer.Value, ":"); idx >= 0 {
		switch MatchMode(answer.Value[:idx]) {
		case MatchExact, MatchExactCase, MatchContains, MatchRegex:
			answer.Mode = MatchMode(answer.Value[:idx])
			answer.Value = answer.Value[idx+1:]
		}
	}

	return answer
}

// Matches reports whether the learner's raw text satisfies this alternative.
// Regex mode runs against the raw input; all other modes run both sides
// through the normalization pipeline first.
func (a AcceptedAnswer) Matches(input string, guard RegexGuard) bool {
	if a.Mode == MatchRegex {
		if guard != nil && !guard(a.Value) {
			return false
		}
		re, err := regexp.Compile(a.Value)
		if err != nil {
			// Invalid authored pattern: defuse to non-match.
			return false
		}
		return re.MatchString(input)
	}

	opts := normalizeOptions{
		keepCase:   a.Mode == MatchExactCase,
		stripPunct: a.IgnorePunct,
		collapseWS: a.NormalizeWS,
	}
	got := normalizeText(input, opts)
	want := normalizeText(a.Value, opts)

	if a.Mode == MatchContains {
		return want != "" && strings.Contains(got, want)
	}
	return got == want
}

// evaluateFillBlank accepts the response if any decoded alternative matches.
func evaluateFillBlank(snap QuestionSnapshot, input string, guard RegexGuard) bool {
	for _, opt := range acceptedOptions(snap) {
		if ParseAcceptedAnswer(opt.Text).Matches(input, guard) {
			return true
		}
	}
	return false
}

// AcceptedAnswerTexts renders the decoded accepted-answer values for a
// fill-in-the-blank snapshot, resolved through the same option set the
// evaluator consults, including the empty-key fallback.
func AcceptedAnswerTexts(snap QuestionSnapshot) []string {
	opts := acceptedOptions(snap)
	texts := make([]string, 0, len(opts))
	for _, opt := range opts {
		texts = append(texts, ParseAcceptedAnswer(opt.Text).Value)
	}
	return texts
}

// acceptedOptions resolves the options carrying accepted-answer encodings.
// Normally the answer key lists their ids; an empty key falls back to every
// declared option.
func acceptedOptions(snap QuestionSnapshot) []OptionSnapshot {
	if len(snap.CorrectAnswers) == 0 {
		return snap.Options
	}
	opts := make([]OptionSnapshot, 0, len(snap.CorrectAnswers))
	for _, id := range snap.CorrectAnswers {
		if opt, ok := snap.Option(id); ok {
			opts = append(opts, opt)
		}
	}
	return opts
}
