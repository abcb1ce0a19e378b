package quiz

import "strings"

// Matching questions tag their options with a "prompt:" or "answer:" text
// prefix. The answer key has gone through three generations, tried in order:
//
//  1. modern pairs   "promptId::answerId[|answerId...]"
//  2. legacy array   answer ids positionally aligned to prompt order
//  3. zip fallback   prompts paired with answers by declaration position
//
// Decoding produces one canonical prompt→accepted-answer-ids map so the
// evaluator never sees the legacy formats. Answer options whose normalized
// text is identical form an equivalence class and are interchangeable for
// any prompt accepting either.

const (
	promptPrefix = "prompt:"
	answerPrefix = "answer:"
	pairSep      = "::"
	altSep       = "|"
)

// matchingKey is the canonical decoded form of a matching answer key.
type matchingKey struct {
	prompts  []OptionSnapshot
	answers  []OptionSnapshot
	accepted map[string]map[string]bool // prompt id -> accepted answer ids
}

func isPromptOption(opt OptionSnapshot) bool {
	return strings.HasPrefix(strings.ToLower(opt.Text), promptPrefix)
}

func isAnswerOption(opt OptionSnapshot) bool {
	return strings.HasPrefix(strings.ToLower(opt.Text), answerPrefix)
}

// MatchingOptionLabel strips the prompt:/answer: tag for display.
func MatchingOptionLabel(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, promptPrefix):
		return strings.TrimSpace(text[len(promptPrefix):])
	case strings.HasPrefix(lower, answerPrefix):
		return strings.TrimSpace(text[len(answerPrefix):])
	}
	return strings.TrimSpace(text)
}

// decodeMatchingKey builds the canonical accepted map from the snapshot,
// trying the three key generations in order. A malformed key yields an empty
// map, which can never be satisfied; it does not raise.
func decodeMatchingKey(snap QuestionSnapshot) matchingKey {
	key := matchingKey{accepted: map[string]map[string]bool{}}
	for _, opt := range snap.Options {
		switch {
		case isPromptOption(opt):
			key.prompts = append(key.prompts, opt)
		case isAnswerOption(opt):
			key.answers = append(key.answers, opt)
		}
	}

	answerIDs := map[string]bool{}
	for _, a := range key.answers {
		answerIDs[a.ID] = true
	}

	modern := false
	for _, entry := range snap.CorrectAnswers {
		if !strings.Contains(entry, pairSep) {
			continue
		}
		parts := strings.SplitN(entry, pairSep, 2)
		promptID := strings.TrimSpace(parts[0])
		if promptID == "" {
			continue
		}
		modern = true
		for _, alt := range strings.Split(parts[1], altSep) {
			alt = strings.TrimSpace(alt)
			if alt == "" {
				continue
			}
			key.accept(promptID, alt)
		}
	}

	if !modern {
		// Legacy array: answer ids aligned to prompt declaration order.
		legacy := make([]string, 0, len(snap.CorrectAnswers))
		for _, entry := range snap.CorrectAnswers {
			entry = strings.TrimSpace(entry)
			if answerIDs[entry] {
				legacy = append(legacy, entry)
			}
		}
		if len(legacy) > 0 {
			for i, promptOpt := range key.prompts {
				if i < len(legacy) {
					key.accept(promptOpt.ID, legacy[i])
				}
			}
		} else {
			// Last resort: zip prompts and answers by position.
			for i, promptOpt := range key.prompts {
				if i < len(key.answers) {
					key.accept(promptOpt.ID, key.answers[i].ID)
				}
			}
		}
	}

	key.expandEquivalents()
	return key
}

func (k *matchingKey) accept(promptID, answerID string) {
	if k.accepted[promptID] == nil {
		k.accepted[promptID] = map[string]bool{}
	}
	k.accepted[promptID][answerID] = true
}

// expandEquivalents makes answers with textually identical normalized
// content interchangeable: accepting one member of the class accepts all.
func (k *matchingKey) expandEquivalents() {
	classes := map[string][]string{}
	for _, a := range k.answers {
		folded := foldText(MatchingOptionLabel(a.Text))
		if folded == "" {
			continue
		}
		classes[folded] = append(classes[folded], a.ID)
	}
	byID := map[string][]string{}
	for _, ids := range classes {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			byID[id] = ids
		}
	}
	for _, acceptedSet := range k.accepted {
		for id := range acceptedSet {
			for _, twin := range byID[id] {
				acceptedSet[twin] = true
			}
		}
	}
}

// evaluateMatching checks a submission of "promptId::answerId" pairs against
// the canonical key: exactly one accepted answer per keyed prompt, no
// missing prompts, no extras, no duplicates.
func evaluateMatching(snap QuestionSnapshot, selected []string) bool {
	key := decodeMatchingKey(snap)
	if len(key.accepted) == 0 {
		return false
	}

	chosen := map[string]string{}
	for _, entry := range selected {
		parts := strings.SplitN(entry, pairSep, 2)
		if len(parts) != 2 {
			return false
		}
		promptID := strings.TrimSpace(parts[0])
		answerID := strings.TrimSpace(parts[1])
		if promptID == "" || answerID == "" {
			return false
		}
		if _, dup := chosen[promptID]; dup {
			return false
		}
		chosen[promptID] = answerID
	}

	if len(chosen) != len(key.accepted) {
		return false
	}
	for promptID, answerID := range chosen {
		acceptedSet, ok := key.accepted[promptID]
		if !ok || !acceptedSet[answerID] {
			return false
		}
	}
	return true
}

// DecodedMatchingPairs renders the accepted mapping as prompt/answer display
// text for the post-submission review view.
func DecodedMatchingPairs(snap QuestionSnapshot) [][2]string {
	key := decodeMatchingKey(snap)
	pairs := make([][2]string, 0, len(key.accepted))
	for _, promptOpt := range key.prompts {
		acceptedSet, ok := key.accepted[promptOpt.ID]
		if !ok {
			continue
		}
		for _, answerOpt := range key.answers {
			if acceptedSet[answerOpt.ID] {
				pairs = append(pairs, [2]string{
					MatchingOptionLabel(promptOpt.Text),
					MatchingOptionLabel(answerOpt.Text),
				})
			}
		}
	}
	return pairs
}
