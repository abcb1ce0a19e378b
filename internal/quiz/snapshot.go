package quiz

import (
	"strings"
	"time"
)

// OptionSnapshot is one answer option frozen inside a question snapshot.
type OptionSnapshot struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionSnapshot is the immutable copy of a question captured at
// attempt-creation time. CorrectAnswers carries the type-specific answer-key
// encoding; SourceUpdatedAt records the question's updatedAt at snapshot time
// so later edits to the source are visibly irrelevant to this attempt.
type QuestionSnapshot struct {
	QuestionID      uint             `json:"question_id"`
	ModuleID        uint             `json:"module_id"`
	Type            string           `json:"type"`
	Stem            string           `json:"stem"`
	Explanation     string           `json:"explanation,omitempty"`
	Points          float64          `json:"points"`
	Options         []OptionSnapshot `json:"options"`
	CorrectAnswers  []string         `json:"correct_answers"`
	SourceUpdatedAt time.Time        `json:"source_updated_at"`
}

// Response is the learner's current answer state for one item.
type Response struct {
	SelectedOptions []string
	TextResponse    string
}

// Outcome is the result of evaluating one item. Unanswered items are never
// correct and are tallied separately from incorrect ones.
type Outcome struct {
	Answered bool
	Correct  bool
}

// NormalizeType canonicalizes a question type string for dispatch and for
// the builder's type allow-list.
func NormalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Option returns the option with the given id, if present.
func (s QuestionSnapshot) Option(id string) (OptionSnapshot, bool) {
	for _, opt := range s.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return OptionSnapshot{}, false
}
