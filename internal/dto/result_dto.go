package dto

import (
	"encoding/json"

	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
)

// ReviewItem is the post-submission view of one item. Unlike the runner
// view it surfaces the score, the explanation and a human-displayable
// rendering of the correct answer.
type ReviewItem struct {
	ID             uint              `json:"id"`
	OrderIndex     int               `json:"order_index"`
	QuestionID     uint              `json:"question_id"`
	ModuleID       uint              `json:"module_id"`
	Type           string            `json:"type"`
	Stem           string            `json:"stem"`
	Explanation    string            `json:"explanation"`
	Options        []RunnerOption    `json:"options"`
	Response       ItemResponseState `json:"response"`
	IsCorrect      *bool             `json:"is_correct"`
	Answered       bool              `json:"answered"`
	PointsPossible float64           `json:"points_possible"`
	PointsEarned   *float64          `json:"points_earned"`
	CorrectAnswer  CorrectAnswerView `json:"correct_answer"`
}

// CorrectAnswerView renders the answer key per question type: decoded
// accepted texts for fill-in-the-blank, prompt/answer text pairs for
// matching, the raw correct id set otherwise.
type CorrectAnswerView struct {
	OptionIDs     []string    `json:"option_ids,omitempty"`
	AcceptedTexts []string    `json:"accepted_texts,omitempty"`
	Pairs         [][2]string `json:"pairs,omitempty"`
}

// AttemptResultsResponse backs the review screen.
type AttemptResultsResponse struct {
	Attempt AttemptResponse      `json:"attempt"`
	Summary models.ResultSummary `json:"summary"`
	Items   []ReviewItem         `json:"items"`
}

// NewReviewItem builds the full post-submission view of an item.
func NewReviewItem(item models.AttemptItem) ReviewItem {
	snap := decodeSnapshot(item)

	review := ReviewItem{
		ID:             item.ID,
		OrderIndex:     item.OrderIndex,
		QuestionID:     snap.QuestionID,
		ModuleID:       snap.ModuleID,
		Type:           quiz.NormalizeType(snap.Type),
		Stem:           snap.Stem,
		Explanation:    snap.Explanation,
		Options:        reviewOptions(item, snap),
		Response:       newItemResponseState(item),
		IsCorrect:      item.IsCorrect,
		Answered:       item.AnsweredAt != nil,
		PointsPossible: item.PointsPossible,
		PointsEarned:   item.PointsEarned,
		CorrectAnswer:  newCorrectAnswerView(snap),
	}
	return review
}

func newCorrectAnswerView(snap quiz.QuestionSnapshot) CorrectAnswerView {
	switch quiz.NormalizeType(snap.Type) {
	case models.QuestionTypeFillBlank:
		return CorrectAnswerView{AcceptedTexts: quiz.AcceptedAnswerTexts(snap)}
	case models.QuestionTypeMatching:
		return CorrectAnswerView{Pairs: quiz.DecodedMatchingPairs(snap)}
	default:
		ids := snap.CorrectAnswers
		if ids == nil {
			ids = []string{}
		}
		return CorrectAnswerView{OptionIDs: ids}
	}
}

// reviewOptions keeps the learner's displayed order so the review mirrors
// what the runner showed.
func reviewOptions(item models.AttemptItem, snap quiz.QuestionSnapshot) []RunnerOption {
	if quiz.NormalizeType(snap.Type) == models.QuestionTypeFillBlank {
		return []RunnerOption{}
	}
	return runnerOptions(item, snap)
}

// DecodeResultSummary reads the stored summary off a finalized attempt.
func DecodeResultSummary(attempt models.QuizAttempt) models.ResultSummary {
	var summary models.ResultSummary
	_ = json.Unmarshal(attempt.Result, &summary)
	return summary
}
