package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
)

// ProgressCounters is the attempt-level rollup recomputed after every patch.
type ProgressCounters struct {
	Visited  int `json:"visited"`
	Answered int `json:"answered"`
	Flagged  int `json:"flagged"`
}

// AttemptResponse is the attempt envelope shared by runner and review views.
type AttemptResponse struct {
	ID             uint                 `json:"id"`
	ClassID        uint                 `json:"class_id"`
	Status         string               `json:"status"`
	Config         models.AttemptConfig `json:"config"`
	StartedAt      time.Time            `json:"started_at"`
	LastActivityAt time.Time            `json:"last_activity_at"`
	SubmittedAt    *time.Time           `json:"submitted_at"`
	ElapsedMs      int64                `json:"elapsed_ms"`
	Progress       ProgressCounters     `json:"progress"`
}

// RunnerOption is a displayed option with correctness metadata removed.
type RunnerOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ItemResponseState mirrors the mutable response fields of an item.
type ItemResponseState struct {
	SelectedOptions []string   `json:"selected_options"`
	TextResponse    string     `json:"text_response"`
	IsFlagged       bool       `json:"is_flagged"`
	VisitedAt       *time.Time `json:"visited_at"`
	AnsweredAt      *time.Time `json:"answered_at"`
	ChangeCount     int        `json:"change_count"`
	TimeSpentMs     int64      `json:"time_spent_ms"`
}

// RunnerItem is the pre-submission view of one item: options are reordered
// per the baked-in permutation, and everything that would reveal the answer
// key (correct ids, fill-in-the-blank encodings, explanations) is stripped.
type RunnerItem struct {
	ID             uint              `json:"id"`
	OrderIndex     int               `json:"order_index"`
	QuestionID     uint              `json:"question_id"`
	ModuleID       uint              `json:"module_id"`
	Type           string            `json:"type"`
	Stem           string            `json:"stem"`
	Options        []RunnerOption    `json:"options"`
	PointsPossible float64           `json:"points_possible"`
	Response       ItemResponseState `json:"response"`
}

// ModuleLite names a module inside runner/review bundles.
type ModuleLite struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

// RunnerBundleResponse backs the attempt runner screen.
type RunnerBundleResponse struct {
	Attempt AttemptResponse `json:"attempt"`
	Modules []ModuleLite    `json:"modules"`
	Items   []RunnerItem    `json:"items"`
}

// ItemChange is one partial update inside a patch batch. Nil fields are
// untouched; MarkVisited only ever sets visitedAt once.
type ItemChange struct {
	ItemID           uint      `json:"item_id" validate:"required,gt=0"`
	SelectedOptions  *[]string `json:"selected_options"`
	TextResponse     *string   `json:"text_response"`
	IsFlagged        *bool     `json:"is_flagged"`
	MarkVisited      bool      `json:"mark_visited"`
	TimeSpentDeltaMs *int64    `json:"time_spent_delta_ms"`
}

// PatchAttemptRequest applies a bounded batch of response edits.
type PatchAttemptRequest struct {
	ElapsedMs *int64       `json:"elapsed_ms" validate:"omitempty,gte=0"`
	Changes   []ItemChange `json:"changes" validate:"required,min=1,max=200,dive"`
}

// PatchAttemptResponse acknowledges a batch with fresh rollup counters.
type PatchAttemptResponse struct {
	OK       bool             `json:"ok"`
	Progress ProgressCounters `json:"progress"`
}

// HeartbeatRequest keeps elapsed time flowing while the learner is idle.
type HeartbeatRequest struct {
	ElapsedMs int64 `json:"elapsed_ms" validate:"gte=0"`
}

// SubmitAttemptRequest finalizes the attempt.
type SubmitAttemptRequest struct {
	ElapsedMs *int64 `json:"elapsed_ms" validate:"omitempty,gte=0"`
}

// SubmitAttemptResponse reports the terminal state. AlreadySubmitted is true
// when the attempt was finalized before this call; the stored summary is
// returned unchanged in that case.
type SubmitAttemptResponse struct {
	AlreadySubmitted bool                 `json:"already_submitted"`
	Status           string               `json:"status"`
	Result           models.ResultSummary `json:"result"`
}

// NewAttemptResponse converts an attempt model into its shared envelope.
func NewAttemptResponse(attempt models.QuizAttempt) AttemptResponse {
	var cfg models.AttemptConfig
	_ = json.Unmarshal(attempt.Config, &cfg)

	return AttemptResponse{
		ID:             attempt.ID,
		ClassID:        attempt.ClassID,
		Status:         attempt.Status,
		Config:         cfg,
		StartedAt:      attempt.StartedAt,
		LastActivityAt: attempt.LastActivityAt,
		SubmittedAt:    attempt.SubmittedAt,
		ElapsedMs:      attempt.ElapsedMs,
		Progress: ProgressCounters{
			Visited:  attempt.VisitedCount,
			Answered: attempt.AnsweredCount,
			Flagged:  attempt.FlaggedCount,
		},
	}
}

// NewAttemptSummaryResponse converts an attempt for listing.
func NewAttemptSummaryResponse(attempt models.QuizAttempt) AttemptSummaryResponse {
	var cfg models.AttemptConfig
	_ = json.Unmarshal(attempt.Config, &cfg)

	summary := AttemptSummaryResponse{
		ID:            attempt.ID,
		ClassID:       attempt.ClassID,
		Status:        attempt.Status,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   attempt.SubmittedAt,
		ElapsedMs:     attempt.ElapsedMs,
		QuestionCount: cfg.ActualCount,
		Config:        &cfg,
	}
	if attempt.HasResult() {
		var result models.ResultSummary
		if err := json.Unmarshal(attempt.Result, &result); err == nil {
			summary.ScorePct = &result.ScorePct
			summary.Passed = &result.Passed
		}
	}
	return summary
}

// NewRunnerItem builds the redacted pre-submission view of an item.
func NewRunnerItem(item models.AttemptItem) RunnerItem {
	snap := decodeSnapshot(item)

	runner := RunnerItem{
		ID:             item.ID,
		OrderIndex:     item.OrderIndex,
		QuestionID:     snap.QuestionID,
		ModuleID:       snap.ModuleID,
		Type:           quiz.NormalizeType(snap.Type),
		Stem:           snap.Stem,
		Options:        runnerOptions(item, snap),
		PointsPossible: item.PointsPossible,
		Response:       newItemResponseState(item),
	}
	return runner
}

func newItemResponseState(item models.AttemptItem) ItemResponseState {
	return ItemResponseState{
		SelectedOptions: decodeSelected(item),
		TextResponse:    item.TextResponse,
		IsFlagged:       item.IsFlagged,
		VisitedAt:       item.VisitedAt,
		AnsweredAt:      item.AnsweredAt,
		ChangeCount:     item.ChangeCount,
		TimeSpentMs:     item.TimeSpentMs,
	}
}

// runnerOptions applies the baked-in option permutation and hides anything
// that encodes the answer key. Fill-in-the-blank options ARE the accepted
// answers, so the runner sees none of them.
func runnerOptions(item models.AttemptItem, snap quiz.QuestionSnapshot) []RunnerOption {
	if quiz.NormalizeType(snap.Type) == models.QuestionTypeFillBlank {
		return []RunnerOption{}
	}

	ordered := snap.Options
	if item.HasOptionOrder() {
		var order []string
		if err := json.Unmarshal(item.OptionOrder, &order); err == nil && len(order) > 0 {
			reordered := make([]quiz.OptionSnapshot, 0, len(ordered))
			for _, id := range order {
				if opt, ok := snap.Option(id); ok {
					reordered = append(reordered, opt)
				}
			}
			if len(reordered) == len(ordered) {
				ordered = reordered
			}
		}
	}

	options := make([]RunnerOption, 0, len(ordered))
	for _, opt := range ordered {
		options = append(options, RunnerOption{ID: opt.ID, Text: opt.Text})
	}
	return options
}

func decodeSnapshot(item models.AttemptItem) quiz.QuestionSnapshot {
	var snap quiz.QuestionSnapshot
	_ = json.Unmarshal(item.Snapshot, &snap)
	return snap
}

func decodeSelected(item models.AttemptItem) []string {
	if len(item.SelectedOptions) == 0 {
		return []string{}
	}
	var selected []string
	if err := json.Unmarshal(item.SelectedOptions, &selected); err != nil {
		return []string{}
	}
	return selected
}
