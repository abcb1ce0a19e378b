package dto

import (
	"time"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// QuizLimits exposes the engine's clamping constants so clients can build
// the quiz form without a second round trip.
type QuizLimits struct {
	MaxQuestions     int `json:"max_questions"`
	MaxPatchChanges  int `json:"max_patch_changes"`
	MinTimeLimitSec  int `json:"min_time_limit_sec"`
	MaxTimeLimitSec  int `json:"max_time_limit_sec"`
	MaxPassThreshold int `json:"max_pass_threshold"`
}

// ClassLite summarizes a class in builder responses.
type ClassLite struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ModuleSummary describes one published module in the quiz builder form.
type ModuleSummary struct {
	ID            uint     `json:"id"`
	Title         string   `json:"title"`
	Position      int      `json:"position"`
	QuestionCount int      `json:"question_count"`
	QuestionTypes []string `json:"question_types"`
}

// TagCollection groups question tags for the builder's filter UI.
type TagCollection struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// QuizBuilderDataResponse is the read-only payload backing the quiz builder.
type QuizBuilderDataResponse struct {
	Class          ClassLite       `json:"class"`
	Modules        []ModuleSummary `json:"modules"`
	TagCollections []TagCollection `json:"tag_collections"`
	Limits         QuizLimits      `json:"limits"`
}

// PoolSummaryRequest previews the eligible question pool for a filter
// combination. No side effects.
type PoolSummaryRequest struct {
	ModuleIDs     []uint   `json:"module_ids" query:"module_ids" validate:"required,min=1,dive,gt=0"`
	SourceFilter  string   `json:"source_filter" query:"source_filter" validate:"omitempty,oneof=all flagged incomplete"`
	QuestionTypes []string `json:"question_types" query:"question_types"`
}

// PoolBucket is one slice of the eligible pool.
type PoolBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// PoolSummaryResponse reports eligible question counts for a preview.
type PoolSummaryResponse struct {
	TotalEligible int          `json:"total_eligible"`
	ByModule      []PoolBucket `json:"by_module"`
	ByType        []PoolBucket `json:"by_type"`
}

// CreateAttemptRequest creates a new custom quiz attempt. Out-of-range
// numeric inputs are clamped by the builder; structural problems are
// validation errors.
type CreateAttemptRequest struct {
	ModuleIDs        []uint   `json:"module_ids" validate:"required,min=1,dive,gt=0"`
	QuestionCount    int      `json:"question_count" validate:"required,gt=0"`
	SourceFilter     string   `json:"source_filter" validate:"omitempty,oneof=all flagged incomplete"`
	QuestionTypes    []string `json:"question_types"`
	ShuffleQuestions bool     `json:"shuffle_questions"`
	ShuffleOptions   bool     `json:"shuffle_options"`
	TimeLimitSec     *int     `json:"time_limit_sec" validate:"omitempty,gt=0"`
	PassThresholdPct int      `json:"pass_threshold_pct" validate:"gte=0"`
}

// CreateAttemptResponse returns the new attempt handle.
type CreateAttemptResponse struct {
	AttemptID           uint `json:"attempt_id"`
	QuestionCountActual int  `json:"question_count_actual"`
}

// NewClassLite converts a class model.
func NewClassLite(class models.Class) ClassLite {
	return ClassLite{ID: class.ID, Name: class.Name}
}

// AttemptSummaryResponse lists a user's attempts in a class.
type AttemptSummaryResponse struct {
	ID            uint                  `json:"id"`
	ClassID       uint                  `json:"class_id"`
	Status        string                `json:"status"`
	StartedAt     time.Time             `json:"started_at"`
	SubmittedAt   *time.Time            `json:"submitted_at"`
	ElapsedMs     int64                 `json:"elapsed_ms"`
	QuestionCount int                   `json:"question_count"`
	ScorePct      *int                  `json:"score_pct"`
	Passed        *bool                 `json:"passed"`
	Config        *models.AttemptConfig `json:"config,omitempty"`
}
