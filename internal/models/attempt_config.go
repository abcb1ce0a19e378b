package models

// AttemptConfig is the configuration snapshot frozen into QuizAttempt.Config
// at creation time. It never mutates afterwards; finalization reads the pass
// threshold and time limit from here, not from any live settings.
type AttemptConfig struct {
	ModuleIDs        []uint   `json:"module_ids"`
	RequestedCount   int      `json:"requested_count"`
	ActualCount      int      `json:"actual_count"`
	SourceFilter     string   `json:"source_filter"`
	QuestionTypes    []string `json:"question_types,omitempty"`
	ShuffleQuestions bool     `json:"shuffle_questions"`
	ShuffleOptions   bool     `json:"shuffle_options"`
	TimeLimitSec     int      `json:"time_limit_sec,omitempty"`
	PassThresholdPct int      `json:"pass_threshold_pct"`
}

// Source filters accepted by the eligibility resolver.
const (
	SourceFilterAll        = "all"
	SourceFilterFlagged    = "flagged"
	SourceFilterIncomplete = "incomplete"
)

// ResultBucket aggregates scoring for one slice of the attempt (a question
// type or a module).
type ResultBucket struct {
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	Unanswered     int     `json:"unanswered"`
	PointsEarned   float64 `json:"points_earned"`
	PointsPossible float64 `json:"points_possible"`
}

// ResultSummary is written onto the attempt exactly once, at finalization.
type ResultSummary struct {
	ScorePct        int                     `json:"score_pct"`
	Passed          bool                    `json:"passed"`
	TimedOut        bool                    `json:"timed_out"`
	PointsEarned    float64                 `json:"points_earned"`
	PointsPossible  float64                 `json:"points_possible"`
	CorrectCount    int                     `json:"correct_count"`
	IncorrectCount  int                     `json:"incorrect_count"`
	UnansweredCount int                     `json:"unanswered_count"`
	ByType          map[string]ResultBucket `json:"by_type"`
	ByModule        map[string]ResultBucket `json:"by_module"`
	ElapsedMs       int64                   `json:"elapsed_ms"`
}
