package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt is one learner's generated instance of a quiz. Config is frozen
// at creation; Result is populated exactly once, at finalization.
type QuizAttempt struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	ClassID        uint           `gorm:"not null;index" json:"class_id"`
	Status         string         `gorm:"size:32;not null;default:'in_progress'" json:"status"`
	Seed           string         `gorm:"size:128;not null" json:"seed"`
	Config         datatypes.JSON `gorm:"type:json;not null" json:"config"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	LastActivityAt time.Time      `gorm:"not null" json:"last_activity_at"`
	SubmittedAt    *time.Time     `json:"submitted_at"`
	TimeExpiredAt  *time.Time     `json:"time_expired_at"`
	ElapsedMs      int64          `gorm:"not null;default:0" json:"elapsed_ms"`
	VisitedCount   int            `gorm:"not null;default:0" json:"visited_count"`
	AnsweredCount  int            `gorm:"not null;default:0" json:"answered_count"`
	FlaggedCount   int            `gorm:"not null;default:0" json:"flagged_count"`
	Result         datatypes.JSON `gorm:"type:json" json:"result"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Items          []AttemptItem  `gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Attempt lifecycle states. Transitions are monotonic: in_progress is initial
// and submitted/timed_out/abandoned are terminal. This service only ever
// enters submitted and timed_out; abandoned is reserved for external
// lifecycle management.
const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusSubmitted  = "submitted"
	AttemptStatusTimedOut   = "timed_out"
	AttemptStatusAbandoned  = "abandoned"
)

// IsActive reports whether responses may still be recorded.
func (a QuizAttempt) IsActive() bool {
	return a.Status == AttemptStatusInProgress
}

// IsTerminal reports whether the attempt has reached a final state.
func (a QuizAttempt) IsTerminal() bool {
	switch a.Status {
	case AttemptStatusSubmitted, AttemptStatusTimedOut, AttemptStatusAbandoned:
		return true
	}
	return false
}

// HasResult reports whether a finalized result summary is present.
func (a QuizAttempt) HasResult() bool {
	return len(a.Result) > 0 && string(a.Result) != "null"
}

// RatchetElapsed raises ElapsedMs to candidate if larger. ElapsedMs never
// decreases across heartbeats, patches and submission.
func (a *QuizAttempt) RatchetElapsed(candidate int64) {
	if candidate > a.ElapsedMs {
		a.ElapsedMs = candidate
	}
}
