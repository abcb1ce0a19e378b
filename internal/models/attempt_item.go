package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptItem is one question instance inside an attempt. Snapshot and
// OptionOrder are written once by the builder; only the response fields and,
// at finalization, the score fields mutate afterwards.
type AttemptItem struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	AttemptID  uint `gorm:"not null;index" json:"attempt_id"`
	OrderIndex int  `gorm:"not null" json:"order_index"`

	// Snapshot freezes the source question's content, including the answer
	// key, so later edits to the question cannot change this attempt.
	Snapshot    datatypes.JSON `gorm:"type:json;not null" json:"snapshot"`
	OptionOrder datatypes.JSON `gorm:"type:json" json:"option_order"`

	SelectedOptions datatypes.JSON `gorm:"type:json" json:"selected_options"`
	TextResponse    string         `gorm:"type:text" json:"text_response"`
	IsFlagged       bool           `gorm:"not null;default:false" json:"is_flagged"`
	VisitedAt       *time.Time     `json:"visited_at"`
	AnsweredAt      *time.Time     `json:"answered_at"`
	LastChangedAt   *time.Time     `json:"last_changed_at"`
	ChangeCount     int            `gorm:"not null;default:0" json:"change_count"`
	TimeSpentMs     int64          `gorm:"not null;default:0" json:"time_spent_ms"`

	PointsPossible float64  `gorm:"not null;default:1" json:"points_possible"`
	IsCorrect      *bool    `json:"is_correct"`
	PointsEarned   *float64 `json:"points_earned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasOptionOrder reports whether a per-question option permutation was baked
// in at creation time.
func (i AttemptItem) HasOptionOrder() bool {
	return len(i.OptionOrder) > 0 && string(i.OptionOrder) != "null"
}
