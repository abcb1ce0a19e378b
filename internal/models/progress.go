package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionProgress records a learner's prior interaction with a question in a
// class, outside of any attempt. The quiz builder reads it to resolve the
// "flagged" and "incomplete" source filters; this service never writes it.
type QuestionProgress struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index:idx_progress_user_class" json:"user_id"`
	ClassID         uint           `gorm:"not null;index:idx_progress_user_class" json:"class_id"`
	QuestionID      uint           `gorm:"not null;index" json:"question_id"`
	Flagged         bool           `gorm:"not null;default:false" json:"flagged"`
	SelectedOptions datatypes.JSON `gorm:"type:json" json:"selected_options"`
	EliminatedIDs   datatypes.JSON `gorm:"type:json" json:"eliminated_ids"`
	LastSeenAt      *time.Time     `json:"last_seen_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HasInteraction reports whether the learner has ever selected or eliminated
// anything on this question. Questions without interaction count as
// "incomplete" for the source filter.
func (p QuestionProgress) HasInteraction() bool {
	return jsonArrayNotEmpty(p.SelectedOptions) || jsonArrayNotEmpty(p.EliminatedIDs)
}

func jsonArrayNotEmpty(raw datatypes.JSON) bool {
	if len(raw) == 0 {
		return false
	}
	s := string(raw)
	return s != "null" && s != "[]"
}
