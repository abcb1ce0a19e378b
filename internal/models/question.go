package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is the authored source of an attempt item. Attempts never hold a
// live reference to it; its content is copied into an item snapshot at
// attempt-creation time.
type Question struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ModuleID       uint           `gorm:"not null;index" json:"module_id"`
	Type           string         `gorm:"size:32;not null" json:"type"`
	Stem           string         `gorm:"type:text;not null" json:"stem"`
	Explanation    string         `gorm:"type:text" json:"explanation"`
	Points         float64        `gorm:"not null;default:1" json:"points"`
	Status         string         `gorm:"size:32;not null;default:'draft'" json:"status"`
	Options        datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectAnswers datatypes.JSON `gorm:"type:json" json:"correct_answers"`
	Tags           string         `gorm:"type:text" json:"tags"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

const (
	// QuestionStatusDraft excludes the question from eligibility pools.
	QuestionStatusDraft = "draft"
	// QuestionStatusPublished makes the question eligible for attempts.
	QuestionStatusPublished = "published"
)

// Question type identifiers stored on Question.Type and inside snapshots.
const (
	QuestionTypeSingleChoice = "single_choice"
	QuestionTypeMultiChoice  = "multi_choice"
	QuestionTypeTrueFalse    = "true_false"
	QuestionTypeFillBlank    = "fill_blank"
	QuestionTypeMatching     = "matching"
)

// IsPublished reports whether the question may enter an eligibility pool.
func (q Question) IsPublished() bool {
	return q.Status == QuestionStatusPublished
}
