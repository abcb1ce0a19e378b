package models

import "time"

// Module groups questions inside a class. Only published modules are
// eligible for quiz generation.
type Module struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ClassID   uint       `gorm:"not null;index" json:"class_id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Position  int        `gorm:"not null;default:0" json:"position"`
	Status    string     `gorm:"size:32;not null;default:'draft'" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Questions []Question `json:"-"`
}

const (
	// ModuleStatusDraft means the module is not yet visible to learners.
	ModuleStatusDraft = "draft"
	// ModuleStatusPublished means the module can feed quiz attempts.
	ModuleStatusPublished = "published"
)

// IsPublished reports whether the module may contribute questions to attempts.
func (m Module) IsPublished() bool {
	return m.Status == ModuleStatusPublished
}
