package models

import "time"

// Class represents a cohort-scoped course that owns modules and attempts.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CohortID  uint      `gorm:"not null;index" json:"cohort_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Modules   []Module  `json:"-"`
}

// ClassMembership links a user to a class with a role.
type ClassMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassID   uint      `gorm:"not null;index:idx_membership_class_user,unique" json:"class_id"`
	UserID    uint      `gorm:"not null;index:idx_membership_class_user,unique" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	// MembershipRoleMember is a regular learner in the class.
	MembershipRoleMember = "member"
	// MembershipRoleAdmin can manage class content.
	MembershipRoleAdmin = "admin"
)
