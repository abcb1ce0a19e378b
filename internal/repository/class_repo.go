package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// ClassRepository defines data operations for classes and memberships.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
	IsMember(ctx context.Context, classID, userID uint) (bool, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository instantiates the repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) IsMember(ctx context.Context, classID, userID uint) (bool, error) {
	var membership models.ClassMembership
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("user_id = ?", userID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
