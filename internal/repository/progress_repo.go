package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// ProgressRepository reads per-user question progress. The quiz engine uses
// it for the flagged/incomplete source filters and never writes it.
type ProgressRepository interface {
	ListByUserAndClass(ctx context.Context, userID, classID uint) ([]models.QuestionProgress, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates the repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) ListByUserAndClass(ctx context.Context, userID, classID uint) ([]models.QuestionProgress, error) {
	var progress []models.QuestionProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("class_id = ?", classID).
		Find(&progress).Error
	if err != nil {
		return nil, err
	}
	return progress, nil
}
