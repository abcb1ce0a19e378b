package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// QuestionRepository defines read operations over authored questions.
// Authoring CRUD lives in a different service; this API only ever reads.
type QuestionRepository interface {
	ListPublishedByModules(ctx context.Context, moduleIDs []uint) ([]models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListPublishedByModules(ctx context.Context, moduleIDs []uint) ([]models.Question, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("module_id IN ?", moduleIDs).
		Where("status = ?", models.QuestionStatusPublished).
		Order("module_id ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
