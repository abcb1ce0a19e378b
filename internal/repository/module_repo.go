package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// ModuleRepository defines data operations for class modules.
type ModuleRepository interface {
	ListPublishedByClass(ctx context.Context, classID uint) ([]models.Module, error)
	GetByIDs(ctx context.Context, classID uint, ids []uint) ([]models.Module, error)
}

type moduleRepository struct {
	db *gorm.DB
}

// NewModuleRepository instantiates the repository.
func NewModuleRepository(db *gorm.DB) ModuleRepository {
	return &moduleRepository{db: db}
}

func (r *moduleRepository) ListPublishedByClass(ctx context.Context, classID uint) ([]models.Module, error) {
	var modules []models.Module
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("status = ?", models.ModuleStatusPublished).
		Order("position ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepository) GetByIDs(ctx context.Context, classID uint, ids []uint) ([]models.Module, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var modules []models.Module
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Where("id IN ?", ids).
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}
