package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
)

// ErrAttemptFinalized signals that a finalize lost the compare-and-swap on
// the attempt status: another request already moved it out of in_progress.
var ErrAttemptFinalized = errors.New("attempt already finalized")

// AttemptRepository defines data operations for attempts and their items.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error
	GetByID(ctx context.Context, id uint) (models.QuizAttempt, error)
	ListItems(ctx context.Context, attemptID uint) ([]models.AttemptItem, error)
	ListByUserAndClass(ctx context.Context, userID, classID uint) ([]models.QuizAttempt, error)
	Update(ctx context.Context, attempt *models.QuizAttempt) error
	UpdateItem(ctx context.Context, item *models.AttemptItem) error
	Finalize(ctx context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

// Create persists the attempt and all its items in one transaction; the
// attempt is not usable until every item row exists.
func (r *attemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].AttemptID = attempt.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.QuizAttempt{}, err
	}
	return attempt, nil
}

func (r *attemptRepository) ListItems(ctx context.Context, attemptID uint) ([]models.AttemptItem, error) {
	var items []models.AttemptItem
	err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("order_index ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *attemptRepository) ListByUserAndClass(ctx context.Context, userID, classID uint) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("class_id = ?", classID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.QuizAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *attemptRepository) UpdateItem(ctx context.Context, item *models.AttemptItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Finalize writes the terminal state, summary and per-item scores. The
// status write is a compare-and-swap guarded on in_progress so two
// concurrent submits cannot both score the attempt.
func (r *attemptRepository) Finalize(ctx context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.QuizAttempt{}).
			Where("id = ?", attempt.ID).
			Where("status = ?", models.AttemptStatusInProgress).
			Updates(map[string]interface{}{
				"status":           attempt.Status,
				"submitted_at":     attempt.SubmittedAt,
				"time_expired_at":  attempt.TimeExpiredAt,
				"elapsed_ms":       attempt.ElapsedMs,
				"last_activity_at": attempt.LastActivityAt,
				"visited_count":    attempt.VisitedCount,
				"answered_count":   attempt.AnsweredCount,
				"flagged_count":    attempt.FlaggedCount,
				"result":           attempt.Result,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAttemptFinalized
		}
		for i := range items {
			err := tx.Model(&models.AttemptItem{}).
				Where("id = ?", items[i].ID).
				Updates(map[string]interface{}{
					"is_correct":    items[i].IsCorrect,
					"points_earned": items[i].PointsEarned,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
