package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/observability"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
)

// ErrAttemptNotFound indicates the attempt does not exist.
var ErrAttemptNotFound = errors.New("attempt not found")

// ErrNotAttemptOwner indicates the caller does not own the attempt.
var ErrNotAttemptOwner = errors.New("attempt belongs to a different user")

// ErrAttemptNotActive indicates a write against a non-in_progress attempt.
var ErrAttemptNotActive = errors.New("attempt is no longer in progress")

// AttemptService serves the runner bundle and records incremental responses.
type AttemptService interface {
	GetRunnerBundle(ctx context.Context, attemptID, userID uint) (dto.RunnerBundleResponse, error)
	PatchResponses(ctx context.Context, attemptID, userID uint, req dto.PatchAttemptRequest) (dto.PatchAttemptResponse, error)
	Heartbeat(ctx context.Context, attemptID, userID uint, elapsedMs int64) error
	ListForClass(ctx context.Context, classID, userID uint) ([]dto.AttemptSummaryResponse, error)
}

type attemptService struct {
	attempts  repository.AttemptRepository
	modules   repository.ModuleRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAttemptService constructs an AttemptService instance.
func NewAttemptService(attemptRepo repository.AttemptRepository, moduleRepo repository.ModuleRepository, validate *validator.Validate, logger zerolog.Logger) AttemptService {
	return &attemptService{
		attempts:  attemptRepo,
		modules:   moduleRepo,
		validator: validate,
		logger:    logger.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
	}
}

func (s *attemptService) GetRunnerBundle(ctx context.Context, attemptID, userID uint) (dto.RunnerBundleResponse, error) {
	attempt, err := s.requireOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return dto.RunnerBundleResponse{}, err
	}

	items, err := s.attempts.ListItems(ctx, attemptID)
	if err != nil {
		return dto.RunnerBundleResponse{}, err
	}

	var cfg models.AttemptConfig
	_ = json.Unmarshal(attempt.Config, &cfg)

	moduleLites := []dto.ModuleLite{}
	if modules, err := s.modules.GetByIDs(ctx, attempt.ClassID, cfg.ModuleIDs); err == nil {
		for _, m := range modules {
			moduleLites = append(moduleLites, dto.ModuleLite{ID: m.ID, Title: m.Title})
		}
	}

	runnerItems := make([]dto.RunnerItem, 0, len(items))
	for _, item := range items {
		runnerItems = append(runnerItems, dto.NewRunnerItem(item))
	}

	return dto.RunnerBundleResponse{
		Attempt: dto.NewAttemptResponse(attempt),
		Modules: moduleLites,
		Items:   runnerItems,
	}, nil
}

func (s *attemptService) PatchResponses(ctx context.Context, attemptID, userID uint, req dto.PatchAttemptRequest) (dto.PatchAttemptResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.PatchAttemptResponse{}, err
	}
	if len(req.Changes) > MaxPatchChanges {
		return dto.PatchAttemptResponse{}, errors.New("too many changes in one batch")
	}

	attempt, err := s.requireOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return dto.PatchAttemptResponse{}, err
	}
	// The whole batch is rejected at the attempt level; no item is touched.
	if !attempt.IsActive() {
		return dto.PatchAttemptResponse{}, ErrAttemptNotActive
	}

	items, err := s.attempts.ListItems(ctx, attemptID)
	if err != nil {
		return dto.PatchAttemptResponse{}, err
	}
	byID := make(map[uint]*models.AttemptItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	now := s.now()
	for _, change := range req.Changes {
		item, ok := byID[change.ItemID]
		if !ok {
			// Missing or foreign item: skip, never abort the batch.
			s.logger.Warn().Uint("attempt_id", attemptID).Uint("item_id", change.ItemID).Msg("patch change for unknown item skipped")
			continue
		}
		if s.applyChange(item, change, now) {
			if err := s.attempts.UpdateItem(ctx, item); err != nil {
				return dto.PatchAttemptResponse{}, err
			}
		}
	}

	// Counters are recomputed from a full re-read of all items, not just the
	// patched ones, so they can never drift.
	fresh, err := s.attempts.ListItems(ctx, attemptID)
	if err != nil {
		return dto.PatchAttemptResponse{}, err
	}
	counters := recomputeCounters(fresh)
	attempt.VisitedCount = counters.Visited
	attempt.AnsweredCount = counters.Answered
	attempt.FlaggedCount = counters.Flagged
	attempt.LastActivityAt = now
	if req.ElapsedMs != nil {
		attempt.RatchetElapsed(*req.ElapsedMs)
	}
	if err := s.attempts.Update(ctx, &attempt); err != nil {
		return dto.PatchAttemptResponse{}, err
	}

	observability.PatchBatches().Inc()

	return dto.PatchAttemptResponse{OK: true, Progress: counters}, nil
}

// applyChange applies one partial update to an item and reports whether
// anything changed.
func (s *attemptService) applyChange(item *models.AttemptItem, change dto.ItemChange, now time.Time) bool {
	var snap quiz.QuestionSnapshot
	_ = json.Unmarshal(item.Snapshot, &snap)
	isFillBlank := quiz.NormalizeType(snap.Type) == models.QuestionTypeFillBlank

	changed := false
	answerChanged := false

	if change.SelectedOptions != nil {
		selectedJSON, err := json.Marshal(*change.SelectedOptions)
		if err == nil {
			item.SelectedOptions = datatypes.JSON(selectedJSON)
			changed = true
			answerChanged = true
		}
	}

	if change.TextResponse != nil {
		item.TextResponse = *change.TextResponse
		changed = true
		answerChanged = true
		if isFillBlank {
			// Mirror into selectedOptions[0] so the evaluator has a single
			// uniform "has an answer" path.
			mirror := []string{}
			if strings.TrimSpace(*change.TextResponse) != "" {
				mirror = []string{*change.TextResponse}
			}
			if mirrorJSON, err := json.Marshal(mirror); err == nil {
				item.SelectedOptions = datatypes.JSON(mirrorJSON)
			}
		}
	}

	if change.IsFlagged != nil && *change.IsFlagged != item.IsFlagged {
		item.IsFlagged = *change.IsFlagged
		changed = true
	}

	if change.MarkVisited && item.VisitedAt == nil {
		visited := now
		item.VisitedAt = &visited
		changed = true
	}

	if change.TimeSpentDeltaMs != nil {
		delta := clampInt64(*change.TimeSpentDeltaMs, 0, MaxTimeSpentDelta.Milliseconds())
		if delta > 0 {
			item.TimeSpentMs += delta
			changed = true
		}
	}

	if answerChanged {
		item.ChangeCount++
		changedAt := now
		item.LastChangedAt = &changedAt

		// "Answered" is a pure function of current content: set on the
		// first non-empty answer, cleared when the answer empties again.
		resp := itemResponse(*item)
		if quiz.IsAnswered(snap, resp) {
			if item.AnsweredAt == nil {
				answeredAt := now
				item.AnsweredAt = &answeredAt
			}
		} else {
			item.AnsweredAt = nil
		}
	}

	return changed
}

func (s *attemptService) Heartbeat(ctx context.Context, attemptID, userID uint, elapsedMs int64) error {
	attempt, err := s.requireOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return err
	}
	// Heartbeats against a finished attempt are a silent no-op; clients
	// keep ticking briefly after submission.
	if !attempt.IsActive() {
		return nil
	}

	attempt.RatchetElapsed(elapsedMs)
	attempt.LastActivityAt = s.now()
	return s.attempts.Update(ctx, &attempt)
}

func (s *attemptService) ListForClass(ctx context.Context, classID, userID uint) ([]dto.AttemptSummaryResponse, error) {
	attempts, err := s.attempts.ListByUserAndClass(ctx, userID, classID)
	if err != nil {
		return nil, err
	}
	summaries := make([]dto.AttemptSummaryResponse, 0, len(attempts))
	for _, attempt := range attempts {
		summaries = append(summaries, dto.NewAttemptSummaryResponse(attempt))
	}
	return summaries, nil
}

func (s *attemptService) requireOwnedAttempt(ctx context.Context, attemptID, userID uint) (models.QuizAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QuizAttempt{}, ErrAttemptNotFound
		}
		return models.QuizAttempt{}, err
	}
	if attempt.UserID != userID {
		return models.QuizAttempt{}, ErrNotAttemptOwner
	}
	return attempt, nil
}

// itemResponse builds the evaluator's view of an item's current answer.
func itemResponse(item models.AttemptItem) quiz.Response {
	resp := quiz.Response{TextResponse: item.TextResponse}
	if len(item.SelectedOptions) > 0 {
		_ = json.Unmarshal(item.SelectedOptions, &resp.SelectedOptions)
	}
	return resp
}

// recomputeCounters derives the attempt-level rollup from every item.
func recomputeCounters(items []models.AttemptItem) dto.ProgressCounters {
	counters := dto.ProgressCounters{}
	for _, item := range items {
		if item.VisitedAt != nil {
			counters.Visited++
		}
		if item.AnsweredAt != nil {
			counters.Answered++
		}
		if item.IsFlagged {
			counters.Flagged++
		}
	}
	return counters
}
