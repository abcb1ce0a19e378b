package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/observability"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
)

// ErrAttemptStateConflict indicates a submit against a state that is neither
// active nor one of the scored terminal states (i.e. abandoned).
var ErrAttemptStateConflict = errors.New("attempt is in a state that cannot be submitted")

// ErrResultsNotReady indicates results were requested before finalization.
var ErrResultsNotReady = errors.New("attempt has not been submitted yet")

// SubmissionService runs the attempt's terminal transition and serves the
// post-submission review.
type SubmissionService interface {
	Submit(ctx context.Context, attemptID, userID uint, req dto.SubmitAttemptRequest) (dto.SubmitAttemptResponse, error)
	GetResults(ctx context.Context, attemptID, userID uint) (dto.AttemptResultsResponse, error)
}

type submissionService struct {
	attempts repository.AttemptRepository
	guard    quiz.RegexGuard
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSubmissionService constructs a SubmissionService. The regex guard
// screens authored fill-in-the-blank patterns during scoring and can be
// swapped out to harden the screening independently.
func NewSubmissionService(attemptRepo repository.AttemptRepository, guard quiz.RegexGuard, logger zerolog.Logger) SubmissionService {
	if guard == nil {
		guard = quiz.DefaultRegexGuard
	}
	return &submissionService{
		attempts: attemptRepo,
		guard:    guard,
		logger:   logger.With().Str("component", "submission_service").Logger(),
		now:      time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, attemptID, userID uint, req dto.SubmitAttemptRequest) (dto.SubmitAttemptResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/quizforge-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "attempt.submit")
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))
	defer span.End()

	attempt, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmitAttemptResponse{}, err
	}

	// Double-submit tolerance: a terminal scored attempt returns its stored
	// summary without rescoring. Only abandoned is a real conflict.
	switch attempt.Status {
	case models.AttemptStatusSubmitted, models.AttemptStatusTimedOut:
		return alreadySubmittedResponse(attempt), nil
	case models.AttemptStatusAbandoned:
		return dto.SubmitAttemptResponse{}, ErrAttemptStateConflict
	}

	items, err := s.attempts.ListItems(ctx, attemptID)
	if err != nil {
		return dto.SubmitAttemptResponse{}, err
	}

	var cfg models.AttemptConfig
	_ = json.Unmarshal(attempt.Config, &cfg)

	now := s.now()
	elapsed := attempt.ElapsedMs
	if req.ElapsedMs != nil && *req.ElapsedMs > elapsed {
		elapsed = *req.ElapsedMs
	}
	if wall := now.Sub(attempt.StartedAt).Milliseconds(); wall > elapsed {
		elapsed = wall
	}

	timedOut := false
	var expiredAt *time.Time
	if cfg.TimeLimitSec > 0 {
		deadline := attempt.StartedAt.Add(time.Duration(cfg.TimeLimitSec) * time.Second)
		if !now.Before(deadline) {
			timedOut = true
			expiredAt = &deadline
		}
	}

	summary := s.score(items, cfg, elapsed, timedOut)

	resultJSON, err := json.Marshal(summary)
	if err != nil {
		return dto.SubmitAttemptResponse{}, fmt.Errorf("failed to encode result summary: %w", err)
	}

	status := models.AttemptStatusSubmitted
	if timedOut {
		status = models.AttemptStatusTimedOut
	}
	attempt.Status = status
	attempt.SubmittedAt = &now
	attempt.TimeExpiredAt = expiredAt
	attempt.ElapsedMs = elapsed
	attempt.LastActivityAt = now
	attempt.Result = datatypes.JSON(resultJSON)
	attempt.VisitedCount, attempt.AnsweredCount, attempt.FlaggedCount = countersOf(items)

	if err := s.attempts.Finalize(ctx, &attempt, items); err != nil {
		if errors.Is(err, repository.ErrAttemptFinalized) {
			// Lost the compare-and-swap to a concurrent submit: fall back to
			// the winner's stored summary.
			stored, loadErr := s.loadOwned(ctx, attemptID, userID)
			if loadErr != nil {
				return dto.SubmitAttemptResponse{}, loadErr
			}
			return alreadySubmittedResponse(stored), nil
		}
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmitAttemptResponse{}, err
	}

	observability.Submissions().WithLabelValues(status).Inc()
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Str("status", status).
		Int("score_pct", summary.ScorePct).
		Bool("passed", summary.Passed).
		Msg("attempt finalized")

	return dto.SubmitAttemptResponse{Status: status, Result: summary}, nil
}

// score evaluates every item, writes per-item outcomes onto the slice and
// aggregates the summary by question type and by module.
func (s *submissionService) score(items []models.AttemptItem, cfg models.AttemptConfig, elapsedMs int64, timedOut bool) models.ResultSummary {
	summary := models.ResultSummary{
		TimedOut:  timedOut,
		ByType:    map[string]models.ResultBucket{},
		ByModule:  map[string]models.ResultBucket{},
		ElapsedMs: elapsedMs,
	}

	for i := range items {
		var snap quiz.QuestionSnapshot
		_ = json.Unmarshal(items[i].Snapshot, &snap)

		outcome := quiz.Evaluate(snap, itemResponse(items[i]), s.guard)

		earned := 0.0
		if outcome.Correct {
			earned = items[i].PointsPossible
		}
		correct := outcome.Correct
		items[i].IsCorrect = &correct
		items[i].PointsEarned = &earned

		summary.PointsPossible += items[i].PointsPossible
		summary.PointsEarned += earned
		switch {
		case !outcome.Answered:
			summary.UnansweredCount++
		case outcome.Correct:
			summary.CorrectCount++
		default:
			summary.IncorrectCount++
		}

		typeKey := quiz.NormalizeType(snap.Type)
		moduleKey := strconv.FormatUint(uint64(snap.ModuleID), 10)
		summary.ByType[typeKey] = accumulate(summary.ByType[typeKey], outcome, earned, items[i].PointsPossible)
		summary.ByModule[moduleKey] = accumulate(summary.ByModule[moduleKey], outcome, earned, items[i].PointsPossible)
	}

	if summary.PointsPossible > 0 {
		summary.ScorePct = int(math.Round(100 * summary.PointsEarned / summary.PointsPossible))
	}
	summary.Passed = summary.ScorePct >= cfg.PassThresholdPct
	return summary
}

func (s *submissionService) GetResults(ctx context.Context, attemptID, userID uint) (dto.AttemptResultsResponse, error) {
	attempt, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return dto.AttemptResultsResponse{}, err
	}
	if !attempt.HasResult() {
		return dto.AttemptResultsResponse{}, ErrResultsNotReady
	}

	items, err := s.attempts.ListItems(ctx, attemptID)
	if err != nil {
		return dto.AttemptResultsResponse{}, err
	}

	reviewItems := make([]dto.ReviewItem, 0, len(items))
	for _, item := range items {
		reviewItems = append(reviewItems, dto.NewReviewItem(item))
	}

	return dto.AttemptResultsResponse{
		Attempt: dto.NewAttemptResponse(attempt),
		Summary: dto.DecodeResultSummary(attempt),
		Items:   reviewItems,
	}, nil
}

func (s *submissionService) loadOwned(ctx context.Context, attemptID, userID uint) (models.QuizAttempt, error) {
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

func alreadySubmittedResponse(attempt models.QuizAttempt) dto.SubmitAttemptResponse {
	return dto.SubmitAttemptResponse{
		AlreadySubmitted: true,
		Status:           attempt.Status,
		Result:           dto.DecodeResultSummary(attempt),
	}
}

func accumulate(bucket models.ResultBucket, outcome quiz.Outcome, earned, possible float64) models.ResultBucket {
	bucket.PointsEarned += earned
	bucket.PointsPossible += possible
	switch {
	case !outcome.Answered:
		bucket.Unanswered++
	case outcome.Correct:
		bucket.Correct++
	default:
		bucket.Incorrect++
	}
	return bucket
}

func countersOf(items []models.AttemptItem) (visited, answered, flagged int) {
	for _, item := range items {
		if item.VisitedAt != nil {
			visited++
		}
		if item.AnsweredAt != nil {
			answered++
		}
		if item.IsFlagged {
			flagged++
		}
	}
	return visited, answered, flagged
}
