package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
)

func newSubmissionFixture(t *testing.T) (*memoryAttemptRepo, *submissionService) {
	t.Helper()
	repo := newMemoryAttemptRepo()
	svc := NewSubmissionService(repo, nil, testLogger()).(*submissionService)
	return repo, svc
}

// seedScoringAttempt builds an attempt with one item per outcome class:
// correct choice, incorrect multi-select, correct fill-in-the-blank and one
// untouched question.
func seedScoringAttempt(t *testing.T, repo *memoryAttemptRepo, startedAt time.Time, cfg models.AttemptConfig) models.QuizAttempt {
	t.Helper()
	fitbSnapshot := mustJSON(t, quiz.QuestionSnapshot{
		QuestionID:     103,
		ModuleID:       11,
		Type:           models.QuestionTypeFillBlank,
		Stem:           "capital of France?",
		Points:         1,
		Options:        []quiz.OptionSnapshot{{ID: "k1", Text: "contains:Paris"}},
		CorrectAnswers: []string{"k1"},
	})

	answered := startedAt.Add(time.Minute)
	return repo.seedAttempt(
		activeAttempt(t, 42, 1, cfg, startedAt),
		[]models.AttemptItem{
			{
				OrderIndex:      0,
				Snapshot:        choiceSnapshot(t, 101, 10, models.QuestionTypeSingleChoice, []string{"a"}, "a", "b"),
				SelectedOptions: mustJSON(t, []string{"a"}),
				AnsweredAt:      &answered,
				PointsPossible:  1,
			},
			{
				OrderIndex:      1,
				Snapshot:        choiceSnapshot(t, 102, 10, models.QuestionTypeMultiChoice, []string{"a", "b"}, "a", "b", "c"),
				SelectedOptions: mustJSON(t, []string{"a", "c"}),
				AnsweredAt:      &answered,
				PointsPossible:  1,
			},
			{
				OrderIndex:      2,
				Snapshot:        fitbSnapshot,
				TextResponse:    "paris, france",
				SelectedOptions: mustJSON(t, []string{"paris, france"}),
				AnsweredAt:      &answered,
				PointsPossible:  1,
			},
			{
				OrderIndex:     3,
				Snapshot:       choiceSnapshot(t, 104, 11, models.QuestionTypeTrueFalse, []string{"t"}, "t", "f"),
				PointsPossible: 1,
			},
		},
	)
}

func TestSubmitScoresAttempt(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(5 * time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4, PassThresholdPct: 50})

	resp, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)
	require.False(t, resp.AlreadySubmitted)
	require.Equal(t, models.AttemptStatusSubmitted, resp.Status)

	require.Equal(t, 50, resp.Result.ScorePct)
	require.True(t, resp.Result.Passed)
	require.False(t, resp.Result.TimedOut)
	require.Equal(t, 2, resp.Result.CorrectCount)
	require.Equal(t, 1, resp.Result.IncorrectCount)
	require.Equal(t, 1, resp.Result.UnansweredCount)
	require.Equal(t, 4.0, resp.Result.PointsPossible)
	require.Equal(t, 2.0, resp.Result.PointsEarned)
	require.Equal(t, (5 * time.Minute).Milliseconds(), resp.Result.ElapsedMs)

	byType := resp.Result.ByType
	require.Equal(t, 1, byType[models.QuestionTypeSingleChoice].Correct)
	require.Equal(t, 1, byType[models.QuestionTypeMultiChoice].Incorrect)
	require.Equal(t, 1, byType[models.QuestionTypeFillBlank].Correct)
	require.Equal(t, 1, byType[models.QuestionTypeTrueFalse].Unanswered)
	require.Equal(t, 2.0, resp.Result.ByModule["10"].PointsPossible)
	require.Equal(t, 2.0, resp.Result.ByModule["11"].PointsPossible)

	// per-item scores persisted by the finalizer
	items, err := repo.ListItems(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.True(t, *items[0].IsCorrect)
	require.False(t, *items[1].IsCorrect)
	require.True(t, *items[2].IsCorrect)
	require.Equal(t, 0.0, *items[3].PointsEarned)

	stored, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusSubmitted, stored.Status)
	require.NotNil(t, stored.SubmittedAt)
	require.True(t, stored.HasResult())
}

func TestSubmitIsIdempotent(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(2 * time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4, PassThresholdPct: 50})

	first, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)
	require.True(t, second.AlreadySubmitted)
	require.Equal(t, first.Status, second.Status)
	require.Equal(t, first.Result.ScorePct, second.Result.ScorePct)
	require.Equal(t, first.Result.CorrectCount, second.Result.CorrectCount)
}

func TestSubmitPastDeadlineTimesOut(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(20 * time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{
		ActualCount:      4,
		TimeLimitSec:     600,
		PassThresholdPct: 50,
	})

	resp, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusTimedOut, resp.Status)
	require.True(t, resp.Result.TimedOut)
	// answers present at the deadline still score
	require.Equal(t, 2, resp.Result.CorrectCount)

	stored, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TimeExpiredAt)
	require.Equal(t, started.Add(10*time.Minute), *stored.TimeExpiredAt)
}

func TestSubmitAbandonedConflicts(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Now().Add(-time.Hour)

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4})
	stored := repo.attempts[attempt.ID]
	stored.Status = models.AttemptStatusAbandoned
	repo.attempts[attempt.ID] = stored

	_, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.ErrorIs(t, err, ErrAttemptStateConflict)
}

func TestSubmitLostRaceFallsBackToStoredResult(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4, PassThresholdPct: 50})

	// The concurrent winner finalized between our load and our CAS.
	repo.finalizeErr = repository.ErrAttemptFinalized
	winner := repo.attempts[attempt.ID]
	winner.Status = models.AttemptStatusSubmitted
	winner.Result = mustJSON(t, models.ResultSummary{ScorePct: 75, Passed: true})
	repo.attempts[attempt.ID] = winner

	resp, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)
	require.True(t, resp.AlreadySubmitted)
	require.Equal(t, 75, resp.Result.ScorePct)
}

func TestSubmitElapsedRatchet(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4})
	stored := repo.attempts[attempt.ID]
	stored.ElapsedMs = (10 * time.Minute).Milliseconds()
	repo.attempts[attempt.ID] = stored

	// A smaller client-supplied elapsed never lowers the stored value.
	supplied := int64(1000)
	resp, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{ElapsedMs: &supplied})
	require.NoError(t, err)
	require.Equal(t, (10 * time.Minute).Milliseconds(), resp.Result.ElapsedMs)
}

func TestGetResultsBeforeSubmit(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	attempt := seedScoringAttempt(t, repo, time.Now(), models.AttemptConfig{ActualCount: 4})

	_, err := svc.GetResults(context.Background(), attempt.ID, 42)
	require.ErrorIs(t, err, ErrResultsNotReady)
}

func TestGetResultsReviewView(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(time.Minute) }

	attempt := seedScoringAttempt(t, repo, started, models.AttemptConfig{ActualCount: 4, PassThresholdPct: 50})
	_, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)

	results, err := svc.GetResults(context.Background(), attempt.ID, 42)
	require.NoError(t, err)
	require.Equal(t, 50, results.Summary.ScorePct)
	require.Len(t, results.Items, 4)

	require.Equal(t, []string{"a"}, results.Items[0].CorrectAnswer.OptionIDs)
	require.True(t, *results.Items[0].IsCorrect)

	// The review decodes the accepted texts out of the fill-in-the-blank
	// encoding instead of leaking the raw "mode:value" string.
	fitb := results.Items[2]
	require.Equal(t, models.QuestionTypeFillBlank, fitb.Type)
	require.Equal(t, []string{"Paris"}, fitb.CorrectAnswer.AcceptedTexts)
	require.Empty(t, fitb.Options)
}

func TestGetResultsReviewsUnkeyedFillBlank(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return started.Add(time.Minute) }

	// No answer key: every declared option is an accepted alternative,
	// so the review must render them the same way scoring resolves them.
	answered := started.Add(30 * time.Second)
	attempt := repo.seedAttempt(
		activeAttempt(t, 42, 1, models.AttemptConfig{ActualCount: 1}, started),
		[]models.AttemptItem{
			{
				OrderIndex: 0,
				Snapshot: mustJSON(t, quiz.QuestionSnapshot{
					QuestionID: 201,
					ModuleID:   10,
					Type:       models.QuestionTypeFillBlank,
					Stem:       "colour or color?",
					Points:     1,
					Options: []quiz.OptionSnapshot{
						{ID: "a1", Text: "exact:colour"},
						{ID: "a2", Text: "exact:color"},
					},
				}),
				TextResponse:    "color",
				SelectedOptions: mustJSON(t, []string{"color"}),
				AnsweredAt:      &answered,
				PointsPossible:  1,
			},
		},
	)

	_, err := svc.Submit(context.Background(), attempt.ID, 42, dto.SubmitAttemptRequest{})
	require.NoError(t, err)

	results, err := svc.GetResults(context.Background(), attempt.ID, 42)
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	require.True(t, *results.Items[0].IsCorrect)
	require.Equal(t, []string{"colour", "color"}, results.Items[0].CorrectAnswer.AcceptedTexts)
}

func TestGetResultsEnforcesOwnership(t *testing.T) {
	repo, svc := newSubmissionFixture(t)
	attempt := seedScoringAttempt(t, repo, time.Now(), models.AttemptConfig{ActualCount: 4})

	_, err := svc.GetResults(context.Background(), attempt.ID, 7)
	require.ErrorIs(t, err, ErrNotAttemptOwner)
}
