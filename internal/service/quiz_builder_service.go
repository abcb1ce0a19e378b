package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/observability"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
)

// ErrClassNotFound indicates the class does not exist.
var ErrClassNotFound = errors.New("class not found")

// ErrNotClassMember indicates the caller does not belong to the class cohort.
var ErrNotClassMember = errors.New("caller is not a member of this class")

// ErrModuleNotAvailable indicates a requested module is missing, foreign to
// the class, or not published. This is a hard validation failure, never a
// silent drop.
var ErrModuleNotAvailable = errors.New("module not found or not published")

// ErrNoModules indicates the request named zero modules.
var ErrNoModules = errors.New("at least one module is required")

// ErrEmptyPool indicates no questions survived the eligibility filters.
var ErrEmptyPool = errors.New("no eligible questions for the selected filters")

// QuizBuilderService resolves eligibility pools and materializes attempts.
type QuizBuilderService interface {
	GetBuilderData(ctx context.Context, classID, userID uint) (dto.QuizBuilderDataResponse, error)
	GetPoolSummary(ctx context.Context, classID, userID uint, req dto.PoolSummaryRequest) (dto.PoolSummaryResponse, error)
	CreateAttempt(ctx context.Context, classID, userID uint, req dto.CreateAttemptRequest) (dto.CreateAttemptResponse, error)
}

type quizBuilderService struct {
	classes   repository.ClassRepository
	modules   repository.ModuleRepository
	questions repository.QuestionRepository
	progress  repository.ProgressRepository
	attempts  repository.AttemptRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewQuizBuilderService constructs a QuizBuilderService instance.
func NewQuizBuilderService(
	classRepo repository.ClassRepository,
	moduleRepo repository.ModuleRepository,
	questionRepo repository.QuestionRepository,
	progressRepo repository.ProgressRepository,
	attemptRepo repository.AttemptRepository,
	validate *validator.Validate,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) QuizBuilderService {
	return &quizBuilderService{
		classes:   classRepo,
		modules:   moduleRepo,
		questions: questionRepo,
		progress:  progressRepo,
		attempts:  attemptRepo,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger.With().Str("component", "quiz_builder_service").Logger(),
		now:       time.Now,
	}
}

func (s *quizBuilderService) GetBuilderData(ctx context.Context, classID, userID uint) (dto.QuizBuilderDataResponse, error) {
	class, err := s.requireMembership(ctx, classID, userID)
	if err != nil {
		return dto.QuizBuilderDataResponse{}, err
	}

	modules, err := s.modules.ListPublishedByClass(ctx, classID)
	if err != nil {
		return dto.QuizBuilderDataResponse{}, err
	}

	moduleIDs := make([]uint, 0, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
	}

	questions, err := s.questions.ListPublishedByModules(ctx, moduleIDs)
	if err != nil {
		return dto.QuizBuilderDataResponse{}, err
	}

	countByModule := map[uint]int{}
	typesByModule := map[uint]map[string]bool{}
	tagsByModule := map[uint]map[string]bool{}
	for _, q := range questions {
		countByModule[q.ModuleID]++
		if typesByModule[q.ModuleID] == nil {
			typesByModule[q.ModuleID] = map[string]bool{}
		}
		typesByModule[q.ModuleID][quiz.NormalizeType(q.Type)] = true
		for _, tag := range splitTags(q.Tags) {
			if tagsByModule[q.ModuleID] == nil {
				tagsByModule[q.ModuleID] = map[string]bool{}
			}
			tagsByModule[q.ModuleID][tag] = true
		}
	}

	summaries := make([]dto.ModuleSummary, 0, len(modules))
	collections := make([]dto.TagCollection, 0, len(modules))
	for _, m := range modules {
		summaries = append(summaries, dto.ModuleSummary{
			ID:            m.ID,
			Title:         m.Title,
			Position:      m.Position,
			QuestionCount: countByModule[m.ID],
			QuestionTypes: sortedKeys(typesByModule[m.ID]),
		})
		if tags := sortedKeys(tagsByModule[m.ID]); len(tags) > 0 {
			collections = append(collections, dto.TagCollection{Name: m.Title, Tags: tags})
		}
	}

	return dto.QuizBuilderDataResponse{
		Class:          dto.NewClassLite(class),
		Modules:        summaries,
		TagCollections: collections,
		Limits: dto.QuizLimits{
			MaxQuestions:     MaxQuestionsPerAttempt,
			MaxPatchChanges:  MaxPatchChanges,
			MinTimeLimitSec:  int(MinTimeLimit.Seconds()),
			MaxTimeLimitSec:  int(MaxTimeLimit.Seconds()),
			MaxPassThreshold: MaxPassThresholdPct,
		},
	}, nil
}

func (s *quizBuilderService) GetPoolSummary(ctx context.Context, classID, userID uint, req dto.PoolSummaryRequest) (dto.PoolSummaryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.PoolSummaryResponse{}, err
	}

	if _, err := s.requireMembership(ctx, classID, userID); err != nil {
		return dto.PoolSummaryResponse{}, err
	}

	cacheKey := poolSummaryCacheKey(classID, userID, req)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.PoolSummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("class_id", classID).Msg("pool summary cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read pool summary cache")
		}
	}

	pool, modules, err := s.resolveEligiblePool(ctx, classID, userID, req.ModuleIDs, req.SourceFilter, req.QuestionTypes)
	if err != nil {
		if errors.Is(err, ErrEmptyPool) {
			// The preview reports an empty pool instead of failing, so the
			// builder UI can show "0 questions" while adjusting filters.
			return dto.PoolSummaryResponse{ByModule: []dto.PoolBucket{}, ByType: []dto.PoolBucket{}}, nil
		}
		return dto.PoolSummaryResponse{}, err
	}

	response := buildPoolSummary(pool, modules)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store pool summary cache")
			}
		}
	}

	return response, nil
}

func (s *quizBuilderService) CreateAttempt(ctx context.Context, classID, userID uint, req dto.CreateAttemptRequest) (dto.CreateAttemptResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/quizforge-api/internal/service/quiz_builder")
	ctx, span := tracer.Start(ctx, "attempt.create")
	span.SetAttributes(
		attribute.Int64("attempt.class_id", int64(classID)),
		attribute.Int64("attempt.user_id", int64(userID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.CreateAttemptResponse{}, err
	}

	if _, err := s.requireMembership(ctx, classID, userID); err != nil {
		return dto.CreateAttemptResponse{}, err
	}

	pool, _, err := s.resolveEligiblePool(ctx, classID, userID, req.ModuleIDs, req.SourceFilter, req.QuestionTypes)
	if err != nil {
		return dto.CreateAttemptResponse{}, err
	}

	requested := clampInt(req.QuestionCount, 1, MaxQuestionsPerAttempt)
	actual := requested
	if actual > len(pool) {
		actual = len(pool)
	}

	timeLimitSec := 0
	if req.TimeLimitSec != nil {
		timeLimitSec = clampInt(*req.TimeLimitSec, int(MinTimeLimit.Seconds()), int(MaxTimeLimit.Seconds()))
	}
	threshold := clampInt(req.PassThresholdPct, MinPassThresholdPct, MaxPassThresholdPct)

	now := s.now()
	seed := quiz.NewSeed(now)

	// Shuffle the WHOLE pool, then truncate: the sample is fair regardless
	// of requested count. With shuffleQuestions off the sampled subset goes
	// back into the pool's natural order, so "no shuffle" still means "a
	// random sample in natural order", not "the first N questions".
	perm := quiz.Perm(quiz.PoolSeed(seed), len(pool))
	type pick struct {
		question models.Question
		natural  int
	}
	picks := make([]pick, 0, actual)
	for _, p := range perm[:actual] {
		picks = append(picks, pick{question: pool[p], natural: p})
	}
	if !req.ShuffleQuestions {
		sort.Slice(picks, func(i, j int) bool { return picks[i].natural < picks[j].natural })
	}

	sourceFilter := req.SourceFilter
	if sourceFilter == "" {
		sourceFilter = models.SourceFilterAll
	}
	config := models.AttemptConfig{
		ModuleIDs:        req.ModuleIDs,
		RequestedCount:   requested,
		ActualCount:      actual,
		SourceFilter:     sourceFilter,
		QuestionTypes:    normalizeTypes(req.QuestionTypes),
		ShuffleQuestions: req.ShuffleQuestions,
		ShuffleOptions:   req.ShuffleOptions,
		TimeLimitSec:     timeLimitSec,
		PassThresholdPct: threshold,
	}
	configJSON, err := json.Marshal(config)
	if err != nil {
		return dto.CreateAttemptResponse{}, fmt.Errorf("failed to encode attempt config: %w", err)
	}

	attempt := models.QuizAttempt{
		UserID:         userID,
		ClassID:        classID,
		Status:         models.AttemptStatusInProgress,
		Seed:           seed,
		Config:         datatypes.JSON(configJSON),
		StartedAt:      now,
		LastActivityAt: now,
	}

	items := make([]models.AttemptItem, 0, len(picks))
	for i, p := range picks {
		item, err := s.buildItem(seed, i, p.question, req.ShuffleOptions)
		if err != nil {
			return dto.CreateAttemptResponse{}, err
		}
		items = append(items, item)
	}

	if err := s.attempts.Create(ctx, &attempt, items); err != nil {
		return dto.CreateAttemptResponse{}, err
	}

	observability.AttemptsCreated().Inc()
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("class_id", classID).
		Int("question_count", actual).
		Msg("attempt created")

	return dto.CreateAttemptResponse{AttemptID: attempt.ID, QuestionCountActual: actual}, nil
}

// authorOption is the authored option shape on Question.Options. The
// correct flag never reaches snapshots; it only backfills an absent key.
type authorOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// buildItem freezes one question into an attempt item. Authored HTML is
// sanitized here, once, so neither runner nor review views ever render raw
// authored markup.
func (s *quizBuilderService) buildItem(seed string, orderIndex int, question models.Question, shuffleOptions bool) (models.AttemptItem, error) {
	var authored []authorOption
	if len(question.Options) > 0 {
		if err := json.Unmarshal(question.Options, &authored); err != nil {
			return models.AttemptItem{}, fmt.Errorf("question %d has malformed options: %w", question.ID, err)
		}
	}

	options := make([]quiz.OptionSnapshot, 0, len(authored))
	for _, opt := range authored {
		options = append(options, quiz.OptionSnapshot{ID: opt.ID, Text: opt.Text})
	}

	var correct []string
	if len(question.CorrectAnswers) > 0 {
		if err := json.Unmarshal(question.CorrectAnswers, &correct); err != nil {
			return models.AttemptItem{}, fmt.Errorf("question %d has malformed answer key: %w", question.ID, err)
		}
	}
	if len(correct) == 0 {
		for _, opt := range authored {
			if opt.Correct {
				correct = append(correct, opt.ID)
			}
		}
	}

	snapshot := quiz.QuestionSnapshot{
		QuestionID:      question.ID,
		ModuleID:        question.ModuleID,
		Type:            quiz.NormalizeType(question.Type),
		Stem:            s.sanitizer.Sanitize(question.Stem),
		Explanation:     s.sanitizer.Sanitize(question.Explanation),
		Points:          question.Points,
		Options:         options,
		CorrectAnswers:  correct,
		SourceUpdatedAt: question.UpdatedAt,
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return models.AttemptItem{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	item := models.AttemptItem{
		OrderIndex:     orderIndex,
		Snapshot:       datatypes.JSON(snapshotJSON),
		PointsPossible: question.Points,
	}

	// Displayed option order is baked in at creation; fill-in-the-blank has
	// no displayed options so nothing to permute.
	if shuffleOptions && len(options) > 1 && snapshot.Type != models.QuestionTypeFillBlank {
		ids := make([]string, 0, len(options))
		for _, opt := range options {
			ids = append(ids, opt.ID)
		}
		order := quiz.ShuffleStrings(quiz.OptionSeed(seed, strconv.FormatUint(uint64(question.ID), 10)), ids)
		orderJSON, err := json.Marshal(order)
		if err != nil {
			return models.AttemptItem{}, fmt.Errorf("failed to encode option order: %w", err)
		}
		item.OptionOrder = datatypes.JSON(orderJSON)
	}

	return item, nil
}

// resolveEligiblePool computes the candidate question set for an attempt:
// published questions across validated modules, intersected with the type
// allow-list and the source filter.
func (s *quizBuilderService) resolveEligiblePool(ctx context.Context, classID, userID uint, moduleIDs []uint, sourceFilter string, questionTypes []string) ([]models.Question, []models.Module, error) {
	if len(moduleIDs) == 0 {
		return nil, nil, ErrNoModules
	}

	modules, err := s.modules.GetByIDs(ctx, classID, moduleIDs)
	if err != nil {
		return nil, nil, err
	}
	found := map[uint]models.Module{}
	for _, m := range modules {
		found[m.ID] = m
	}
	for _, id := range moduleIDs {
		m, ok := found[id]
		if !ok || !m.IsPublished() {
			return nil, nil, ErrModuleNotAvailable
		}
	}

	pool, err := s.questions.ListPublishedByModules(ctx, moduleIDs)
	if err != nil {
		return nil, nil, err
	}

	if allowed := normalizeTypes(questionTypes); len(allowed) > 0 {
		allowSet := map[string]bool{}
		for _, t := range allowed {
			allowSet[t] = true
		}
		filtered := pool[:0]
		for _, q := range pool {
			if allowSet[quiz.NormalizeType(q.Type)] {
				filtered = append(filtered, q)
			}
		}
		pool = filtered
	}

	switch sourceFilter {
	case "", models.SourceFilterAll:
	case models.SourceFilterFlagged, models.SourceFilterIncomplete:
		progress, err := s.progress.ListByUserAndClass(ctx, userID, classID)
		if err != nil {
			return nil, nil, err
		}
		byQuestion := map[uint]models.QuestionProgress{}
		for _, p := range progress {
			byQuestion[p.QuestionID] = p
		}
		filtered := pool[:0]
		for _, q := range pool {
			p, seen := byQuestion[q.ID]
			if sourceFilter == models.SourceFilterFlagged {
				if seen && p.Flagged {
					filtered = append(filtered, q)
				}
			} else if !seen || !p.HasInteraction() {
				filtered = append(filtered, q)
			}
		}
		pool = filtered
	default:
		return nil, nil, fmt.Errorf("unknown source filter %q", sourceFilter)
	}

	if len(pool) == 0 {
		return nil, nil, ErrEmptyPool
	}
	return pool, modules, nil
}

func (s *quizBuilderService) requireMembership(ctx context.Context, classID, userID uint) (models.Class, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Class{}, ErrClassNotFound
		}
		return models.Class{}, err
	}

	member, err := s.classes.IsMember(ctx, classID, userID)
	if err != nil {
		return models.Class{}, err
	}
	if !member {
		return models.Class{}, ErrNotClassMember
	}
	return class, nil
}

func buildPoolSummary(pool []models.Question, modules []models.Module) dto.PoolSummaryResponse {
	titleByID := map[uint]string{}
	for _, m := range modules {
		titleByID[m.ID] = m.Title
	}

	byModule := map[string]int{}
	byType := map[string]int{}
	for _, q := range pool {
		moduleKey := titleByID[q.ModuleID]
		if moduleKey == "" {
			moduleKey = strconv.FormatUint(uint64(q.ModuleID), 10)
		}
		byModule[moduleKey]++
		byType[quiz.NormalizeType(q.Type)]++
	}

	return dto.PoolSummaryResponse{
		TotalEligible: len(pool),
		ByModule:      bucketize(byModule),
		ByType:        bucketize(byType),
	}
}

func bucketize(counts map[string]int) []dto.PoolBucket {
	buckets := make([]dto.PoolBucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, dto.PoolBucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

func poolSummaryCacheKey(classID, userID uint, req dto.PoolSummaryRequest) string {
	ids := make([]string, 0, len(req.ModuleIDs))
	for _, id := range req.ModuleIDs {
		ids = append(ids, strconv.FormatUint(uint64(id), 10))
	}
	sort.Strings(ids)
	types := normalizeTypes(req.QuestionTypes)
	sort.Strings(types)
	return fmt.Sprintf("poolsummary:%d:%d:%s:%s:%s", classID, userID, strings.Join(ids, ","), req.SourceFilter, strings.Join(types, ","))
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if n := quiz.NormalizeType(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
