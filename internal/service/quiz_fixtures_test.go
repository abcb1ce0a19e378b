package service

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func mustJSON(t *testing.T, value interface{}) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	return datatypes.JSON(raw)
}

type memoryClassRepo struct {
	classes map[uint]models.Class
	members map[uint]map[uint]bool
}

func newMemoryClassRepo() *memoryClassRepo {
	return &memoryClassRepo{
		classes: make(map[uint]models.Class),
		members: make(map[uint]map[uint]bool),
	}
}

func (m *memoryClassRepo) addMember(classID, userID uint) {
	if m.members[classID] == nil {
		m.members[classID] = make(map[uint]bool)
	}
	m.members[classID][userID] = true
}

func (m *memoryClassRepo) GetByID(_ context.Context, id uint) (models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return models.Class{}, gorm.ErrRecordNotFound
	}
	return class, nil
}

func (m *memoryClassRepo) IsMember(_ context.Context, classID, userID uint) (bool, error) {
	return m.members[classID][userID], nil
}

type memoryModuleRepo struct {
	modules map[uint]models.Module
}

func newMemoryModuleRepo() *memoryModuleRepo {
	return &memoryModuleRepo{modules: make(map[uint]models.Module)}
}

func (m *memoryModuleRepo) ListPublishedByClass(_ context.Context, classID uint) ([]models.Module, error) {
	var out []models.Module
	for _, mod := range m.modules {
		if mod.ClassID == classID && mod.IsPublished() {
			out = append(out, mod)
		}
	}
	sortModules(out)
	return out, nil
}

func (m *memoryModuleRepo) GetByIDs(_ context.Context, classID uint, ids []uint) ([]models.Module, error) {
	var out []models.Module
	for _, id := range ids {
		if mod, ok := m.modules[id]; ok && mod.ClassID == classID {
			out = append(out, mod)
		}
	}
	return out, nil
}

func sortModules(modules []models.Module) {
	sort.Slice(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
}

type memoryQuestionRepo struct {
	questions []models.Question
}

func (m *memoryQuestionRepo) ListPublishedByModules(_ context.Context, moduleIDs []uint) ([]models.Question, error) {
	wanted := make(map[uint]bool, len(moduleIDs))
	for _, id := range moduleIDs {
		wanted[id] = true
	}
	var out []models.Question
	for _, q := range m.questions {
		if wanted[q.ModuleID] && q.IsPublished() {
			out = append(out, q)
		}
	}
	// module_id ASC, id ASC, mirroring the SQL ordering
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModuleID != out[j].ModuleID {
			return out[i].ModuleID < out[j].ModuleID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memoryProgressRepo struct {
	progress []models.QuestionProgress
}

func (m *memoryProgressRepo) ListByUserAndClass(_ context.Context, userID, classID uint) ([]models.QuestionProgress, error) {
	var out []models.QuestionProgress
	for _, p := range m.progress {
		if p.UserID == userID && p.ClassID == classID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryAttemptRepo struct {
	attempts    map[uint]models.QuizAttempt
	items       map[uint][]models.AttemptItem
	nextAttempt uint
	nextItem    uint
	finalizeErr error
}

func newMemoryAttemptRepo() *memoryAttemptRepo {
	return &memoryAttemptRepo{
		attempts:    make(map[uint]models.QuizAttempt),
		items:       make(map[uint][]models.AttemptItem),
		nextAttempt: 1,
		nextItem:    1,
	}
}

func (m *memoryAttemptRepo) Create(_ context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error {
	attempt.ID = m.nextAttempt
	m.nextAttempt++
	for i := range items {
		items[i].ID = m.nextItem
		items[i].AttemptID = attempt.ID
		m.nextItem++
	}
	m.attempts[attempt.ID] = *attempt
	m.items[attempt.ID] = append([]models.AttemptItem(nil), items...)
	return nil
}

func (m *memoryAttemptRepo) GetByID(_ context.Context, id uint) (models.QuizAttempt, error) {
	attempt, ok := m.attempts[id]
	if !ok {
		return models.QuizAttempt{}, gorm.ErrRecordNotFound
	}
	return attempt, nil
}

func (m *memoryAttemptRepo) ListItems(_ context.Context, attemptID uint) ([]models.AttemptItem, error) {
	return append([]models.AttemptItem(nil), m.items[attemptID]...), nil
}

func (m *memoryAttemptRepo) ListByUserAndClass(_ context.Context, userID, classID uint) ([]models.QuizAttempt, error) {
	var out []models.QuizAttempt
	for _, a := range m.attempts {
		if a.UserID == userID && a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAttemptRepo) Update(_ context.Context, attempt *models.QuizAttempt) error {
	if _, ok := m.attempts[attempt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.attempts[attempt.ID] = *attempt
	return nil
}

func (m *memoryAttemptRepo) UpdateItem(_ context.Context, item *models.AttemptItem) error {
	items := m.items[item.AttemptID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = *item
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryAttemptRepo) Finalize(_ context.Context, attempt *models.QuizAttempt, items []models.AttemptItem) error {
	if m.finalizeErr != nil {
		err := m.finalizeErr
		m.finalizeErr = nil
		return err
	}
	stored, ok := m.attempts[attempt.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Status != models.AttemptStatusInProgress {
		return repository.ErrAttemptFinalized
	}
	m.attempts[attempt.ID] = *attempt
	kept := m.items[attempt.ID]
	for i := range items {
		for j := range kept {
			if kept[j].ID == items[i].ID {
				kept[j].IsCorrect = items[i].IsCorrect
				kept[j].PointsEarned = items[i].PointsEarned
			}
		}
	}
	m.items[attempt.ID] = kept
	return nil
}

// seedAttempt stores an attempt plus items directly, bypassing the builder.
func (m *memoryAttemptRepo) seedAttempt(attempt models.QuizAttempt, items []models.AttemptItem) models.QuizAttempt {
	attempt.ID = m.nextAttempt
	m.nextAttempt++
	for i := range items {
		items[i].ID = m.nextItem
		items[i].AttemptID = attempt.ID
		m.nextItem++
	}
	m.attempts[attempt.ID] = attempt
	m.items[attempt.ID] = items
	return attempt
}

func snapshotJSON(t *testing.T, snap quiz.QuestionSnapshot) datatypes.JSON {
	t.Helper()
	return mustJSON(t, snap)
}

func choiceSnapshot(t *testing.T, questionID, moduleID uint, qtype string, correct []string, optionIDs ...string) datatypes.JSON {
	t.Helper()
	options := make([]quiz.OptionSnapshot, 0, len(optionIDs))
	for _, id := range optionIDs {
		options = append(options, quiz.OptionSnapshot{ID: id, Text: "option " + id})
	}
	return snapshotJSON(t, quiz.QuestionSnapshot{
		QuestionID:     questionID,
		ModuleID:       moduleID,
		Type:           qtype,
		Stem:           "stem",
		Points:         1,
		Options:        options,
		CorrectAnswers: correct,
	})
}

func attemptConfigJSON(t *testing.T, cfg models.AttemptConfig) datatypes.JSON {
	t.Helper()
	return mustJSON(t, cfg)
}

func activeAttempt(t *testing.T, userID, classID uint, cfg models.AttemptConfig, startedAt time.Time) models.QuizAttempt {
	t.Helper()
	return models.QuizAttempt{
		UserID:         userID,
		ClassID:        classID,
		Status:         models.AttemptStatusInProgress,
		Seed:           "test-seed",
		Config:         attemptConfigJSON(t, cfg),
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}
}
