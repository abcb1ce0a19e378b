package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/quizforge-api/internal/config"
	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/handler"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
	"github.com/noah-isme/quizforge-api/internal/router"
	"github.com/noah-isme/quizforge-api/internal/service"
)

const quizTestUserID = uint(42)

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func setupQuizApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Class{},
		&models.ClassMembership{},
		&models.Module{},
		&models.Question{},
		&models.QuestionProgress{},
		&models.QuizAttempt{},
		&models.AttemptItem{},
	))

	class := models.Class{ID: 1, Name: "Algorithms", CohortID: 7}
	require.NoError(t, db.Create(&class).Error)
	require.NoError(t, db.Create(&models.ClassMembership{ClassID: 1, UserID: quizTestUserID, Role: models.MembershipRoleMember}).Error)
	require.NoError(t, db.Create(&models.Class{ID: 2, Name: "Closed", CohortID: 7}).Error)

	module := models.Module{ID: 10, ClassID: 1, Title: "Sorting", Position: 1, Status: models.ModuleStatusPublished}
	require.NoError(t, db.Create(&module).Error)

	for i := 1; i <= 6; i++ {
		options, err := json.Marshal([]map[string]interface{}{
			{"id": "a", "text": "first", "correct": true},
			{"id": "b", "text": "second"},
			{"id": "c", "text": "third"},
		})
		require.NoError(t, err)
		require.NoError(t, db.Create(&models.Question{
			ID:       uint(i),
			ModuleID: 10,
			Type:     models.QuestionTypeSingleChoice,
			Stem:     fmt.Sprintf("question %d", i),
			Points:   1,
			Status:   models.QuestionStatusPublished,
			Options:  datatypes.JSON(options),
		}).Error)
	}
	fitbOptions, err := json.Marshal([]map[string]interface{}{
		{"id": "k1", "text": "contains:Paris"},
	})
	require.NoError(t, err)
	fitbKey, err := json.Marshal([]string{"k1"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Question{
		ID:             7,
		ModuleID:       10,
		Type:           models.QuestionTypeFillBlank,
		Stem:           "capital of France?",
		Points:         1,
		Status:         models.QuestionStatusPublished,
		Options:        datatypes.JSON(fitbOptions),
		CorrectAnswers: datatypes.JSON(fitbKey),
	}).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	classRepo := repository.NewClassRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	builderService := service.NewQuizBuilderService(classRepo, moduleRepo, questionRepo, progressRepo, attemptRepo, validate, nil, 0, logger)
	attemptService := service.NewAttemptService(attemptRepo, moduleRepo, validate, logger)
	submissionService := service.NewSubmissionService(attemptRepo, nil, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		QuizBuilderHandler: handler.NewQuizBuilderHandler(builderService, attemptService, validate, logger),
		AttemptHandler:     handler.NewAttemptHandler(attemptService, submissionService, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", quizTestUserID)
			c.Locals("user_role", "student")
			return c.Next()
		},
	})

	return app, db
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer token")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestQuizBuilderHandler_BuilderData(t *testing.T) {
	app, _ := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v2/classes/1/quiz-builder", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                        `json:"success"`
		Data    dto.QuizBuilderDataResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "Algorithms", body.Data.Class.Name)
	require.Len(t, body.Data.Modules, 1)
	require.Equal(t, 7, body.Data.Modules[0].QuestionCount)
}

func TestQuizBuilderHandler_RejectsNonMembers(t *testing.T) {
	app, _ := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v2/classes/2/quiz-builder", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestQuizBuilderHandler_PoolSummary(t *testing.T) {
	app, _ := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v2/classes/1/question-pool/summary?module_ids=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.PoolSummaryResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, 7, body.Data.TotalEligible)
	require.Len(t, body.Data.ByType, 2)
}

func TestQuizAttemptFlow(t *testing.T) {
	app, db := setupQuizApp(t)

	// create
	resp, err := app.Test(jsonRequest(t, "POST", "/api/v2/classes/1/attempts", dto.CreateAttemptRequest{
		ModuleIDs:        []uint{10},
		QuestionCount:    4,
		ShuffleQuestions: true,
		ShuffleOptions:   true,
		PassThresholdPct: 50,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.CreateAttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)
	require.Equal(t, 4, created.Data.QuestionCountActual)
	attemptID := created.Data.AttemptID

	// runner bundle
	resp, err = app.Test(jsonRequest(t, "GET", fmt.Sprintf("/api/v2/attempts/%d", attemptID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var bundle struct {
		Data dto.RunnerBundleResponse `json:"data"`
	}
	decodeResponse(t, resp, &bundle)
	require.Len(t, bundle.Data.Items, 4)
	require.Equal(t, models.AttemptStatusInProgress, bundle.Data.Attempt.Status)

	// the stored seed reproduces the sampled question order exactly
	var attempt models.QuizAttempt
	require.NoError(t, db.First(&attempt, attemptID).Error)
	perm := quiz.Perm(quiz.PoolSeed(attempt.Seed), 7)
	poolIDs := []uint{1, 2, 3, 4, 5, 6, 7}
	expected := make([]uint, 0, 4)
	for _, p := range perm[:4] {
		expected = append(expected, poolIDs[p])
	}
	got := make([]uint, 0, 4)
	for _, item := range bundle.Data.Items {
		got = append(got, item.QuestionID)
	}
	require.Equal(t, expected, got)

	// answer the first item
	first := bundle.Data.Items[0]
	var answer interface{}
	if first.Type == models.QuestionTypeFillBlank {
		answer = map[string]interface{}{"item_id": first.ID, "text_response": "Paris, France", "mark_visited": true}
	} else {
		answer = map[string]interface{}{"item_id": first.ID, "selected_options": []string{"a"}, "mark_visited": true}
	}
	resp, err = app.Test(jsonRequest(t, "PATCH", fmt.Sprintf("/api/v2/attempts/%d/responses", attemptID), map[string]interface{}{
		"changes": []interface{}{answer},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var patched struct {
		Data dto.PatchAttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &patched)
	require.Equal(t, dto.ProgressCounters{Visited: 1, Answered: 1}, patched.Data.Progress)

	// heartbeat
	resp, err = app.Test(jsonRequest(t, "POST", fmt.Sprintf("/api/v2/attempts/%d/heartbeat", attemptID), map[string]interface{}{"elapsed_ms": 30000}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// submit
	resp, err = app.Test(jsonRequest(t, "POST", fmt.Sprintf("/api/v2/attempts/%d/submit", attemptID), map[string]interface{}{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submitted struct {
		Data dto.SubmitAttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &submitted)
	require.False(t, submitted.Data.AlreadySubmitted)
	require.Equal(t, models.AttemptStatusSubmitted, submitted.Data.Status)
	require.Equal(t, 1, submitted.Data.Result.CorrectCount)
	require.Equal(t, 3, submitted.Data.Result.UnansweredCount)
	require.Equal(t, 25, submitted.Data.Result.ScorePct)

	// a second submit is tolerated and returns the stored summary
	resp, err = app.Test(jsonRequest(t, "POST", fmt.Sprintf("/api/v2/attempts/%d/submit", attemptID), map[string]interface{}{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeResponse(t, resp, &submitted)
	require.True(t, submitted.Data.AlreadySubmitted)
	require.Equal(t, 25, submitted.Data.Result.ScorePct)

	// responses are frozen after submission
	resp, err = app.Test(jsonRequest(t, "PATCH", fmt.Sprintf("/api/v2/attempts/%d/responses", attemptID), map[string]interface{}{
		"changes": []interface{}{map[string]interface{}{"item_id": first.ID, "is_flagged": true}},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// review
	resp, err = app.Test(jsonRequest(t, "GET", fmt.Sprintf("/api/v2/attempts/%d/results", attemptID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var results struct {
		Data dto.AttemptResultsResponse `json:"data"`
	}
	decodeResponse(t, resp, &results)
	require.Len(t, results.Data.Items, 4)
	require.Equal(t, 25, results.Data.Summary.ScorePct)
	require.NotNil(t, results.Data.Items[0].IsCorrect)

	// attempt listing shows the finalized score
	resp, err = app.Test(jsonRequest(t, "GET", "/api/v2/classes/1/attempts", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listing struct {
		Data []dto.AttemptSummaryResponse `json:"data"`
	}
	decodeResponse(t, resp, &listing)
	require.Len(t, listing.Data, 1)
	require.NotNil(t, listing.Data[0].ScorePct)
	require.Equal(t, 25, *listing.Data[0].ScorePct)
}

func TestQuizAttemptFlow_OptionOrderIsAPermutation(t *testing.T) {
	app, _ := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v2/classes/1/attempts", dto.CreateAttemptRequest{
		ModuleIDs:      []uint{10},
		QuestionCount:  6,
		QuestionTypes:  []string{models.QuestionTypeSingleChoice},
		ShuffleOptions: true,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.CreateAttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &created)

	resp, err = app.Test(jsonRequest(t, "GET", fmt.Sprintf("/api/v2/attempts/%d", created.Data.AttemptID), nil))
	require.NoError(t, err)

	var bundle struct {
		Data dto.RunnerBundleResponse `json:"data"`
	}
	decodeResponse(t, resp, &bundle)
	for _, item := range bundle.Data.Items {
		ids := make([]string, 0, len(item.Options))
		for _, opt := range item.Options {
			ids = append(ids, opt.ID)
		}
		sort.Strings(ids)
		require.Equal(t, []string{"a", "b", "c"}, ids)
	}
}

func TestAttemptHandler_ErrorMapping(t *testing.T) {
	app, db := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "GET", "/api/v2/attempts/9999", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	foreign := models.QuizAttempt{
		UserID:  99,
		ClassID: 1,
		Status:  models.AttemptStatusInProgress,
		Seed:    "seed",
		Config:  datatypes.JSON(`{}`),
	}
	require.NoError(t, db.Create(&foreign).Error)

	resp, err = app.Test(jsonRequest(t, "GET", fmt.Sprintf("/api/v2/attempts/%d", foreign.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, "GET", fmt.Sprintf("/api/v2/attempts/%d/results", foreign.ID), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestQuizBuilderHandler_EmptyPoolRejectsCreate(t *testing.T) {
	app, _ := setupQuizApp(t)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v2/classes/1/attempts", dto.CreateAttemptRequest{
		ModuleIDs:     []uint{10},
		QuestionCount: 3,
		QuestionTypes: []string{models.QuestionTypeMatching},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
