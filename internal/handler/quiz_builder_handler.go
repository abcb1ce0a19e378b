package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizforge-api/internal/dto"
	"github.com/noah-isme/quizforge-api/internal/service"
	"github.com/noah-isme/quizforge-api/internal/utils"
)

// QuizBuilderHandler manages the class-scoped quiz builder endpoints.
type QuizBuilderHandler struct {
	service   service.QuizBuilderService
	attempts  service.AttemptService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQuizBuilderHandler builds a quiz builder handler instance.
func NewQuizBuilderHandler(builder service.QuizBuilderService, attempts service.AttemptService, validate *validator.Validate, logger zerolog.Logger) *QuizBuilderHandler {
	return &QuizBuilderHandler{
		service:   builder,
		attempts:  attempts,
		validator: validate,
		logger:    logger.With().Str("component", "quiz_builder_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *QuizBuilderHandler) Register(router fiber.Router) {
	router.Get("/:classId/quiz-builder", h.builderData)
	router.Get("/:classId/question-pool/summary", h.poolSummary)
	router.Post("/:classId/attempts", h.createAttempt)
	router.Get("/:classId/attempts", h.listAttempts)
}

func (h *QuizBuilderHandler) builderData(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	data, err := h.service.GetBuilderData(c.Context(), classID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz builder data retrieved", data)
}

func (h *QuizBuilderHandler) poolSummary(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	moduleIDs, err := parseUintList(c.Query("module_ids"))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.PoolSummaryRequest{
		ModuleIDs:     moduleIDs,
		SourceFilter:  c.Query("source_filter"),
		QuestionTypes: splitAndTrim(c.Query("question_types")),
	}

	summary, err := h.service.GetPoolSummary(c.Context(), classID, userIDFromContext(c), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "question pool summarized", summary)
}

func (h *QuizBuilderHandler) createAttempt(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CreateAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.CreateAttempt(c.Context(), classID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt created", created)
}

func (h *QuizBuilderHandler) listAttempts(c *fiber.Ctx) error {
	classID, err := parseUintParam(c, "classId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summaries, err := h.attempts.ListForClass(c.Context(), classID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", summaries)
}

func (h *QuizBuilderHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "class not found")
	case errors.Is(err, service.ErrNotClassMember):
		return utils.SendError(c, fiber.StatusForbidden, "not a member of this class")
	case errors.Is(err, service.ErrModuleNotAvailable):
		return utils.SendError(c, fiber.StatusBadRequest, "module not found or not published")
	case errors.Is(err, service.ErrNoModules):
		return utils.SendError(c, fiber.StatusBadRequest, "at least one module is required")
	case errors.Is(err, service.ErrEmptyPool):
		return utils.SendError(c, fiber.StatusBadRequest, "no eligible questions for the selected filters")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
