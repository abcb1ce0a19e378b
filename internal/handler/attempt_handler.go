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

// AttemptHandler manages the attempt runner, response tracking, and results endpoints.
type AttemptHandler struct {
	attempts    service.AttemptService
	submissions service.SubmissionService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAttemptHandler builds an attempt handler instance.
func NewAttemptHandler(attempts service.AttemptService, submissions service.SubmissionService, validate *validator.Validate, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts:    attempts,
		submissions: submissions,
		validator:   validate,
		logger:      logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Get("/:attemptId", h.runnerBundle)
	router.Patch("/:attemptId/responses", h.patchResponses)
	router.Post("/:attemptId/heartbeat", h.heartbeat)
	router.Post("/:attemptId/submit", h.submit)
	router.Get("/:attemptId/results", h.results)
}

func (h *AttemptHandler) runnerBundle(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "attemptId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	bundle, err := h.attempts.GetRunnerBundle(c.Context(), attemptID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", bundle)
}

func (h *AttemptHandler) patchResponses(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "attemptId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PatchAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.attempts.PatchResponses(c.Context(), attemptID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "responses updated", result)
}

func (h *AttemptHandler) heartbeat(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "attemptId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.HeartbeatRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.attempts.Heartbeat(c.Context(), attemptID, userIDFromContext(c), payload.ElapsedMs); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "heartbeat recorded", nil)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "attemptId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.submissions.Submit(c.Context(), attemptID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt submitted", result)
}

func (h *AttemptHandler) results(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "attemptId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.submissions.GetResults(c.Context(), attemptID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt results retrieved", results)
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrNotAttemptOwner):
		return utils.SendError(c, fiber.StatusForbidden, "attempt belongs to another user")
	case errors.Is(err, service.ErrAttemptNotActive):
		return utils.SendError(c, fiber.StatusConflict, "attempt is no longer active")
	case errors.Is(err, service.ErrAttemptStateConflict):
		return utils.SendError(c, fiber.StatusConflict, "attempt state does not allow this operation")
	case errors.Is(err, service.ErrResultsNotReady):
		return utils.SendError(c, fiber.StatusBadRequest, "attempt has not been submitted yet")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
