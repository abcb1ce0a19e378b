package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/quizforge-api/internal/config"
	"github.com/noah-isme/quizforge-api/internal/handler"
	"github.com/noah-isme/quizforge-api/internal/middleware"
	"github.com/noah-isme/quizforge-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuizBuilderHandler *handler.QuizBuilderHandler
	AttemptHandler     *handler.AttemptHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil. The role gate only
	// applies alongside real auth so local runs without tokens still work.
	jwtMiddleware := deps.JWTMiddleware
	authGuards := []fiber.Handler{}
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	} else {
		authGuards = append(authGuards, middleware.RequireRole("student", "admin", "teacher"))
	}

	// Quiz builder & attempt listing, scoped to a class
	if deps.QuizBuilderHandler != nil {
		classes := app.Group("/api/v2/classes", append([]fiber.Handler{jwtMiddleware}, authGuards...)...)
		deps.QuizBuilderHandler.Register(classes)
	}

	// Attempt runner, response tracking, submission, results
	if deps.AttemptHandler != nil {
		attempts := app.Group("/api/v2/attempts", append([]fiber.Handler{jwtMiddleware}, authGuards...)...)
		attempts.Use(writeLimiter())
		deps.AttemptHandler.Register(attempts)
	}
}

// writeLimiter throttles the high-frequency autosave and heartbeat traffic per user.
func writeLimiter() fiber.Handler {
	limit := middleware.RateLimit("attempt-write", 30, time.Second)
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet {
			return c.Next()
		}
		return limit(c)
	}
}
