package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizforge-api/internal/config"
	"github.com/noah-isme/quizforge-api/internal/database"
	"github.com/noah-isme/quizforge-api/internal/handler"
	"github.com/noah-isme/quizforge-api/internal/middleware"
	"github.com/noah-isme/quizforge-api/internal/models"
	"github.com/noah-isme/quizforge-api/internal/quiz"
	"github.com/noah-isme/quizforge-api/internal/repository"
	"github.com/noah-isme/quizforge-api/internal/router"
	"github.com/noah-isme/quizforge-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Class{},
		&models.ClassMembership{},
		&models.Module{},
		&models.Question{},
		&models.QuestionProgress{},
		&models.QuizAttempt{},
		&models.AttemptItem{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	classRepo := repository.NewClassRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	builderService := service.NewQuizBuilderService(classRepo, moduleRepo, questionRepo, progressRepo, attemptRepo, validate, redisClient, cfg.PoolSummaryCacheTTL, logger)
	attemptService := service.NewAttemptService(attemptRepo, moduleRepo, validate, logger)
	submissionService := service.NewSubmissionService(attemptRepo, quiz.DefaultRegexGuard, logger)

	quizBuilderHandler := handler.NewQuizBuilderHandler(builderService, attemptService, validate, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, submissionService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		QuizBuilderHandler: quizBuilderHandler,
		AttemptHandler:     attemptHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
