package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/config"
	"github.com/SAP-F-2025/exam-engine/internal/content"
	"github.com/SAP-F-2025/exam-engine/internal/grading"
	"github.com/SAP-F-2025/exam-engine/internal/handlers"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-engine/internal/services"
	"github.com/SAP-F-2025/exam-engine/internal/utils"
	"github.com/SAP-F-2025/exam-engine/internal/validator"
	"github.com/SAP-F-2025/exam-engine/pkg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := utils.NewLogger(cfg.Environment)
	slogger := logger.Slog()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := pkg.Migrate(db); err != nil {
		return err
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	defer publisher.Close()

	manager := services.NewServiceManager(services.ManagerDeps{
		Submissions:    postgres.NewSubmissionPostgreSQL(db),
		GradingRecords: postgres.NewGradingRecordPostgreSQL(db),
		Cache:          cache.NewRedisCache(redisClient, slogger),
		Publisher:      publisher,
		Grader:         newGrader(cfg, logger),
		Validator:      validator.New(),
		Logger:         slogger,
		BuildOptions:   content.BuildOptions{DefaultTimeLimitSeconds: cfg.DefaultTimeLimitMinutes * 60},
		Attempt:        services.AttemptConfig{SnapshotTTL: cfg.SnapshotTTL, RetainSubmitted: cfg.RetainSubmitted},
		Grading: services.GradingConfig{
			ExamStandard: cfg.ExamStandard,
			Workers:      cfg.GradingWorkers,
			Timeout:      cfg.GradingTimeout,
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		utils.RequestID(),
		utils.LoggerMiddleware(logger),
		utils.ContextLogger(logger),
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Content-Type", "Content-Length", "Accept", "Origin", utils.RequestIDHeader},
			ExposeHeaders:   []string{"Content-Length", "Content-Disposition", utils.RequestIDHeader},
			MaxAge:          12 * time.Hour,
		}),
	)
	handlers.NewHandlerManager(manager, logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Exam engine listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	manager.Attempt().Shutdown()
	return nil
}

// newGrader uses Anthropic when a key is configured. Without one, subjective
// submissions are stored and grading reports the grader as unavailable.
func newGrader(cfg *config.Config, logger utils.Logger) grading.Grader {
	if cfg.AnthropicAPIKey != "" {
		grader, err := grading.NewAnthropicGrader(grading.AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.GradingModel,
		}, logger.Slog())
		if err == nil {
			return grader
		}
		logger.Warn("Anthropic grader disabled", "error", err)
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, grading is disabled")
	}
	return grading.GraderFunc(func(ctx context.Context, req grading.GradeRequest) (*models.SubGradingResult, error) {
		return nil, fmt.Errorf("%w: no grader configured", grading.ErrGraderUnavailable)
	})
}
