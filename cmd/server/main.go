// Package main is the entry point for the kaiwa server: the voice
// language-coaching backend that grades spoken turns, schedules spaced
// review, and runs the daily coaching cadence for its single learner.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tskoli/kaiwa/internal/api"
	apimiddleware "github.com/tskoli/kaiwa/internal/api/middleware"
	"github.com/tskoli/kaiwa/internal/config"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/domain/srs"
	"github.com/tskoli/kaiwa/internal/events"
	"github.com/tskoli/kaiwa/internal/platform/elevenlabs"
	"github.com/tskoli/kaiwa/internal/platform/gemini"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/platform/postgres"
	"github.com/tskoli/kaiwa/internal/platform/telegram"
	"github.com/tskoli/kaiwa/internal/service"
	"github.com/tskoli/kaiwa/internal/service/cadence"
	"github.com/tskoli/kaiwa/internal/task"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server.LogLevel)
	slog.SetDefault(appLogger)
	appLogger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	learnerID, err := uuid.Parse(cfg.Learner.ID)
	if err != nil {
		return fmt.Errorf("invalid learner ID: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db, appLogger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Stores.
	learnerStore := postgres.NewPostgresLearnerStore(db, appLogger)
	sessionStore := postgres.NewPostgresSessionStore(db, appLogger)
	messageStore := postgres.NewPostgresMessageStore(db, appLogger)
	gradeStore := postgres.NewPostgresGradeStore(db, appLogger)
	itemStore := postgres.NewPostgresReviewItemStore(db, appLogger)
	promptStore := postgres.NewPostgresPromptStore(db, appLogger)
	summaryStore := postgres.NewPostgresSummaryStore(db, appLogger)

	// External collaborators.
	coach, err := gemini.NewCoach(ctx, appLogger, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create coach: %w", err)
	}
	speechClient, err := elevenlabs.NewClient(appLogger, cfg.Speech)
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}
	msgr, err := telegram.NewClient(appLogger, cfg.Chat)
	if err != nil {
		return fmt.Errorf("failed to create messenger: %w", err)
	}

	// Core services.
	limits := service.TurnLimits{
		MaxDailyVoiceTurns: cfg.Learner.MaxDailyVoiceTurns,
		MaxAudioSeconds:    cfg.Learner.MaxAudioSeconds,
		ContextWindowTurns: cfg.Learner.ContextWindowTurns,
		DueItemBatchSize:   cfg.Learner.DueItemBatchSize,
	}
	learnerService := service.NewLearnerService(learnerStore, appLogger)
	if _, err := learnerService.EnsureProfile(ctx, learnerID, cfg.Learner.DisplayName, cfg.Learner.Timezone); err != nil {
		return fmt.Errorf("failed to ensure learner profile: %w", err)
	}
	reviewService := service.NewReviewService(itemStore, srs.NewDefaultEngine(), limits, appLogger)
	planService := service.NewPlanService(itemStore, appLogger)
	statsService := service.NewStatsService(gradeStore, appLogger)
	promptService := service.NewPromptService(learnerStore, promptStore, gradeStore, coach, msgr, appLogger)

	// Background task runner with persisted tasks and crash recovery.
	taskFactory := task.NewLearnerRefreshTaskFactory(learnerService, gradeStore, coach, appLogger)
	taskStore := postgres.NewPostgresTaskStore(db, taskFactory, appLogger)
	taskRunner := task.NewTaskRunner(taskStore, task.DefaultTaskRunnerConfig(), appLogger)
	if err := taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	defer taskRunner.Stop()

	emitter := events.NewInMemoryEventEmitter(appLogger)
	emitter.RegisterHandler(task.NewRefreshEventHandler(taskFactory, taskRunner, appLogger))

	turnService := service.NewTurnService(
		db,
		learnerStore, sessionStore, messageStore, gradeStore, itemStore, promptStore,
		coach, speechClient, speechClient, msgr, emitter,
		limits, appLogger,
	)

	if _, err := planService.SeedCurriculum(ctx, learnerID); err != nil {
		appLogger.Warn("curriculum seeding skipped", slog.String("error", err.Error()))
	}

	// Cadence jobs in the learner's timezone.
	weeklyClock, err := domain.ParseClock(cfg.Learner.WeeklySummaryClock)
	if err != nil {
		return fmt.Errorf("invalid weekly summary clock: %w", err)
	}
	scheduler := cadence.NewScheduler(
		learnerID,
		learnerStore, promptStore, gradeStore, summaryStore,
		coach, msgr, emitter,
		cadence.Config{WeeklyClock: weeklyClock, NudgeOffsetHours: cfg.Learner.NudgeOffsetHours},
		appLogger,
	)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cadence scheduler: %w", err)
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.Handlers{
		Turns:    api.NewTurnHandler(turnService, appLogger),
		Reviews:  api.NewReviewHandler(reviewService, appLogger),
		Plans:    api.NewPlanHandler(planService, statsService, appLogger),
		Prompts:  api.NewPromptHandler(promptService, appLogger),
		Settings: api.NewSettingsHandler(learnerService, scheduler, appLogger),
	}, apimiddleware.NewLearnerAuth(learnerID))

	return serve(ctx, cfg.Server.Port, router, appLogger)
}

// serve runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
func serve(ctx context.Context, port int, handler http.Handler, appLogger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		appLogger.Info("starting server", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("server failed", slog.String("error", err.Error()))
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		appLogger.Info("shutdown signal received")
	case <-serverCtx.Done():
		appLogger.Info("server context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	appLogger.Info("server shutdown completed")
	return nil
}
