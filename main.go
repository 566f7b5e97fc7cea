package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource"
	_ "github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource/mssql"
	_ "github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource/postgres"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/apperrors"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/config"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/database"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/handlers"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/llm"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/logging"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/repositories"
	"github.com/tablescribe-ai/tablescribe-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to engine store", zap.Error(err))
	}
	defer db.Close()

	jobs := repositories.NewAnalysisJobRepository(db)
	candidates := repositories.NewFKCandidateRepository(db)
	questions := repositories.NewSmeQuestionRepository(db)

	llmClient, err := llm.NewClient(cfg.AI.Provider, &llm.Config{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		APIKey:  cfg.AI.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}

	catalog, err := datasource.NewCatalog(ctx, cfg.Datasource.Driver, cfg.Datasource.Map(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to datasource",
			zap.String("driver", cfg.Datasource.Driver),
			zap.Error(err))
	}
	defer func() { _ = catalog.Close() }()

	adapter := services.NewAnalysisAdapter(catalog, llmClient, cfg.Datasource.Database, cfg.Datasource.Schema, logger)
	emitter := services.NewQuestionEmitter(questions, cfg.Analysis.AutoAcceptThreshold, cfg.Analysis.ReviewThreshold, logger)
	runner := services.NewJobRunner(jobs, candidates, emitter, adapter, cfg.Analysis, logger)
	progress := services.NewProgressService(questions)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewJobsHandler(runner, jobs, logger).RegisterRoutes(mux)
	handlers.NewQuestionsHandler(questions, progress, logger).RegisterRoutes(mux)
	handlers.NewRelationshipsHandler(candidates, logger).RegisterRoutes(mux)

	go runPoller(ctx, runner, jobs, cfg.Analysis.PollInterval(), logger)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting tablescribe-engine",
		zap.String("addr", server.Addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// runPoller drives active jobs forward on a fixed cadence. Jobs already being
// advanced by an API call are skipped and picked up on the next tick.
func runPoller(ctx context.Context, runner *services.JobRunner, jobs repositories.AnalysisJobRepository, interval time.Duration, logger *zap.Logger) {
	poller := logger.Named("poller")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		active, err := jobs.ListActive(ctx)
		if err != nil {
			poller.Error("Failed to list active jobs", zap.Error(err))
			continue
		}

		for _, job := range active {
			if _, err := runner.Advance(ctx, job.ID); err != nil {
				if errors.Is(err, apperrors.ErrAdvanceInFlight) {
					continue
				}
				poller.Error("Failed to advance job",
					zap.String("job_id", job.ID.String()),
					zap.Error(err))
			}
		}
	}
}
