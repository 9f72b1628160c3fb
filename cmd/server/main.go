// Package main is the entrypoint for the MovieMetric API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moviemetric/moviemetric/internal/analytics"
	"github.com/moviemetric/moviemetric/internal/api"
	"github.com/moviemetric/moviemetric/internal/api/handler"
	mw "github.com/moviemetric/moviemetric/internal/api/middleware"
	"github.com/moviemetric/moviemetric/internal/api/response"
	"github.com/moviemetric/moviemetric/internal/cache"
	"github.com/moviemetric/moviemetric/internal/config"
	"github.com/moviemetric/moviemetric/internal/ingest"
	"github.com/moviemetric/moviemetric/internal/jobs"
	"github.com/moviemetric/moviemetric/internal/scheduler"
	"github.com/moviemetric/moviemetric/internal/search"
	"github.com/moviemetric/moviemetric/internal/store"
	"github.com/moviemetric/moviemetric/internal/tmdb"
	"github.com/moviemetric/moviemetric/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "scheduler_enabled", cfg.Scheduler.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store, tracker, and services
	pgStore := store.NewPostgresStore(pool)
	tracker := jobs.NewTracker(pgStore, redisCache)

	catalog := tmdb.NewHTTPClient(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Timeout, cfg.TMDB.RequestsPerSec)
	ingestSvc := ingest.NewService(catalog, pgStore, tracker, cfg.TMDB, cfg.Analytics)
	computeSvc := analytics.NewService(pgStore, tracker, cfg.Analytics)
	searchSvc := search.NewService(cfg.Search, pgStore, tracker)

	// 6. Start the scheduler if enabled
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(
			scheduler.Entry{Name: models.JobKindIngest, Interval: cfg.Scheduler.IngestInterval,
				Trigger: func(ctx context.Context) error {
					_, err := ingestSvc.Trigger(ctx)
					return err
				}},
			scheduler.Entry{Name: "compute_all", Interval: cfg.Scheduler.ComputeInterval,
				Trigger: func(ctx context.Context) error {
					_, err := computeSvc.TriggerAll(ctx, time.Now().UTC())
					return err
				}},
			scheduler.Entry{Name: models.JobKindSearchRebuild, Interval: cfg.Scheduler.SearchRebuildInterval,
				Trigger: func(ctx context.Context) error {
					_, err := searchSvc.TriggerRebuild(ctx)
					return err
				}},
		)
		sched.Start(ctx)
		defer sched.Stop()
		slog.Info("scheduler started")
	}

	// 7. Build router with dependencies
	rateLimit := mw.NewRateLimit(redisCache, 120)
	ttl := cfg.Analytics.CacheTTL

	deps := api.Dependencies{
		RateLimit: rateLimit,

		HealthHandler:          healthHandler(pgStore, redisCache),
		ListMoviesHandler:      handler.NewListMoviesHandler(pgStore),
		GetMovieHandler:        handler.NewGetMovieHandler(pgStore, redisCache, ttl),
		RecommendationsHandler: handler.NewMovieRecommendationsHandler(pgStore, redisCache, ttl),
		TrendingHandler:        handler.NewTrendingHandler(pgStore, redisCache, ttl),
		GenreStatsHandler:      handler.NewGenreStatsHandler(pgStore, redisCache, ttl),
		RatingsByDecadeHandler: handler.NewRatingsByDecadeHandler(pgStore, redisCache, ttl),
		SearchHandler:          handler.NewSearchHandler(searchSvc),

		IngestHandler:        handler.NewIngestHandler(ingestSvc),
		ComputeHandler:       handler.NewComputeHandler(computeSvc),
		ComputeAllHandler:    handler.NewComputeAllHandler(computeSvc),
		SearchRebuildHandler: handler.NewSearchRebuildHandler(searchSvc),
		JobStatusHandler:     handler.NewJobStatusHandler(tracker),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
