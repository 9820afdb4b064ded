// Package main is the entry point for the qvar VQE service. It wires the
// runs database, the execution queue, the maintenance scheduler and the
// HTTP API, then waits for a shutdown signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/qvarlab/qvar/internal/ansatz"
	"github.com/qvarlab/qvar/internal/archive"
	"github.com/qvarlab/qvar/internal/backend"
	"github.com/qvarlab/qvar/internal/backend/statevector"
	"github.com/qvarlab/qvar/internal/config"
	"github.com/qvarlab/qvar/internal/database"
	"github.com/qvarlab/qvar/internal/events"
	"github.com/qvarlab/qvar/internal/jobs"
	"github.com/qvarlab/qvar/internal/queue"
	"github.com/qvarlab/qvar/internal/runs"
	"github.com/qvarlab/qvar/internal/scheduler"
	"github.com/qvarlab/qvar/internal/server"
	"github.com/qvarlab/qvar/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("backend", cfg.DefaultBackend).Msg("Starting qvar")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "runs.db"),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer db.Close()

	if err := db.Migrate(runs.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	repo := runs.NewRepository(db.Conn(), log)

	store, err := archive.NewStore(cfg.ArchiveDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open archive")
	}

	backends := backend.NewRegistry()
	backends.Register(statevector.New(statevector.Config{MaxQubits: cfg.MaxQubits}))
	if err := backends.SetDefault(cfg.DefaultBackend); err != nil {
		log.Fatal().Err(err).Msg("Unknown default backend")
	}
	ansatzes := ansatz.DefaultRegistry()

	bus := events.NewBus()

	pool, err := queue.NewPool(queue.Config{
		Repository: repo,
		Archive:    store,
		Bus:        bus,
		Ansatzes:   ansatzes,
		Backends:   backends,
		Workers:    cfg.Workers,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start queue")
	}

	sched := scheduler.New(log)
	mustAddJob(log, sched, "@hourly", &jobs.RunsCleanup{Repository: repo, TTL: cfg.RunTTL, Log: log})
	mustAddJob(log, sched, "@hourly", &jobs.ArchiveRotation{Store: store, TTL: cfg.ArchiveTTL, Log: log})
	mustAddJob(log, sched, "@every 15m", &jobs.WALCheckpoint{DB: db, Log: log})
	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		DefaultShots: cfg.DefaultShots,
		Repository:   repo,
		Archive:      store,
		Pool:         pool,
		Bus:          bus,
		Ansatzes:     ansatzes,
		Backends:     backends,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	cancel()
	sched.Stop()
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

func mustAddJob(log zerolog.Logger, sched *scheduler.Scheduler, schedule string, job scheduler.Job) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
