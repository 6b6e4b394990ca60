// Package main is the entry point for the portfolio tracker service.
// It serves the portfolio API, runs the price simulation tick, refreshes
// real-data positions from the quote gateway and persists snapshots to
// SQLite (with optional remote backups).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/PatrikGFX/portfolio-tracker/internal/clients/yahoo"
	"github.com/PatrikGFX/portfolio-tracker/internal/config"
	"github.com/PatrikGFX/portfolio-tracker/internal/database"
	"github.com/PatrikGFX/portfolio-tracker/internal/ledger"
	"github.com/PatrikGFX/portfolio-tracker/internal/reliability"
	"github.com/PatrikGFX/portfolio-tracker/internal/scheduler"
	"github.com/PatrikGFX/portfolio-tracker/internal/server"
	"github.com/PatrikGFX/portfolio-tracker/internal/simulator"
	"github.com/PatrikGFX/portfolio-tracker/internal/storage"
	"github.com/PatrikGFX/portfolio-tracker/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Portfolio tracker starting")

	// Snapshot database
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot database")
	}
	defer db.Close()

	store, err := storage.New(db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot store")
	}

	// Core services
	sim := simulator.New(nil)
	quotes := yahoo.NewClient(cfg.YahooBaseURL, log)

	book := ledger.New(ledger.Config{
		Simulator:   sim,
		Quotes:      quotes,
		Store:       store,
		HistoryDays: cfg.HistoryDays,
		Log:         log,
	})
	book.Bootstrap()

	// HTTP server
	srv := server.New(server.Config{
		Log:     log,
		Ledger:  book,
		DB:      db,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	// Background jobs
	sched := scheduler.New(log)
	tickSchedule := fmt.Sprintf("@every %s", cfg.TickInterval)
	if err := sched.AddJob(tickSchedule, scheduler.NewTickJob(book, srv.BroadcastUpdate, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register tick job")
	}
	refreshSchedule := fmt.Sprintf("@every %s", cfg.RefreshInterval)
	if err := sched.AddJob(refreshSchedule, scheduler.NewRefreshJob(book, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}

	if cfg.Backup.Enabled() {
		backupSvc, err := reliability.NewBackupService(cfg.Backup, book, log)
		if err != nil {
			log.Warn().Err(err).Msg("Remote backup disabled")
		} else {
			backupSchedule := fmt.Sprintf("@every %s", cfg.BackupInterval)
			if err := sched.AddJob(backupSchedule, scheduler.NewBackupJob(backupSvc, log)); err != nil {
				log.Fatal().Err(err).Msg("Failed to register backup job")
			}
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Remote backups enabled")
		}
	} else {
		log.Debug().Msg("Remote backup storage not configured")
	}

	sched.Start()

	// Start server in goroutine so shutdown handling below can run.
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the cadences first so no tick or refresh mutates state while
	// the server drains.
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
