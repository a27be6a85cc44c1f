// Package main provides the background worker entry point. It runs the
// invitation token sweeper against the shared Postgres store.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/service"
	"github.com/post-analyzer/internal/storage"
	"github.com/post-analyzer/internal/worker"
)

func main() {
	fmt.Println("Post Analyzer Worker")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithComponent("worker")

	if cfg.Database.Driver == config.StoreDriverMemory {
		logger.Fatal("The worker needs a shared store; the server sweeps the in-memory store itself")
	}

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer backend.Close()

	sweeper, err := worker.NewTokenSweeper(&worker.TokenSweeperConfig{
		Ledger:   service.NewInvitationLedger(backend.Store, cfg.Invitation.DefaultTTL),
		Interval: cfg.Sweep.Interval,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token sweeper")
	}
	if err := sweeper.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start token sweeper")
	}

	// Set up graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("Shutdown signal received, stopping worker...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error stopping token sweeper")
	}

	status := sweeper.GetStatus()
	logger.WithField("expired_total", status.TotalExpired).Info("Worker stopped")
}
