// Package main provides the API server entry point for the post analyzer service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/post-analyzer/internal/api"
	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/service"
	"github.com/post-analyzer/internal/storage"
	"github.com/post-analyzer/internal/urlparser"
	"github.com/post-analyzer/internal/validator"
	"github.com/post-analyzer/internal/worker"
)

func main() {
	fmt.Println("Post Analyzer API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
		"store":  cfg.Database.Driver,
	}).Info("Structured logging initialized")

	ctx := logging.WithLogger(context.Background(), logger)

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer backend.Close()

	// Initialize services
	v := validator.New()
	ledger := service.NewInvitationLedger(backend.Store, cfg.Invitation.DefaultTTL)
	guard := service.NewPlanLimitGuard(backend.Store)
	credentials := service.NewCredentialResolver(backend.Store.Integrations(), config.EnvSource{})

	services := api.Services{
		Tasks:        service.NewTaskOrchestrator(backend.Store, urlparser.New(), credentials),
		Entitlements: service.NewEntitlementResolver(backend.Store),
		Limits:       guard,
		Invitations:  ledger,
		Signup:       service.NewSignupService(backend.Store, ledger, v),
		Resources:    service.NewResourceService(backend.Store, guard, v),
		Health:       backend,
	}

	auth := api.NewAuthenticator(cfg.Auth)
	if !auth.Enabled() {
		logger.Warn("JWT_SECRET is not set; trusting X-User-ID headers (development only)")
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		AdminRole:         cfg.Auth.AdminRole,
		WorkerRole:        cfg.Auth.WorkerRole,
	}
	server := api.NewServer(serverConfig, services, auth, v)

	// The in-memory store lives in this process, so the sweeper has to as well
	var sweeper *worker.TokenSweeper
	if cfg.Database.Driver == config.StoreDriverMemory {
		sweeper, err = worker.NewTokenSweeper(&worker.TokenSweeperConfig{
			Ledger:   ledger,
			Interval: cfg.Sweep.Interval,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create token sweeper")
		}
		if err := sweeper.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start token sweeper")
		}
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Token sweeper did not stop cleanly")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
