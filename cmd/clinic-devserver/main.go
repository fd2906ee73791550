package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kanb1/clinic-ai-app-sub001/internal/devserver"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	server := devserver.NewServer(cfg, devserver.NewSeededStore(), logger)

	// Print a token per seeded user so a client can be pointed at the server
	for _, userID := range []string{
		devserver.SeedAdminID,
		devserver.SeedNewAdminID,
		devserver.SeedDoctorID,
		devserver.SeedSecretaryID,
		devserver.SeedPatientID,
	} {
		token, err := server.IssueToken(userID)
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("Failed to issue token")
			continue
		}
		logger.WithField("user_id", userID).WithField("token", token).Info("Issued development token")
	}

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down development backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.WithError(err).Error("Failed to shutdown server gracefully")
		os.Exit(1)
	}

	logger.Info("Development backend stopped")
}
