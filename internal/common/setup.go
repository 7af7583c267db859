package common

import (
	"context"
	"log"
	"strings"

	"multisig-wallet-go/internal/approval"
	"multisig-wallet-go/internal/database"
	"multisig-wallet-go/internal/gateway"
	"multisig-wallet-go/internal/models"
	"multisig-wallet-go/internal/splitter"
	"multisig-wallet-go/internal/wallet"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

// Services bundles the wired core for the CLIs and the watcher.
type Services struct {
	DbService *database.Service
	Registry  *wallet.Registry
	Approvals *approval.Service
	Engine    *splitter.Engine
	Notifier  gateway.Notifier
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the registry, approval
// service, and split engine over it. The ed25519 verifier and log notifier
// are supplied here, at the composition root, never inside the core.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	notifier := gateway.LogNotifier{}
	registry := wallet.NewRegistry(dbService)
	approvals := approval.NewService(dbService, gateway.Ed25519Verifier{}, notifier, cfg.Approval)
	engine := splitter.NewEngine(dbService, notifier, cfg.Splitter)

	return &Services{
		DbService: dbService,
		Registry:  registry,
		Approvals: approvals,
		Engine:    engine,
		Notifier:  notifier,
	}, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
