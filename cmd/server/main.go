package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/api"
	"github.com/edudashpro/finance-service/internal/assistant"
	"github.com/edudashpro/finance-service/internal/config"
	"github.com/edudashpro/finance-service/internal/extract"
	"github.com/edudashpro/finance-service/internal/membership"
	"github.com/edudashpro/finance-service/internal/notify"
	"github.com/edudashpro/finance-service/internal/popvalidator"
	"github.com/edudashpro/finance-service/internal/reconcile"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/internal/statement"
	"github.com/edudashpro/finance-service/internal/storage"
	"github.com/edudashpro/finance-service/internal/worker"
	"github.com/edudashpro/finance-service/pkg/database"
	"github.com/edudashpro/finance-service/pkg/utils"
)

func main() {
	// Local development credentials live in .env; missing file is fine.
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting EduDash Pro finance service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	for _, dir := range []string{cfg.Storage.ProofDir, cfg.Storage.StatementDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create storage directory",
				zap.String("dir", dir), zap.Error(err))
		}
	}

	// Repositories
	uploads := repository.NewUploadRepository(db.DB, logger)
	fees := repository.NewFeeRepository(db.DB, logger)
	invoices := repository.NewInvoiceRepository(db.DB, logger)
	payments := repository.NewPaymentRepository(db.DB, logger)
	students := repository.NewStudentRepository(db.DB, logger)
	members := repository.NewMemberRepository(db.DB, logger)

	// Storage and document services
	store := storage.NewProofStore(cfg.Storage.ProofDir, logger)
	receipts := extract.NewReceiptReader(logger)
	statements := statement.NewGenerator(cfg.Storage.StatementDir, cfg.School.Name, logger)

	// Admin notifications are optional
	var messenger *notify.Messenger
	var engineNotifier reconcile.Notifier
	var submissionNotifier api.SubmissionNotifier
	if cfg.NotificationsEnabled() {
		larkClient := notify.NewClient(notify.Config{
			AppID:       cfg.Lark.AppID,
			AppSecret:   cfg.Lark.AppSecret,
			AdminChatID: cfg.Lark.AdminChatID,
		}, logger)
		messenger = notify.NewMessenger(larkClient, logger)
		engineNotifier = messenger
		submissionNotifier = messenger
	} else {
		logger.Info("Lark notifications disabled: no credentials configured")
	}

	// Core services
	engine := reconcile.NewEngine(db, uploads, fees, invoices, payments, students,
		statements, engineNotifier, logger)
	validator := popvalidator.NewValidator(uploads, fees, logger)
	assistantSvc := assistant.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.Model,
		assistant.NewTools(fees, payments, logger), logger)
	membershipSvc := membership.NewService(members, logger)

	// Background maintenance
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := worker.NewManager(logger)
	workers.Register(worker.NewOverdueMarker(fees, cfg.Storage.OverdueInterval, logger))
	workers.Register(worker.NewOrphanReaper(uploads, store,
		cfg.Storage.ReapInterval, cfg.Storage.OrphanGrace, logger))
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer workers.StopAll()

	// HTTP server
	handlers := api.NewHandlers(validator, store, uploads, fees, engine,
		assistantSvc, membershipSvc, receipts, submissionNotifier, logger)
	server := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}
