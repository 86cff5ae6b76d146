package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/dispatcher"
	"github.com/oasuite/procureflow/internal/application/port"
	"github.com/oasuite/procureflow/internal/application/service"
	"github.com/oasuite/procureflow/internal/config"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/repository"
	"github.com/oasuite/procureflow/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/oasuite/procureflow/internal/interfaces/http"
	"github.com/oasuite/procureflow/internal/notification"
	"github.com/oasuite/procureflow/internal/permission"
	"github.com/oasuite/procureflow/pkg/database"
	"github.com/oasuite/procureflow/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting procurement workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer sqlDB.Close()

	// Run migrations
	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	db := sqlite.NewDB(sqlDB, logger)
	kvLogger := utils.NewKVLogger(logger)

	// Initialize repositories
	purchaseRepo := repository.NewPurchaseRepository(sqlDB, logger)
	reimbursementRepo := repository.NewReimbursementRepository(sqlDB, logger)
	logRepo := repository.NewWorkflowLogRepository(sqlDB, logger)
	flowRepo := repository.NewFlowRepository(sqlDB, logger)
	notificationRepo := repository.NewNotificationRepository(sqlDB, logger)
	expenditureRepo := repository.NewExpenditureRepository(sqlDB, logger)
	budgetRepo := repository.NewBudgetRepository(sqlDB, logger)
	directoryRepo := repository.NewDirectoryRepository(sqlDB, logger)

	// Initialize permission checker and delivery adapters
	permChecker := permission.NewChecker(cfg.Permissions, directoryRepo, logger)

	var emailSender *notification.SMTPSender
	if cfg.Notification.SMTP.Host != "" {
		emailSender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.Notification.SMTP.Host,
			Port:     cfg.Notification.SMTP.Port,
			Username: cfg.Notification.SMTP.Username,
			Password: cfg.Notification.SMTP.Password,
			From:     cfg.Notification.SMTP.From,
		}, logger)
	}

	var smsSender *notification.WebhookSMSSender
	if cfg.Notification.SMS.WebhookURL != "" {
		smsSender = notification.NewWebhookSMSSender(notification.SMSConfig{
			WebhookURL: cfg.Notification.SMS.WebhookURL,
			Token:      cfg.Notification.SMS.Token,
			Timeout:    cfg.Notification.SMS.Timeout,
		}, logger)
	}

	// Initialize event dispatcher and notification fan-out
	eventDispatcher := dispatcher.New(dispatcher.WithLogger(kvLogger))
	defer eventDispatcher.Close()

	notifier := service.NewNotifier(
		notificationRepo,
		directoryRepo,
		senderOrNil(emailSender),
		smsOrNil(smsSender),
		cfg.Notification.SMS.FinanceChannel,
		kvLogger,
	)
	notifier.Register(eventDispatcher)

	// Initialize application services
	purchaseService := service.NewPurchaseService(
		purchaseRepo, logRepo, flowRepo, budgetRepo, expenditureRepo,
		permChecker, directoryRepo, db, eventDispatcher, kvLogger)
	reimbursementService := service.NewReimbursementService(
		reimbursementRepo, logRepo, flowRepo, expenditureRepo,
		permChecker, directoryRepo, db, eventDispatcher, kvLogger)
	flowService := service.NewFlowService(flowRepo, permChecker, kvLogger)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, purchaseService, reimbursementService, flowService, notificationRepo, kvLogger)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// senderOrNil keeps an unconfigured sender as a nil interface so the
// notifier can detect it.
func senderOrNil(s *notification.SMTPSender) port.EmailSender {
	if s == nil {
		return nil
	}
	return s
}

func smsOrNil(s *notification.WebhookSMSSender) port.SMSSender {
	if s == nil {
		return nil
	}
	return s
}
