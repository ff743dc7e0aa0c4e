package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/database"
	"github.com/digkill/TGSongBot/internal/payments"
	"github.com/digkill/TGSongBot/internal/repository"
	"github.com/digkill/TGSongBot/internal/server"
	"github.com/digkill/TGSongBot/internal/service"
	"github.com/digkill/TGSongBot/internal/storage"
	"github.com/digkill/TGSongBot/internal/telegram"
	"github.com/digkill/TGSongBot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}
	logr.Info("database ready", "dialect", db.Dialect.Name())

	if missing := cfg.Unconfigured(); len(missing) > 0 {
		logr.Warn("payment endpoints will fail until configured", "missing", missing)
	}

	accountRepo := repository.NewAccountRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	catalog := service.DefaultCatalog()
	ledger := service.NewLedgerService(accountRepo, purchaseRepo, logr)
	stripeClient := payments.NewClient(cfg.StripeSecretKey, cfg.StripeTimeout, logr)
	checkoutService := service.NewCheckoutService(cfg, catalog, stripeClient, logr)
	webhookService := service.NewWebhookService(cfg, catalog, ledger, logr)

	if cfg.TelegramBotToken != "" {
		notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, tgbotapi.APIEndpoint, cfg.NotifyTimeout, logr)
		if err != nil {
			logr.Error("telegram notifier disabled", "err", err)
		} else {
			webhookService.SetNotifier(notifier)
		}
	}

	if cfg.ArchiveEnabled() {
		archiver, err := storage.NewArchiver(storage.Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3UsePathStyle,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage archiver: %v", err)
		}
		webhookService.SetArchiver(archiver)
	}

	srv := server.NewServer(cfg, logr, checkoutService, webhookService, ledger, db)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("server stopped", "err", err)
	}
}
