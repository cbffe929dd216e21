package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"wassist-backend/internal/api"
	"wassist-backend/internal/bus"
	"wassist-backend/internal/config"
	"wassist-backend/internal/crypto"
	"wassist-backend/internal/handlers"
	"wassist-backend/internal/integrations/whatsapp"
	"wassist-backend/internal/integrations/widget"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/services"
	"wassist-backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info").Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(os.Stderr, cfg.LogLevel)
	log.Info().Msg("starting wassist backend")

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create database connection pool")
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	log.Info().Msg("database connection pool established")

	pgStore := postgres.NewPostgresStore(dbpool)

	aead, err := crypto.NewAESGCM(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AES-GCM cipher")
	}

	changeBus := bus.New(dbpool, log)
	defer changeBus.Close()

	hub := widget.NewHub(log)
	waClient := whatsapp.NewClient(cfg.WhatsAppAPIBase)

	credentialsService := services.NewCredentialsService(pgStore, aead, log)
	conversationService := services.NewConversationService(pgStore, changeBus, log, cfg.DedupWindow)
	dispatchService := services.NewDispatchService(pgStore, credentialsService, waClient, hub, changeBus, log)
	rulesService := services.NewRulesService(pgStore, changeBus, log)
	analyticsService := services.NewAnalyticsService(pgStore, log)
	retentionService := services.NewRetentionService(pgStore, changeBus, log)

	router := api.NewRouter(api.RouterDependencies{
		ConversationHandlers:   handlers.NewConversationHandlers(conversationService, dispatchService, retentionService),
		RuleHandlers:           handlers.NewRuleHandlers(rulesService),
		AnalyticsHandlers:      handlers.NewAnalyticsHandlers(analyticsService),
		CredentialsHandlers:    handlers.NewCredentialsHandlers(credentialsService, pgStore),
		WhatsAppWebhookHandler: handlers.NewWhatsAppWebhookHandlers(dispatchService, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, log),
		WidgetHandlers:         handlers.NewWidgetHandlers(hub, dispatchService, changeBus, log),
		Config:                 cfg,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stopChan
	log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server shutdown complete")
}
