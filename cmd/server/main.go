package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	accountrepo "mynotes-auth-service/internal/account/repository"
	authhandler "mynotes-auth-service/internal/auth/handler"
	authservice "mynotes-auth-service/internal/auth/service"
	"mynotes-auth-service/internal/challenge"
	challengerepo "mynotes-auth-service/internal/challenge/repository"
	"mynotes-auth-service/internal/config"
	"mynotes-auth-service/internal/db"
	"mynotes-auth-service/internal/mailer"
	"mynotes-auth-service/internal/security"
	"mynotes-auth-service/internal/server"
	otelsetup "mynotes-auth-service/internal/telemetry/otel"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("config")
	}

	ctx := context.Background()
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "mynotes-auth")
	if err != nil {
		logger.WithError(err).Fatal("telemetry")
	}

	var accounts authservice.AccountRepo
	var challenges challengerepo.Repository
	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("database")
		}
		defer database.Close()
		accounts = accountrepo.NewPostgresRepository(database)
		challenges = challengerepo.NewPostgresRepository(database)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores (dev mode, nothing survives a restart)")
		accounts = accountrepo.NewMemoryRepository()
		challenges = challengerepo.NewMemoryRepository()
	}

	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail, cfg.MailSendTimeout())
	machine := challenge.NewMachine(challenges, mail, logger, cfg.OTPLifetime())
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL())
	auth := authservice.NewAuthService(accounts, machine, hasher, tokens, logger)

	sweeper, err := server.StartSweeper(machine, cfg.SweepSchedule, logger)
	if err != nil {
		logger.WithError(err).Fatal("sweeper")
	}

	srv := &http.Server{
		Addr:         cfg.AuthAddr,
		Handler:      server.New(authhandler.NewAuthHandlers(auth, logger), logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.AuthAddr).Info("auth service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down auth service...")
	if sweeper != nil {
		sweeper.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("telemetry shutdown")
	}
	logger.Info("auth service stopped")
}
