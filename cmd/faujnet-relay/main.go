package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/mailer"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/factory"
	"github.com/captvenkat/faujnet-backend/internal/logging"
	"github.com/captvenkat/faujnet-backend/internal/metrics"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mc := cfg.GetMailer()
	smtpMailer := factory.NewMailerFactory(cfg, logger, metrics.NewRecorder()).CreateSMTPMailer()

	conn, err := mailer.ConnectNATS(mc.NATSURL, "faujnet-relay", logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer conn.Close()

	relay := mailer.NewRelay(conn, mc.NATSSubject, smtpMailer, logger)
	if err := relay.Run(ctx); err != nil {
		logger.Error("Relay stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Relay stopped")
}
