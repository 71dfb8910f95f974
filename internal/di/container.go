package di

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/httpapi"
	"github.com/captvenkat/faujnet-backend/internal/adapters/mailer"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/factory"
	"github.com/captvenkat/faujnet-backend/internal/logging"
	"github.com/captvenkat/faujnet-backend/internal/metrics"
	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register ops HTTP server
	if err := container.Provide(func(cfg *config.Config, st core.Store, rec *metrics.Recorder, logger *zap.Logger) *httpapi.Server {
		hc := cfg.GetHTTP()
		return httpapi.New(st, rec.Handler(), logger, httpapi.ServerOptions{
			Addr:   hc.ListenAddress,
			APIKey: hc.APIKey,
		})
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers everything between the store and the email filter.
// Both containers share it; they differ in how config and logger are built.
func provideCore(container *dig.Container) error {
	// Register metrics recorder and its observer roles
	if err := container.Provide(metrics.NewRecorder); err != nil {
		return err
	}
	if err := container.Provide(func(r *metrics.Recorder) core.DecisionObserver { return r }); err != nil {
		return err
	}
	if err := container.Provide(func(r *metrics.Recorder) ports.DeliveryObserver { return r }); err != nil {
		return err
	}
	if err := container.Provide(func(r *metrics.Recorder) ports.InboundObserver { return r }); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewMailerFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register store, seeding any live flag that does not exist yet
	if err := container.Provide(func(f *factory.StoreFactory, cfg *config.Config, logger *zap.Logger) (core.Store, error) {
		st, err := f.CreateStore()
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.SeedFlags(ctx, core.DefaultFlags(cfg.GetPolicy(), time.Now())); err != nil {
			st.Stop()
			return nil, fmt.Errorf("failed to seed config flags: %w", err)
		}
		logger.Info("Store ready", zap.String("type", cfg.GetString("store.type")))
		return st, nil
	}); err != nil {
		return err
	}

	// Register pipeline and service
	if err := container.Provide(func(st core.Store, logger *zap.Logger) *core.Pipeline {
		return core.NewPipeline(st, logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(p *core.Pipeline, st core.Store, observer core.DecisionObserver, logger *zap.Logger) *core.Service {
		return core.NewService(p, st, observer, logger)
	}); err != nil {
		return err
	}

	// Register reply dispatcher and responder
	if err := container.Provide(func(f *factory.MailerFactory) (ports.ReplyDispatcher, error) {
		return f.CreateDispatcher()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(d ports.ReplyDispatcher, st core.Store, cfg *config.Config, logger *zap.Logger) *mailer.Responder {
		mc := cfg.GetMailer()
		return mailer.NewResponder(d, st, mc.AskFrom, mc.SubmitFrom, logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(r *mailer.Responder) ports.Responder { return r }); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return err
	}

	return nil
}
