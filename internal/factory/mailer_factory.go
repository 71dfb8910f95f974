package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/mailer"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/ports"
)

// MailerFactory creates reply dispatchers based on configuration
type MailerFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	observer ports.DeliveryObserver
}

// NewMailerFactory creates a new mailer factory
func NewMailerFactory(cfg *config.Config, logger *zap.Logger, observer ports.DeliveryObserver) *MailerFactory {
	return &MailerFactory{
		cfg:      cfg,
		logger:   logger,
		observer: observer,
	}
}

// CreateDispatcher creates a reply dispatcher for the configured mode
func (f *MailerFactory) CreateDispatcher() (ports.ReplyDispatcher, error) {
	mc := f.cfg.GetMailer()

	switch mc.Mode {
	case "log":
		return mailer.NewLogMailer(f.observer, f.logger), nil
	case "smtp":
		return f.CreateSMTPMailer(), nil
	case "nats":
		conn, err := mailer.ConnectNATS(mc.NATSURL, "faujnet", f.logger)
		if err != nil {
			return nil, err
		}
		return mailer.NewNATSMailer(conn, mc.NATSSubject, f.observer, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported mailer mode: %s", mc.Mode)
	}
}

// CreateSMTPMailer creates a relay mailer regardless of the configured mode,
// for the queue relay process
func (f *MailerFactory) CreateSMTPMailer() *mailer.SMTPMailer {
	mc := f.cfg.GetMailer()
	return mailer.NewSMTPMailer(mc.RelayAddress, mc.Username, mc.Password, mc.StartTLS, f.observer, f.logger)
}
