package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

// LogMailer logs replies instead of sending them
type LogMailer struct {
	observer ports.DeliveryObserver
	logger   *zap.Logger
}

// NewLogMailer creates a new logging mailer
func NewLogMailer(observer ports.DeliveryObserver, logger *zap.Logger) *LogMailer {
	return &LogMailer{observer: observer, logger: logger}
}

// Mode implements ports.ReplyDispatcher
func (m *LogMailer) Mode() string {
	return "log"
}

// Dispatch logs the reply at info level
func (m *LogMailer) Dispatch(ctx context.Context, msg *reply.Message) error {
	m.logger.Info("Reply not sent, log mailer in use",
		zap.String("reference", msg.Reference),
		zap.String("kind", msg.Kind),
		zap.String("action", msg.Action),
		zap.String("subject", msg.Subject))
	m.logger.Debug("Reply body", zap.String("reference", msg.Reference), zap.String("body", msg.Body))
	if m.observer != nil {
		m.observer.ObserveDelivery(m.Mode(), "logged")
	}
	return nil
}

// Close implements ports.ReplyDispatcher
func (m *LogMailer) Close() error {
	return nil
}
