package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

const relayQueueGroup = "relays"

// NATSMailer queues rendered replies on a NATS subject for a separate relay
// process to deliver
type NATSMailer struct {
	conn     *nats.Conn
	subject  string
	observer ports.DeliveryObserver
	logger   *zap.Logger
}

// ConnectNATS opens a connection with reconnect handling
func ConnectNATS(url, name string, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewNATSMailer creates a mailer publishing to subject
func NewNATSMailer(conn *nats.Conn, subject string, observer ports.DeliveryObserver, logger *zap.Logger) *NATSMailer {
	return &NATSMailer{
		conn:     conn,
		subject:  subject,
		observer: observer,
		logger:   logger,
	}
}

// Mode implements ports.ReplyDispatcher
func (m *NATSMailer) Mode() string {
	return "nats"
}

// Dispatch publishes the reply as JSON
func (m *NATSMailer) Dispatch(ctx context.Context, msg *reply.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.observe("invalid")
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	if err := m.conn.Publish(m.subject, payload); err != nil {
		m.observe("failure")
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	m.observe("queued")
	return nil
}

func (m *NATSMailer) observe(status string) {
	if m.observer != nil {
		m.observer.ObserveDelivery(m.Mode(), status)
	}
}

// Close flushes pending publishes and closes the connection
func (m *NATSMailer) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.FlushTimeout(5 * time.Second)
	m.conn.Close()
	return err
}

// Relay consumes queued replies and hands each one to a dispatcher
type Relay struct {
	conn    *nats.Conn
	subject string
	target  ports.ReplyDispatcher
	logger  *zap.Logger
}

// NewRelay creates a relay from subject to target
func NewRelay(conn *nats.Conn, subject string, target ports.ReplyDispatcher, logger *zap.Logger) *Relay {
	return &Relay{
		conn:    conn,
		subject: subject,
		target:  target,
		logger:  logger,
	}
}

// Handle decodes and delivers a single queued payload
func (r *Relay) Handle(ctx context.Context, data []byte) error {
	var msg reply.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to decode queued reply: %w", err)
	}
	return r.target.Dispatch(ctx, &msg)
}

// Run subscribes in the relay queue group and blocks until ctx is done.
// Failed deliveries are logged and dropped.
func (r *Relay) Run(ctx context.Context) error {
	sub, err := r.conn.QueueSubscribe(r.subject, relayQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		if err := r.Handle(ctx, msg.Data); err != nil {
			r.logger.Error("Failed to relay reply", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := r.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %w", err)
	}

	r.logger.Info("Relay started", zap.String("subject", r.subject))
	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}
