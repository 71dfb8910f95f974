package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

const (
	dialTimeout       = 10 * time.Second
	sessionTimeout    = 30 * time.Second
	breakerFailures   = 5
	breakerOpenPeriod = time.Minute
)

// ErrRelayUnavailable is returned while the relay circuit breaker is open
var ErrRelayUnavailable = errors.New("smtp relay unavailable")

// SMTPMailer delivers replies through an SMTP relay
type SMTPMailer struct {
	relayAddr string
	username  string
	password  string
	startTLS  bool
	hostname  string
	breaker   *gobreaker.CircuitBreaker[any]
	observer  ports.DeliveryObserver
	logger    *zap.Logger
	now       func() time.Time
}

// NewSMTPMailer creates a new SMTP relay mailer
func NewSMTPMailer(
	relayAddr string,
	username string,
	password string,
	startTLS bool,
	observer ports.DeliveryObserver,
	logger *zap.Logger,
) *SMTPMailer {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	m := &SMTPMailer{
		relayAddr: relayAddr,
		username:  username,
		password:  password,
		startTLS:  startTLS,
		hostname:  hostname,
		observer:  observer,
		logger:    logger,
		now:       time.Now,
	}
	m.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "smtp-relay",
		MaxRequests: 1,
		Timeout:     breakerOpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// a permanent rejection of one recipient says nothing about relay health
			var smtpErr *smtp.SMTPError
			return err == nil || (errors.As(err, &smtpErr) && !smtpErr.Temporary())
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return m
}

// Mode implements ports.ReplyDispatcher
func (m *SMTPMailer) Mode() string {
	return "smtp"
}

// Dispatch composes and relays one reply
func (m *SMTPMailer) Dispatch(ctx context.Context, msg *reply.Message) error {
	data, err := Compose(msg, m.hostname, m.now())
	if err != nil {
		m.observe("invalid")
		return err
	}

	_, err = m.breaker.Execute(func() (any, error) {
		return nil, m.send(ctx, msg.From, msg.To, data)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		m.observe("breaker_open")
		return fmt.Errorf("%w: %w", ErrRelayUnavailable, err)
	case err != nil:
		m.observe("failure")
		return err
	}

	m.observe("success")
	m.logger.Debug("Relayed reply",
		zap.String("reference", msg.Reference),
		zap.String("action", msg.Action))
	return nil
}

// send relays raw message data to a single recipient
func (m *SMTPMailer) send(ctx context.Context, from, to string, data []byte) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.relayAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(sessionTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(m.hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if m.startTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			host, _, _ := net.SplitHostPort(m.relayAddr)
			if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if m.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(sasl.NewPlainClient("", m.username, m.password)); err != nil {
				return fmt.Errorf("AUTH failed: %w", err)
			}
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		m.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func (m *SMTPMailer) observe(status string) {
	if m.observer != nil {
		m.observer.ObserveDelivery(m.Mode(), status)
	}
}

// Close implements ports.ReplyDispatcher
func (m *SMTPMailer) Close() error {
	return nil
}
