package filter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/utils"
	"github.com/captvenkat/faujnet-backend/internal/whitelist"
)

const processTimeout = 10 * time.Second

var (
	errUnknownMailbox = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "Mailbox unavailable",
	}
	errThrottled = &smtp.SMTPError{
		Code:         421,
		EnhancedCode: smtp.EnhancedCode{4, 7, 0},
		Message:      "Too many messages, try again later",
	}
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary processing failure, try again later",
	}
)

// SMTPFilter receives mail for the ASK and SUBMIT inboxes over SMTP
type SMTPFilter struct {
	service       *core.Service
	responder     ports.Responder
	textProcessor *utils.TextProcessor
	domains       *whitelist.Checker
	limiter       *rate.Limiter
	observer      ports.InboundObserver
	logger        *zap.Logger
	listenAddr    string
	domain        string
	askInbox      string
	submitInbox   string
	server        *smtp.Server
}

// NewSMTPFilter creates a new SMTP inbox filter. Inboxes may be full
// addresses or bare local parts. A non-positive messagesPerSecond disables
// throttling.
func NewSMTPFilter(
	service *core.Service,
	responder ports.Responder,
	textProcessor *utils.TextProcessor,
	domains *whitelist.Checker,
	observer ports.InboundObserver,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	askInbox string,
	submitInbox string,
	messagesPerSecond float64,
) *SMTPFilter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if messagesPerSecond > 0 {
		burst := int(messagesPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(messagesPerSecond), burst)
	}
	if domain == "" {
		domain = "localhost"
	}

	return &SMTPFilter{
		service:       service,
		responder:     responder,
		textProcessor: textProcessor,
		domains:       domains,
		limiter:       limiter,
		observer:      observer,
		logger:        logger,
		listenAddr:    listenAddr,
		domain:        domain,
		askInbox:      strings.ToLower(strings.TrimSpace(askInbox)),
		submitInbox:   strings.ToLower(strings.TrimSpace(submitInbox)),
	}
}

// Start starts the SMTP listener
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.listenAddr
	f.server.Domain = f.domain
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 10 * 1024 * 1024
	f.server.MaxRecipients = 10

	f.logger.Info("SMTP filter starting",
		zap.String("address", f.listenAddr),
		zap.String("ask_inbox", f.askInbox),
		zap.String("submit_inbox", f.submitInbox))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the SMTP listener
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail resolves one parsed email and hands the Decision to the responder
func (f *SMTPFilter) ProcessEmail(ctx context.Context, kind core.EventKind, email *core.Email) (*core.Decision, error) {
	email.Body = f.textProcessor.ProcessText(email.Body)

	d, err := f.service.HandleEmail(ctx, kind, email)
	if err != nil {
		return nil, err
	}
	f.responder.Respond(ctx, d, email)
	return d, nil
}

// route maps a recipient to its inbox kind
func (f *SMTPFilter) route(rcpt string) (core.EventKind, bool) {
	if !f.domains.Accepts(rcpt) {
		return "", false
	}
	addr := strings.ToLower(strings.Trim(strings.TrimSpace(rcpt), "<>"))
	local := whitelist.LocalPart(addr)
	switch {
	case matchesInbox(f.askInbox, addr, local):
		return core.EventAsk, true
	case matchesInbox(f.submitInbox, addr, local):
		return core.EventSubmit, true
	}
	return "", false
}

func matchesInbox(inbox, addr, local string) bool {
	if inbox == "" {
		return false
	}
	if strings.Contains(inbox, "@") {
		return inbox == addr
	}
	return inbox == local
}

func (f *SMTPFilter) reject(reason string) {
	if f.observer != nil {
		f.observer.ObserveInboundRejected(reason)
	}
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter *SMTPFilter
	sender string
	kinds  []core.EventKind
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.kinds = nil
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	if !s.filter.limiter.Allow() {
		s.filter.reject("throttled")
		return errThrottled
	}
	s.sender = from
	return nil
}

// Rcpt accepts only the configured inboxes
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	kind, ok := s.filter.route(to)
	if !ok {
		s.filter.reject("unknown_recipient")
		s.filter.logger.Debug("Refused recipient", zap.String("recipient", to))
		return errUnknownMailbox
	}
	for _, k := range s.kinds {
		if k == kind {
			return nil
		}
	}
	s.kinds = append(s.kinds, kind)
	return nil
}

// Data parses the message and resolves it once per addressed inbox. A
// temporary failure is only returned while no inbox has been decided.
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := ParseMessage(bytes.NewReader(raw))
	if err != nil && !errors.Is(err, ErrNoTextContent) {
		// accepted and dropped without a bounce
		s.filter.reject("unparseable")
		s.filter.logger.Warn("Dropping unparseable message", zap.Error(err))
		return nil
	}
	if email.From == "" {
		email.From = s.sender
	}
	if email.From == "" {
		s.filter.reject("no_sender")
		s.filter.logger.Warn("Dropping message without sender")
		return nil
	}
	s.filter.logger.Debug("Received message",
		zap.String("sender", email.From),
		zap.String("sender_hash", core.HashAddress(email.From)),
		zap.Int("size", len(raw)))

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	decided := 0
	for _, kind := range s.kinds {
		d, err := s.filter.ProcessEmail(ctx, kind, email)
		if err != nil {
			s.filter.logger.Error("Failed to process message",
				zap.String("kind", string(kind)),
				zap.String("sender_hash", core.HashAddress(email.From)),
				zap.Int("decided", decided),
				zap.Error(err))
			// a retry would decide the earlier inboxes twice
			if decided > 0 {
				continue
			}
			return errTemporary
		}
		decided++
		s.filter.logger.Debug("Processed message",
			zap.String("kind", string(kind)),
			zap.String("action", string(d.Action)),
			zap.String("reference", d.Reference))
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
