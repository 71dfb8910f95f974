package filter

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/reply"
	"github.com/captvenkat/faujnet-backend/internal/utils"
)

// CliFilter resolves single messages from the command line and prints the
// Decision together with the reply that would be sent
type CliFilter struct {
	service       *core.Service
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	out           io.Writer
	replyFrom     map[core.EventKind]string
	verbose       bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(
	service *core.Service,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	askFrom string,
	submitFrom string,
	verbose bool,
) (*CliFilter, error) {
	return &CliFilter{
		service:       service,
		textProcessor: textProcessor,
		logger:        logger,
		out:           os.Stdout,
		replyFrom: map[core.EventKind]string{
			core.EventAsk:    askFrom,
			core.EventSubmit: submitFrom,
		},
		verbose: verbose,
	}, nil
}

// SetOutput redirects the report, stdout by default
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessEmail resolves an email and prints the result
func (f *CliFilter) ProcessEmail(ctx context.Context, kind core.EventKind, email *core.Email) (*core.Decision, error) {
	f.logger.Debug("Processing email", zap.String("kind", string(kind)))
	email.Body = f.textProcessor.ProcessText(email.Body)

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "Inbox: %s\n", kind)
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", utils.TruncateRunes(email.Body, 500))
	}

	startTime := time.Now()
	d, err := f.service.HandleEmail(ctx, kind, email)
	if err != nil {
		f.logger.Error("Failed to resolve email", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Fprintf(f.out, "\n=== Decision ===\n")
	fmt.Fprintf(f.out, "Action: %s\n", d.Action)
	fmt.Fprintf(f.out, "Reason: %s\n", d.Reason)
	if d.MissingField != "" {
		fmt.Fprintf(f.out, "Missing field: %s\n", d.MissingField)
	}
	if d.QueryType != "" {
		fmt.Fprintf(f.out, "Query type: %s\n", d.QueryType)
	}
	if d.OpportunityID != 0 {
		fmt.Fprintf(f.out, "Opportunity ID: %d\n", d.OpportunityID)
	}
	fmt.Fprintf(f.out, "Results: %d\n", len(d.Results))
	fmt.Fprintf(f.out, "Reference: %s\n", d.Reference)
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	msg, err := reply.Render(d, email, f.replyFrom[kind])
	if err != nil {
		return d, fmt.Errorf("failed to render reply: %w", err)
	}
	fmt.Fprintf(f.out, "\n=== Reply ===\n")
	if msg == nil {
		fmt.Fprintf(f.out, "(silence, no reply)\n")
		return d, nil
	}
	fmt.Fprintf(f.out, "To: %s\nSubject: %s\n\n%s", msg.To, msg.Subject, msg.Body)
	return d, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
