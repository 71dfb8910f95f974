package ports

import (
	"context"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

// EmailFilter defines the interface for an inbound mail transport
type EmailFilter interface {
	// ProcessEmail resolves an email received on the given inbox
	ProcessEmail(ctx context.Context, kind core.EventKind, email *core.Email) (*core.Decision, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}

// InboundObserver is notified of messages refused before they reach the core
type InboundObserver interface {
	ObserveInboundRejected(reason string)
}
