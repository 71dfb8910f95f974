package ports

import (
	"context"

	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

// ReplyDispatcher delivers rendered replies
type ReplyDispatcher interface {
	// Dispatch delivers one reply. Failures are reported to the caller and
	// never retried by the dispatcher itself.
	Dispatch(ctx context.Context, msg *reply.Message) error

	// Mode names the delivery mechanism for logs and metrics
	Mode() string

	// Close releases connections held by the dispatcher
	Close() error
}

// DeliveryObserver is notified of every delivery attempt
type DeliveryObserver interface {
	ObserveDelivery(mode, status string)
}

// Responder turns a Decision into an outbound reply
type Responder interface {
	// Respond reports whether a reply was handed to a dispatcher
	Respond(ctx context.Context, d *core.Decision, original *core.Email) bool
}
