package mailer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

const dispatchTimeout = time.Minute

// Responder renders a Decision and hands the reply to a dispatcher in the
// background. Delivery never feeds back into the Decision.
type Responder struct {
	dispatcher ports.ReplyDispatcher
	config     core.ConfigStore
	senders    map[core.EventKind]string
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewResponder creates a responder. askFrom and submitFrom are the reply
// addresses of the two inboxes.
func NewResponder(dispatcher ports.ReplyDispatcher, config core.ConfigStore, askFrom, submitFrom string, logger *zap.Logger) *Responder {
	return &Responder{
		dispatcher: dispatcher,
		config:     config,
		senders: map[core.EventKind]string{
			core.EventAsk:    askFrom,
			core.EventSubmit: submitFrom,
		},
		logger: logger,
	}
}

// Respond renders the reply and dispatches it asynchronously. It reports
// whether a dispatch was started.
func (r *Responder) Respond(ctx context.Context, d *core.Decision, original *core.Email) bool {
	msg, err := reply.Render(d, original, r.senders[d.Kind])
	if err != nil {
		r.logger.Error("Failed to render reply", zap.String("reference", d.Reference), zap.Error(err))
		return false
	}
	if msg == nil {
		return false
	}

	flags, err := r.config.LoadFlags(ctx)
	if err != nil {
		r.logger.Error("Failed to read outbound flag", zap.String("reference", d.Reference), zap.Error(err))
		return false
	}
	if !core.SettingsFromFlags(flags).OutboundEnabled {
		r.logger.Info("Outbound email disabled, reply dropped",
			zap.String("reference", d.Reference),
			zap.String("action", string(d.Action)))
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		dctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := r.dispatcher.Dispatch(dctx, msg); err != nil {
			r.logger.Error("Failed to deliver reply",
				zap.String("mode", r.dispatcher.Mode()),
				zap.String("reference", msg.Reference),
				zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until in-flight dispatches finish
func (r *Responder) Wait() {
	r.wg.Wait()
}
