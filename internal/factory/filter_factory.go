package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/filter"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/ports"
	"github.com/captvenkat/faujnet-backend/internal/utils"
	"github.com/captvenkat/faujnet-backend/internal/whitelist"
)

// FilterFactory creates inbound email filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.Service
	responder     ports.Responder
	textProcessor *utils.TextProcessor
	observer      ports.InboundObserver
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.Service,
	responder ports.Responder,
	textProcessor *utils.TextProcessor,
	observer ports.InboundObserver,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		responder:     responder,
		textProcessor: textProcessor,
		observer:      observer,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	sc := f.cfg.GetServer()

	switch sc.FilterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.service,
			f.responder,
			f.textProcessor,
			whitelist.NewChecker(sc.AcceptedDomains, f.logger),
			f.observer,
			f.logger,
			sc.ListenAddress,
			sc.Domain,
			sc.AskInbox,
			sc.SubmitInbox,
			sc.MaxMessagesPerSecond,
		), nil
	case "cli":
		mc := f.cfg.GetMailer()
		return filter.NewCliFilter(
			f.service,
			f.textProcessor,
			f.logger,
			mc.AskFrom,
			mc.SubmitFrom,
			f.cfg.GetBool("cli.verbose"),
		)
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", sc.FilterType)
	}
}
