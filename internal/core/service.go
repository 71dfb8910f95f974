package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/classify"
	"github.com/captvenkat/faujnet-backend/internal/utils"
)

const (
	ruleLookupLimit        = 5
	opportunityLookupLimit = 10
	minConflictResults     = 2
)

// Pipeline resolves one inbound message into exactly one Decision
type Pipeline struct {
	store  Store
	trust  *TrustEngine
	gate   *Gate
	logger *zap.Logger
	now    func() time.Time
}

// NewPipeline creates a new admission and classification pipeline
func NewPipeline(store Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		trust:  NewTrustEngine(store, logger),
		gate:   NewGate(store),
		logger: logger,
		now:    time.Now,
	}
}

// outcome bundles the trust outcome and the event bucket of a terminal state
type outcome struct {
	trust    Outcome
	result   string
	category string
}

// admit runs the global checks, identity resolution and the gate. A non-nil
// Decision means processing stops there.
func (p *Pipeline) admit(ctx context.Context, kind EventKind, enabled bool, s Settings, msg *Email, now time.Time) (*SenderRecord, *Decision, error) {
	if !enabled {
		return nil, silence(kind, ReasonBotDisabled), nil
	}
	if s.SafeMode {
		return nil, silence(kind, ReasonSafeMode), nil
	}

	rec, err := p.trust.Identify(ctx, msg.From, now)
	if err != nil {
		return nil, nil, err
	}

	adm, err := p.gate.Admit(ctx, rec, kind, s, now)
	if err != nil {
		return nil, nil, err
	}
	if !adm.Allowed {
		d := silence(kind, adm.Reason)
		o := outcome{trust: adm.Outcome, result: ResultSilence, category: string(adm.Reason)}
		if err := p.conclude(ctx, rec, kind, s, o, now); err != nil {
			return nil, nil, err
		}
		return rec, d, nil
	}
	return rec, nil, nil
}

// conclude applies the single trust mutation and the single outcome bucket
func (p *Pipeline) conclude(ctx context.Context, rec *SenderRecord, kind EventKind, s Settings, o outcome, now time.Time) error {
	if err := p.trust.ApplyOutcome(ctx, rec.Hash, kind, o.trust, s, now); err != nil {
		return err
	}
	key := EventKey{
		Day:        now.UTC().Format(dayLayout),
		EventType:  string(kind),
		ResultType: o.result,
		Category:   o.category,
	}
	if err := p.store.IncrementEvent(ctx, key, now); err != nil {
		return fmt.Errorf("%w: failed to record event: %w", ErrStore, err)
	}
	return nil
}

func clarificationKey(hash string, kind EventKind, gap string, now time.Time) EventKey {
	return EventKey{
		Day:        now.UTC().Format(dayLayout),
		EventType:  string(kind),
		ResultType: ResultClarification,
		Category:   clarifyPrefix + hash + ":" + gap,
	}
}

// clarify issues a clarification for gap unless one was already sent today
// for the same sender and gap.
func (p *Pipeline) clarify(ctx context.Context, rec *SenderRecord, kind EventKind, s Settings, gap, category string, d *Decision, now time.Time) (*Decision, error) {
	ledger := clarificationKey(rec.Hash, kind, gap, now)
	sent, err := p.store.EventCount(ctx, ledger)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read clarification ledger: %w", ErrStore, err)
	}
	if sent > 0 {
		o := outcome{trust: OutcomeSilence, result: ResultSilence, category: string(ReasonClarificationRepeat)}
		if err := p.conclude(ctx, rec, kind, s, o, now); err != nil {
			return nil, err
		}
		return silence(kind, ReasonClarificationRepeat), nil
	}

	if err := p.store.IncrementEvent(ctx, ledger, now); err != nil {
		return nil, fmt.Errorf("%w: failed to record clarification: %w", ErrStore, err)
	}
	o := outcome{trust: OutcomeClarification, result: ResultClarification, category: category}
	if err := p.conclude(ctx, rec, kind, s, o, now); err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveQuery runs the ASK path against the given settings snapshot
func (p *Pipeline) ResolveQuery(ctx context.Context, s Settings, msg *Email) (*Decision, error) {
	now := p.now()
	rec, d, err := p.admit(ctx, EventAsk, s.AskEnabled, s, msg, now)
	if err != nil || d != nil {
		return d, err
	}

	content := joinContent(utils.Normalize(msg.Subject), utils.Normalize(msg.Body))
	qt := classify.ClassifyQuery(content)
	if qt == classify.InvalidQuery {
		o := outcome{trust: OutcomeSilence, result: ResultSilence, category: string(classify.InvalidQuery)}
		if err := p.conclude(ctx, rec, EventAsk, s, o, now); err != nil {
			return nil, err
		}
		return silence(EventAsk, ReasonInvalidQuery), nil
	}

	params := classify.ExtractParams(content)
	missing := classify.MissingParams(params, qt)
	switch {
	case len(missing) > 1:
		o := outcome{trust: OutcomeSilence, result: ResultSilence, category: string(qt)}
		if err := p.conclude(ctx, rec, EventAsk, s, o, now); err != nil {
			return nil, err
		}
		return silence(EventAsk, ReasonTooManyMissing), nil
	case len(missing) == 1:
		d := &Decision{
			Kind:         EventAsk,
			Action:       ActionClarification,
			Reason:       ReasonMissingField,
			MissingField: missing[0],
			QueryType:    qt,
		}
		return p.clarify(ctx, rec, EventAsk, s, missing[0], string(qt), d, now)
	}

	results, err := p.lookup(ctx, qt, params, now)
	if err != nil {
		return nil, err
	}

	d = &Decision{Kind: EventAsk, QueryType: qt, Params: params, Results: results}
	o := outcome{trust: OutcomeReplySent, category: string(qt)}
	switch {
	case hasConflict(results):
		d.Action, d.Reason = ActionConflict, ReasonConflictingSources
		o.result = ResultConflict
	case len(results) > 0:
		d.Action, d.Reason = ActionResponse, ReasonResultsFound
		o.result = ResultReplySent
	default:
		d.Action, d.Reason = ActionNoMatch, ReasonNoResults
		o.result = ResultReplySent
	}
	if err := p.conclude(ctx, rec, EventAsk, s, o, now); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *Pipeline) lookup(ctx context.Context, qt classify.QueryType, params classify.QueryParams, now time.Time) ([]LookupResult, error) {
	var (
		results []LookupResult
		err     error
	)
	if qt == classify.RuleQuery {
		results, err = p.store.FindOfficialRules(ctx, params.Service, ruleLookupLimit)
	} else {
		results, err = p.store.FindOpportunities(ctx, params.Category, now.UTC().Format(dayLayout), opportunityLookupLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to look up %s: %w", ErrStore, qt, err)
	}
	return results, nil
}

// hasConflict reports two or more results where any carries a conflict marker
func hasConflict(results []LookupResult) bool {
	if len(results) < minConflictResults {
		return false
	}
	for _, r := range results {
		if r.Status == StatusConflict {
			return true
		}
	}
	return false
}

// ResolveSubmission runs the SUBMIT path against the given settings snapshot
func (p *Pipeline) ResolveSubmission(ctx context.Context, s Settings, msg *Email) (*Decision, error) {
	now := p.now()
	rec, d, err := p.admit(ctx, EventSubmit, s.SubmitEnabled, s, msg, now)
	if err != nil || d != nil {
		return d, err
	}

	lines := strings.Split(utils.StripNoise(msg.Subject)+"\n"+utils.StripNoise(msg.Body), "\n")
	content := joinContent(utils.Normalize(msg.Subject), utils.Normalize(msg.Body))
	fields := classify.ExtractFields(lines, content, now)

	missing := classify.MissingFields(fields)
	switch {
	case len(missing) > 1:
		o := outcome{trust: OutcomeSilence, result: ResultSilence, category: "MISSING_FIELDS"}
		if err := p.conclude(ctx, rec, EventSubmit, s, o, now); err != nil {
			return nil, err
		}
		return silence(EventSubmit, ReasonTooManyMissing), nil
	case len(missing) == 1:
		d := &Decision{
			Kind:         EventSubmit,
			Action:       ActionClarification,
			Reason:       ReasonMissingField,
			MissingField: missing[0],
			Fields:       &fields,
		}
		return p.clarify(ctx, rec, EventSubmit, s, missing[0], fields.Category, d, now)
	}

	relevance := classify.ClassifyRelevance(content)
	switch relevance {
	case classify.RelevanceNone:
		o := outcome{trust: OutcomeRejected, result: ResultRejected, category: "NO_RELEVANCE"}
		if err := p.conclude(ctx, rec, EventSubmit, s, o, now); err != nil {
			return nil, err
		}
		return &Decision{Kind: EventSubmit, Action: ActionRejected, Reason: ReasonNotRelevant, Relevance: relevance}, nil
	case classify.RelevanceUnclear:
		d := &Decision{
			Kind:         EventSubmit,
			Action:       ActionClarification,
			Reason:       ReasonRelevanceUnclear,
			MissingField: classify.FieldRelevance,
			Fields:       &fields,
			Relevance:    relevance,
		}
		return p.clarify(ctx, rec, EventSubmit, s, classify.FieldRelevance, "RELEVANCE", d, now)
	}

	exists, err := p.store.OpportunityExists(ctx, fields.Organisation, fields.Title, fields.ValidityStart)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check duplicate: %w", ErrStore, err)
	}
	if exists {
		o := outcome{trust: OutcomeDuplicate, result: ResultDuplicate, category: fields.Category}
		if err := p.conclude(ctx, rec, EventSubmit, s, o, now); err != nil {
			return nil, err
		}
		return &Decision{Kind: EventSubmit, Action: ActionDuplicate, Reason: ReasonDuplicate, Fields: &fields}, nil
	}

	orgType := classify.ClassifyOrgType(fields.Organisation, content)
	opp := &Opportunity{
		Fields:      fields,
		OrgType:     orgType,
		Relevance:   relevance,
		Status:      StatusActive,
		Fingerprint: Fingerprint(fields),
		CreatedAt:   now,
	}
	id, err := p.store.CreateOpportunity(ctx, opp)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create opportunity: %w", ErrStore, err)
	}

	o := outcome{trust: OutcomeAccepted, result: ResultAccepted, category: fields.Category}
	if err := p.conclude(ctx, rec, EventSubmit, s, o, now); err != nil {
		return nil, err
	}
	return &Decision{
		Kind:          EventSubmit,
		Action:        ActionAccepted,
		Reason:        ReasonAccepted,
		OpportunityID: id,
		Fields:        &fields,
		Relevance:     relevance,
		OrgType:       orgType,
	}, nil
}

func joinContent(subject, body string) string {
	return strings.TrimSpace(subject + " " + body)
}

// Service is the entry point used by transport adapters. It reads a fresh
// settings snapshot for every message.
type Service struct {
	pipeline *Pipeline
	config   ConfigStore
	observer DecisionObserver
	logger   *zap.Logger
}

// NewService creates a new service
func NewService(pipeline *Pipeline, config ConfigStore, observer DecisionObserver, logger *zap.Logger) *Service {
	return &Service{
		pipeline: pipeline,
		config:   config,
		observer: observer,
		logger:   logger,
	}
}

// LoadSettings reads the live flags into a snapshot
func (s *Service) LoadSettings(ctx context.Context) (Settings, error) {
	flags, err := s.config.LoadFlags(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: failed to load settings: %w", ErrStore, err)
	}
	return SettingsFromFlags(flags), nil
}

// HandleQuery resolves a message sent to the ASK inbox
func (s *Service) HandleQuery(ctx context.Context, sender, subject, body string) (*Decision, error) {
	return s.handle(ctx, EventAsk, &Email{From: sender, Subject: subject, Body: body})
}

// HandleSubmission resolves a message sent to the SUBMIT inbox
func (s *Service) HandleSubmission(ctx context.Context, sender, subject, body string) (*Decision, error) {
	return s.handle(ctx, EventSubmit, &Email{From: sender, Subject: subject, Body: body})
}

// HandleEmail resolves a parsed email for the given inbox
func (s *Service) HandleEmail(ctx context.Context, kind EventKind, msg *Email) (*Decision, error) {
	return s.handle(ctx, kind, msg)
}

func (s *Service) handle(ctx context.Context, kind EventKind, msg *Email) (*Decision, error) {
	start := time.Now()
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}

	var d *Decision
	switch kind {
	case EventAsk:
		d, err = s.pipeline.ResolveQuery(ctx, settings, msg)
	case EventSubmit:
		d, err = s.pipeline.ResolveSubmission(ctx, settings, msg)
	default:
		return nil, fmt.Errorf("unsupported inbox kind: %s", kind)
	}
	if err != nil {
		s.logger.Error("Failed to resolve message",
			zap.String("kind", string(kind)),
			zap.String("sender_hash", HashAddress(msg.From)),
			zap.Error(err))
		return nil, err
	}

	d.Reference = uuid.NewString()
	if s.observer != nil {
		s.observer.ObserveDecision(kind, d, time.Since(start))
	}
	s.logger.Info("Resolved message",
		zap.String("kind", string(kind)),
		zap.String("sender_hash", HashAddress(msg.From)),
		zap.String("action", string(d.Action)),
		zap.String("reason", string(d.Reason)),
		zap.String("reference", d.Reference))
	return d, nil
}

// WithClock replaces the time source, for tests and replays
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}
