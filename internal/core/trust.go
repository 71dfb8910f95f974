package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/whitelist"
)

const (
	minTrustScore     = 0
	maxTrustScore     = 100
	defaultTrustScore = maxTrustScore
	unknownDomain     = "unknown"
)

type trustDelta struct {
	kind    EventKind
	outcome Outcome
	delta   int
}

// trustDeltas is the reputation table. Pairs not listed apply no delta.
var trustDeltas = []trustDelta{
	{EventAsk, OutcomeReplySent, 2},
	{EventAsk, OutcomeSilence, -5},
	{EventAsk, OutcomeClarification, 1},
	{EventAsk, OutcomeRateLimited, -3},
	{EventSubmit, OutcomeAccepted, 5},
	{EventSubmit, OutcomeSilence, -10},
	{EventSubmit, OutcomeRejected, -10},
	{EventSubmit, OutcomeDuplicate, -2},
	{EventSubmit, OutcomeRateLimited, -3},
}

// TrustDelta looks up the score change for an outcome
func TrustDelta(kind EventKind, outcome Outcome) int {
	for _, d := range trustDeltas {
		if d.kind == kind && d.outcome == outcome {
			return d.delta
		}
	}
	return 0
}

// Counters returns the counter increments for an outcome
func Counters(kind EventKind, outcome Outcome) CounterDelta {
	var c CounterDelta
	switch kind {
	case EventAsk:
		c.Queries = 1
		if outcome == OutcomeSilence {
			c.InvalidQueries = 1
		}
	case EventSubmit:
		c.Submissions = 1
		switch outcome {
		case OutcomeAccepted:
			c.Accepted = 1
		case OutcomeClarification, OutcomeShadowBanned:
		default:
			c.Rejected = 1
		}
	}
	return c
}

// HashAddress returns the pseudonymous identity of a sender address
func HashAddress(address string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return hex.EncodeToString(sum[:])
}

// IsBanned combines the sticky ban flag with the live score threshold
func IsBanned(rec *SenderRecord, s Settings) bool {
	return rec.ShadowBanned || rec.TrustScore < s.BanThreshold
}

// ClampScore bounds a score to the valid range
func ClampScore(score int) int {
	return max(minTrustScore, min(maxTrustScore, score))
}

// TrustEngine maps senders to reputation records and applies outcomes
type TrustEngine struct {
	store  SenderStore
	logger *zap.Logger
}

// NewTrustEngine creates a new trust engine
func NewTrustEngine(store SenderStore, logger *zap.Logger) *TrustEngine {
	return &TrustEngine{
		store:  store,
		logger: logger,
	}
}

// Identify returns the record for an address, creating it on first contact
func (t *TrustEngine) Identify(ctx context.Context, address string, now time.Time) (*SenderRecord, error) {
	hash := HashAddress(address)
	domain := whitelist.Domain(address)
	if domain == "" {
		domain = unknownDomain
	}
	if err := t.store.EnsureSender(ctx, hash, domain, now); err != nil {
		return nil, fmt.Errorf("%w: failed to create sender: %w", ErrStore, err)
	}
	rec, err := t.store.GetSender(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sender: %w", ErrStore, err)
	}
	return rec, nil
}

// ApplyOutcome adjusts score, ban flag and counters for one outcome
func (t *TrustEngine) ApplyOutcome(ctx context.Context, hash string, kind EventKind, outcome Outcome, s Settings, now time.Time) error {
	update := TrustUpdate{
		Hash:      hash,
		Delta:     TrustDelta(kind, outcome),
		Threshold: s.BanThreshold,
		Counters:  Counters(kind, outcome),
		At:        now,
	}

	err := t.store.ApplyTrustUpdate(ctx, update)
	if errors.Is(err, ErrSenderNotFound) {
		if err := t.store.EnsureSender(ctx, hash, unknownDomain, now); err != nil {
			return fmt.Errorf("%w: failed to create sender: %w", ErrStore, err)
		}
		err = t.store.ApplyTrustUpdate(ctx, update)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to apply trust update: %w", ErrStore, err)
	}

	t.logger.Debug("Applied trust outcome",
		zap.String("sender_hash", hash),
		zap.String("kind", string(kind)),
		zap.String("outcome", string(outcome)),
		zap.Int("delta", update.Delta))
	return nil
}
