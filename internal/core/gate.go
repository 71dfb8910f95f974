package core

import (
	"context"
	"fmt"
	"time"
)

const (
	rateWindow     = time.Hour
	dayLayout      = "2006-01-02"
	hourLayout     = "2006-01-02T15"
	senderCategory = "sender:"
	clarifyPrefix  = "clarify:"
)

// Admission is the result of the rate/ban gate
type Admission struct {
	Allowed bool
	Outcome Outcome
	Reason  Reason
}

// Gate admits or denies a sender before any content is processed
type Gate struct {
	events EventStore
}

// NewGate creates a new rate/ban gate
func NewGate(events EventStore) *Gate {
	return &Gate{events: events}
}

// SenderWindowCategory is the event category counting admitted messages
// of one sender.
func SenderWindowCategory(hash string) string {
	return senderCategory + hash
}

// Admit checks the ban predicate first, then the hourly ceiling. Admissions
// are counted in hour buckets and the window sums buckets first seen within
// the trailing hour, so a burst straddling a bucket boundary can be over- or
// under-counted.
func (g *Gate) Admit(ctx context.Context, rec *SenderRecord, kind EventKind, s Settings, now time.Time) (Admission, error) {
	if IsBanned(rec, s) {
		return Admission{Outcome: OutcomeShadowBanned, Reason: ReasonShadowBanned}, nil
	}

	category := SenderWindowCategory(rec.Hash)
	count, err := g.events.SumEvents(ctx, category, now.Add(-rateWindow))
	if err != nil {
		return Admission{}, fmt.Errorf("%w: failed to read rate window: %w", ErrStore, err)
	}
	if count >= s.RateLimitPerHour {
		return Admission{Outcome: OutcomeRateLimited, Reason: ReasonRateLimited}, nil
	}

	key := EventKey{
		Day:        now.UTC().Format(hourLayout),
		EventType:  string(kind),
		ResultType: ResultAdmitted,
		Category:   category,
	}
	if err := g.events.IncrementEvent(ctx, key, now); err != nil {
		return Admission{}, fmt.Errorf("%w: failed to record admission: %w", ErrStore, err)
	}
	return Admission{Allowed: true}, nil
}
