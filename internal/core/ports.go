package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSenderNotFound is returned when a trust update targets an unknown sender
	ErrSenderNotFound = errors.New("sender not found")
	// ErrStore marks a storage failure; no decision can be reached
	ErrStore = errors.New("store failure")
)

// SenderStore persists sender reputation records
type SenderStore interface {
	// EnsureSender creates a record with defaults, doing nothing if it exists
	EnsureSender(ctx context.Context, hash, domain string, at time.Time) error

	// GetSender reads a sender record
	GetSender(ctx context.Context, hash string) (*SenderRecord, error)

	// ApplyTrustUpdate clamps, bans and counts in one atomic statement
	ApplyTrustUpdate(ctx context.Context, update TrustUpdate) error
}

// EventStore persists daily aggregate buckets
type EventStore interface {
	// IncrementEvent creates the bucket or adds one to it
	IncrementEvent(ctx context.Context, key EventKey, at time.Time) error

	// SumEvents totals buckets of a category created after since
	SumEvents(ctx context.Context, category string, since time.Time) (int, error)

	// EventCount returns the count of one bucket, zero if absent
	EventCount(ctx context.Context, key EventKey) (int, error)
}

// RegistryStore holds official rules and submitted opportunities
type RegistryStore interface {
	FindOfficialRules(ctx context.Context, service string, limit int) ([]LookupResult, error)
	FindOpportunities(ctx context.Context, category, today string, limit int) ([]LookupResult, error)
	OpportunityExists(ctx context.Context, organisation, title, validityStart string) (bool, error)
	CreateOpportunity(ctx context.Context, opp *Opportunity) (int64, error)
}

// ConfigStore holds live configuration flags
type ConfigStore interface {
	LoadFlags(ctx context.Context) ([]ConfigFlag, error)
	SeedFlags(ctx context.Context, flags []ConfigFlag) error
	SetFlagEnabled(ctx context.Context, key string, enabled bool, at time.Time) error
}

// StatsStore exposes aggregate, non-identifying statistics
type StatsStore interface {
	DailyStats(ctx context.Context, day string) ([]EventAggregate, error)
	TrustStats(ctx context.Context) (*TrustStats, error)
}

// Store is the full persistence collaborator
type Store interface {
	SenderStore
	EventStore
	RegistryStore
	ConfigStore
	StatsStore

	// Stop releases resources held by the store
	Stop()
}

// DecisionObserver receives one observation per resolved message
type DecisionObserver interface {
	ObserveDecision(kind EventKind, d *Decision, elapsed time.Duration)
}
