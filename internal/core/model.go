package core

import (
	"time"

	"github.com/captvenkat/faujnet-backend/internal/classify"
)

// Email represents an inbound email message
type Email struct {
	MessageID string
	From      string
	To        []string
	Subject   string
	Body      string
	Headers   map[string][]string
}

// EventKind identifies the inbox a message arrived on
type EventKind string

const (
	EventAsk    EventKind = "ASK"
	EventSubmit EventKind = "SUBMIT"
)

// Outcome is the trust-relevant result of processing one message
type Outcome string

const (
	OutcomeReplySent     Outcome = "REPLY_SENT"
	OutcomeSilence       Outcome = "SILENCE"
	OutcomeClarification Outcome = "CLARIFICATION"
	OutcomeAccepted      Outcome = "ACCEPTED"
	OutcomeDuplicate     Outcome = "DUPLICATE"
	OutcomeRejected      Outcome = "REJECTED"
	OutcomeRateLimited   Outcome = "RATE_LIMITED"
	OutcomeShadowBanned  Outcome = "SHADOW_BANNED"
)

// SenderRecord is the pseudonymous reputation record of one sender address
type SenderRecord struct {
	Hash                string
	Domain              string
	TrustScore          int
	TotalSubmissions    int
	AcceptedSubmissions int
	RejectedSubmissions int
	TotalQueries        int
	InvalidQueries      int
	FirstSeen           time.Time
	LastSeen            time.Time
	ShadowBanned        bool
}

// CounterDelta holds the counter increments applied with a trust update
type CounterDelta struct {
	Queries        int
	InvalidQueries int
	Submissions    int
	Accepted       int
	Rejected       int
}

// TrustUpdate is applied by the store as a single atomic statement
type TrustUpdate struct {
	Hash      string
	Delta     int
	Threshold int
	Counters  CounterDelta
	At        time.Time
}

// EventKey identifies one aggregate bucket
type EventKey struct {
	// Day is the bucket label stored in day_bucket: YYYY-MM-DD for outcome
	// buckets, YYYY-MM-DDTHH for sender admission buckets.
	Day        string
	EventType  string
	ResultType string
	Category   string
}

// EventAggregate is a per-day counter bucket
type EventAggregate struct {
	EventKey
	Count     int
	CreatedAt time.Time
}

// Result types recorded in the event log.
const (
	ResultSilence       = "SILENCE"
	ResultClarification = "CLARIFICATION_SENT"
	ResultConflict      = "CONFLICT_DETECTED"
	ResultReplySent     = "REPLY_SENT"
	ResultAccepted      = "ACCEPTED"
	ResultDuplicate     = "DUPLICATE"
	ResultRejected      = "REJECTED"
	ResultAdmitted      = "ADMITTED"
)

// LookupResult is one record returned to an ASK query
type LookupResult struct {
	ID        int64
	Title     string
	Authority string
	Detail    string
	Status    string
	IssuedOn  string
}

// Lookup statuses.
const (
	StatusActive   = "ACTIVE"
	StatusConflict = "CONFLICT"
	StatusExpired  = "EXPIRED"
)

// Opportunity is an accepted submission
type Opportunity struct {
	ID          int64
	Fields      classify.SubmissionFields
	OrgType     classify.OrgType
	Relevance   classify.Relevance
	Status      string
	Fingerprint string
	CreatedAt   time.Time
}

// ConfigFlag is a live operator-controlled setting
type ConfigFlag struct {
	Key         string
	Value       string
	Enabled     bool
	Description string
	UpdatedAt   time.Time
}

// TrustStats summarises sender reputation without exposing identities
type TrustStats struct {
	Senders      int
	ShadowBanned int
	AverageScore float64
}
