package core

import (
	"github.com/captvenkat/faujnet-backend/internal/classify"
)

// Action is the terminal action of a Decision
type Action string

const (
	ActionSilence       Action = "SILENCE"
	ActionClarification Action = "CLARIFICATION"
	ActionResponse      Action = "RESPONSE"
	ActionAccepted      Action = "ACCEPTED"
	ActionNoMatch       Action = "NO_MATCH"
	ActionConflict      Action = "CONFLICT"
	ActionDuplicate     Action = "DUPLICATE"
	ActionRejected      Action = "REJECTED"
)

// Reason explains why a Decision was reached
type Reason string

const (
	ReasonBotDisabled         Reason = "BOT_DISABLED"
	ReasonSafeMode            Reason = "SAFE_MODE"
	ReasonShadowBanned        Reason = "SHADOW_BANNED"
	ReasonRateLimited         Reason = "RATE_LIMITED"
	ReasonInvalidQuery        Reason = "INVALID_QUERY"
	ReasonTooManyMissing      Reason = "TOO_MANY_MISSING_FIELDS"
	ReasonClarificationRepeat Reason = "CLARIFICATION_ALREADY_SENT"
	ReasonMissingField        Reason = "MISSING_FIELD"
	ReasonRelevanceUnclear    Reason = "RELEVANCE_UNCLEAR"
	ReasonNotRelevant         Reason = "NOT_MILITARY_RELEVANT"
	ReasonResultsFound        Reason = "RESULTS_FOUND"
	ReasonNoResults           Reason = "NO_RESULTS"
	ReasonConflictingSources  Reason = "CONFLICTING_SOURCES"
	ReasonDuplicate           Reason = "DUPLICATE_SUBMISSION"
	ReasonAccepted            Reason = "ACCEPTED"
)

// Decision is the single terminal result for one inbound message. It carries
// only what a reply renderer needs.
type Decision struct {
	Kind          EventKind
	Action        Action
	Reason        Reason
	Reference     string
	MissingField  string
	QueryType     classify.QueryType
	Params        classify.QueryParams
	Results       []LookupResult
	OpportunityID int64
	Fields        *classify.SubmissionFields
	Relevance     classify.Relevance
	OrgType       classify.OrgType
}

// IsSilent reports whether the Decision produces no reply
func (d *Decision) IsSilent() bool {
	return d.Action == ActionSilence
}

func silence(kind EventKind, reason Reason) *Decision {
	return &Decision{Kind: kind, Action: ActionSilence, Reason: reason}
}
