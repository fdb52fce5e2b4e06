package model

import "time"

// AgentResult is the evaluated evidence of one agent for one request.
// It is built once; abstention after the gate produces a new copy.
type AgentResult struct {
	Agent               string              `json:"agent"`
	Evidence            []EvidenceRecord    `json:"evidence"`
	Claims              []Claim             `json:"claims"`
	VerificationSummary VerificationSummary `json:"verification_summary"`
	FreshnessSummary    FreshnessSummary    `json:"freshness_summary"`
	Abstained           bool                `json:"abstained"`
	AbstainReason       *AbstainReason      `json:"abstain_reason"`
	Signals             []Signal            `json:"signals,omitempty"`
	Sources             []SourceOutcome     `json:"sources,omitempty"`
}

// WithAbstention returns a copy of r marked abstained with reason.
// A result that already abstained keeps its first reason.
func (r *AgentResult) WithAbstention(reason AbstainReason) *AgentResult {
	cp := *r
	if cp.Abstained && cp.AbstainReason != nil {
		return &cp
	}
	cp.Abstained = true
	cp.AbstainReason = &reason
	return &cp
}

// Claim returns the claim with id, or nil
func (r *AgentResult) Claim(id string) *Claim {
	for i := range r.Claims {
		if r.Claims[i].ClaimID == id {
			return &r.Claims[i]
		}
	}
	return nil
}

// VerificationSummary counts claims by status
type VerificationSummary struct {
	VerifiedCount    int `json:"verified_count"`
	PartialCount     int `json:"partial_count"`
	UnverifiedCount  int `json:"unverified_count"`
	ConflictingCount int `json:"conflicting_count"`
}

// FreshnessSummary describes the recency of an agent's evidence
type FreshnessSummary struct {
	LatestFetchAt *time.Time `json:"latest_fetch_at"`
	MaxAgeHours   float64    `json:"max_age_hours"`
}

// NoEvidenceMaxAge is reported as max_age_hours when there is no evidence
const NoEvidenceMaxAge = 9999

// AbstainReason is the enumerated reason for an abstention
type AbstainReason string

const (
	ReasonNoEvidence           AbstainReason = "no evidence retrieved"
	ReasonInsufficientTrust    AbstainReason = "insufficient source trust"
	ReasonConflictingEvidence  AbstainReason = "conflicting evidence"
	ReasonEvidenceStale        AbstainReason = "evidence stale"
	ReasonUnsupportedNarrative AbstainReason = "unsupported narrative"
	ReasonTimeBudgetExceeded   AbstainReason = "time budget exceeded"
)

// SourceOutcome records what one connector call contributed
type SourceOutcome struct {
	Connector string `json:"connector"`
	Query     string `json:"query"`
	Hits      int    `json:"hits"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // formulas and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalSchemaDrop     SignalType = "schema_drop"
	SignalStaleEvidence  SignalType = "stale_evidence"
	SignalLowTrust       SignalType = "low_trust"
	SignalConflict       SignalType = "conflict"
	SignalConflictPolicy SignalType = "conflict_resolution"
	SignalSourceFailure  SignalType = "source_failure"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Response is the top-level answer to a research request
type Response struct {
	RequestID string                  `json:"request_id"`
	Molecule  string                  `json:"molecule,omitempty"`
	Results   map[string]*AgentResult `json:"results"`
	Summary   Summary                 `json:"summary"`
}

// Summary is the gated narrative
type Summary struct {
	Text              string            `json:"text"`
	SupportedClaimIDs []string          `json:"supported_claim_ids"`
	Abstained         bool              `json:"abstained"`
	AbstainReason     *AbstainReason    `json:"abstain_reason,omitempty"`
	Generator         string            `json:"generator,omitempty"`
	Gate              []SentenceVerdict `json:"gate,omitempty"`
}

// SentenceState is the gate state of one narrative sentence
type SentenceState string

const (
	SentencePending  SentenceState = "pending"
	SentenceCited    SentenceState = "cited"
	SentenceAccepted SentenceState = "accepted"
	SentenceRejected SentenceState = "rejected"
)

// SentenceVerdict is the audit entry for one narrative sentence
type SentenceVerdict struct {
	Index    int           `json:"index"`
	Text     string        `json:"text"`
	State    SentenceState `json:"state"`
	CitedIDs []string      `json:"cited_ids,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}
