package model

import "time"

// EvidenceRecord is one normalized piece of evidence for one claim
type EvidenceRecord struct {
	ClaimID   string        `json:"claim_id"`
	ClaimText string        `json:"claim_text"`
	Category  ClaimCategory `json:"category"`
	Source    Source        `json:"source"`
	Retrieval Retrieval     `json:"retrieval"`
	Quality   Quality       `json:"quality"`
}

// Source identifies where a record came from
type Source struct {
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	DocumentID  string     `json:"document_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Retrieval describes the fetch that produced a record
type Retrieval struct {
	FetchedAt time.Time `json:"fetched_at"`
	Query     string    `json:"query"`
	Snippet   string    `json:"snippet"`
	Hash      string    `json:"hash"` // sha256 of the normalized snippet
}

// Quality is derived by the scorer and the aggregator, never by connectors
type Quality struct {
	SourceTier         SourceTier         `json:"source_tier"`
	Confidence         float64            `json:"confidence"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	FreshnessHours     float64            `json:"freshness_hours"`
	Stale              bool               `json:"stale"`
}

// Reference returns the publication time if known, otherwise the fetch time
func (r EvidenceRecord) Reference() time.Time {
	if r.Source.PublishedAt != nil && !r.Source.PublishedAt.IsZero() {
		return *r.Source.PublishedAt
	}
	return r.Retrieval.FetchedAt
}

// SourceTier is the trust class of a source
type SourceTier string

const (
	TierOfficial     SourceTier = "official"
	TierPeerReviewed SourceTier = "peer-reviewed"
	TierNews         SourceTier = "news"
	TierOther        SourceTier = "other"
)

// Rank orders tiers: official(4) > peer-reviewed(3) > news(2) > other(1)
func (t SourceTier) Rank() int {
	switch t {
	case TierOfficial:
		return 4
	case TierPeerReviewed:
		return 3
	case TierNews:
		return 2
	case TierOther:
		return 1
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers
func (t SourceTier) Valid() bool {
	return t.Rank() > 0
}

// AtLeast reports whether t ranks at or above other
func (t SourceTier) AtLeast(other SourceTier) bool {
	return t.Rank() >= other.Rank()
}

// VerificationStatus is the support level of a claim or record
type VerificationStatus string

const (
	StatusVerified          VerificationStatus = "verified"
	StatusPartiallyVerified VerificationStatus = "partially_verified"
	StatusUnverified        VerificationStatus = "unverified"
	StatusConflicting       VerificationStatus = "conflicting"
)

// Strength orders statuses for merging. Conflicting is the weakest.
func (s VerificationStatus) Strength() int {
	switch s {
	case StatusVerified:
		return 3
	case StatusPartiallyVerified:
		return 2
	case StatusUnverified:
		return 1
	default:
		return 0
	}
}

// Supported reports whether the status allows a claim into a narrative
func (s VerificationStatus) Supported() bool {
	return s == StatusVerified || s == StatusPartiallyVerified
}

// Weaker returns the weaker of two statuses
func Weaker(a, b VerificationStatus) VerificationStatus {
	if b.Strength() < a.Strength() {
		return b
	}
	return a
}
