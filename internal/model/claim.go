package model

// Claim is the unit of verification, grouping every record sharing a claim id
type Claim struct {
	ClaimID            string             `json:"claim_id"`
	ClaimText          string             `json:"claim_text"`
	Category           ClaimCategory      `json:"category"`
	Evidence           []int              `json:"evidence"` // indexes into AgentResult.Evidence
	VerificationStatus VerificationStatus `json:"verification_status"`
	SupportCount       int                `json:"support_count"` // independent sources in the support set
	Critical           bool               `json:"critical,omitempty"`
	RealTime           bool               `json:"real_time,omitempty"`
	Stale              bool               `json:"stale,omitempty"` // every record past its SLA
	TieBreak           *TieBreak          `json:"tie_break,omitempty"`
}

// ClaimCategory selects the freshness SLA of a claim
type ClaimCategory string

const (
	CategoryRegulatory  ClaimCategory = "regulatory"
	CategoryNews        ClaimCategory = "news"
	CategoryPublication ClaimCategory = "publication"
	CategoryTrial       ClaimCategory = "trial"
)

// TieBreakRule names the rule that resolved a conflict
type TieBreakRule string

const (
	TieBreakTier       TieBreakRule = "source_tier"
	TieBreakConfidence TieBreakRule = "aggregate_confidence"
)

// TieBreak records how a conflict was resolved
type TieBreak struct {
	Rule        TieBreakRule `json:"rule"`
	WinnerValue string       `json:"winner_value"`
	LoserValues []string     `json:"loser_values"`
}
