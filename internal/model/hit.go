package model

import (
	"strings"
	"time"
)

// RawHit is a connector result before normalization
type RawHit struct {
	SourceName  string        `json:"source_name"`
	URL         string        `json:"url"`
	DocumentID  string        `json:"document_id,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Query       string        `json:"query"`
	Snippet     string        `json:"snippet"`
	ClaimKey    string        `json:"claim_key"`
	ClaimText   string        `json:"claim_text,omitempty"`
	Category    ClaimCategory `json:"category"`
}

// Request is a research request for one molecule
type Request struct {
	Molecule string `json:"molecule"`
	Query    string `json:"query,omitempty"`
	// Framing is "definitive" or "exploratory"; inferred from Query when empty
	Framing        string   `json:"framing,omitempty"`
	RealTime       bool     `json:"real_time,omitempty"`
	CriticalClaims []string `json:"critical_claims,omitempty"`
	RealTimeClaims []string `json:"real_time_claims,omitempty"`
	Agents         []string `json:"agents,omitempty"`
}

const (
	FramingDefinitive  = "definitive"
	FramingExploratory = "exploratory"
)

// SearchTerm is what connectors search for and topic keys are built from.
// It is always the molecule; Query only shapes framing and the prompt.
func (r Request) SearchTerm() string {
	return strings.TrimSpace(r.Molecule)
}
