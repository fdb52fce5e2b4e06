// Package abstain decides whether an agent result must withhold an answer.
package abstain

import (
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/normalize"
)

// Policy applies the abstention rules in fixed precedence
type Policy struct {
	critical   map[model.ClaimCategory]bool
	realTime   map[model.ClaimCategory]bool
	minTier    model.SourceTier
	prefixes   []string
	definitive []string
}

// NewPolicy builds a policy from config
func NewPolicy(cfg model.AbstentionConfig) *Policy {
	p := &Policy{
		critical:   make(map[model.ClaimCategory]bool),
		realTime:   make(map[model.ClaimCategory]bool),
		minTier:    model.SourceTier(strings.ToLower(cfg.MinCriticalTier)),
		prefixes:   cfg.DefinitivePrefixes,
		definitive: cfg.DefinitiveTerms,
	}
	for _, c := range cfg.CriticalCategories {
		p.critical[model.ClaimCategory(c)] = true
	}
	for _, c := range cfg.RealTimeCategories {
		p.realTime[model.ClaimCategory(c)] = true
	}
	if !p.minTier.Valid() {
		p.minTier = model.TierPeerReviewed
	}
	return p
}

// Annotate returns a copy of claims with Critical and RealTime set for req
func (p *Policy) Annotate(claims []model.Claim, req model.Request) []model.Claim {
	critical := toSet(req.CriticalClaims)
	realTime := toSet(req.RealTimeClaims)

	out := make([]model.Claim, len(claims))
	for i, c := range claims {
		c.Critical = p.critical[c.Category] || critical[c.ClaimID]
		c.RealTime = req.RealTime || p.realTime[c.Category] || realTime[c.ClaimID]
		out[i] = c
	}
	return out
}

// Definitive reports whether the request expects a definitive answer
func (p *Policy) Definitive(req model.Request) bool {
	switch strings.ToLower(req.Framing) {
	case model.FramingDefinitive:
		return true
	case model.FramingExploratory:
		return false
	}

	q := strings.ToLower(strings.TrimSpace(req.Query))
	if q == "" {
		return false
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	for _, term := range p.definitive {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

// Decide returns the first abstention reason that applies, or nil.
// claims must be annotated; evidence indexes refer to records.
func (p *Policy) Decide(records []model.EvidenceRecord, claims []model.Claim, req model.Request) *model.AbstainReason {
	if len(records) == 0 {
		return reason(model.ReasonNoEvidence)
	}

	for _, c := range claims {
		if c.Critical && !p.trusted(records, c) {
			return reason(model.ReasonInsufficientTrust)
		}
	}

	if p.Definitive(req) {
		for _, c := range claims {
			if c.VerificationStatus == model.StatusConflicting {
				return reason(model.ReasonConflictingEvidence)
			}
		}
	}

	for _, c := range claims {
		if c.RealTime && len(c.Evidence) > 0 && allStale(records, c) {
			return reason(model.ReasonEvidenceStale)
		}
	}

	return nil
}

// trusted reports whether any record of c reaches the minimum critical tier
func (p *Policy) trusted(records []model.EvidenceRecord, c model.Claim) bool {
	for _, i := range c.Evidence {
		if records[i].Quality.SourceTier.AtLeast(p.minTier) {
			return true
		}
	}
	return false
}

func allStale(records []model.EvidenceRecord, c model.Claim) bool {
	for _, i := range c.Evidence {
		if !records[i].Quality.Stale {
			return false
		}
	}
	return true
}

func reason(r model.AbstainReason) *model.AbstainReason {
	return &r
}

// toSet canonicalizes request claim ids the way hit claim keys are
func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = normalize.CanonicalClaimID(id); id != "" {
			set[id] = true
		}
	}
	return set
}
