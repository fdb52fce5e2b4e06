package pipeline

import (
	"sort"

	"github.com/ppiankov/truthgate/internal/llm"
	"github.com/ppiankov/truthgate/internal/model"
	"go.uber.org/zap"
)

// DefaultAgents maps each agent to the connectors it reads
func DefaultAgents() map[string][]string {
	return map[string][]string{
		"clinical":         {"clinicaltrials.gov", "pubmed"},
		"regulatory":       {"openfda", "clinicaltrials.gov"},
		"web_intelligence": {"pubmed", "openfda", "clinicaltrials.gov", "web"},
	}
}

// selectAgents returns the requested known agents in request order,
// falling back to the configured list
func (p *Pipeline) selectAgents(req model.Request) []string {
	requested := req.Agents
	if len(requested) == 0 {
		requested = p.cfg.Pipeline.Agents
	}

	seen := map[string]bool{}
	var agents []string
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := p.agents[name]; !ok {
			zap.L().Warn("unknown agent ignored", zap.String("agent", name))
			continue
		}
		agents = append(agents, name)
	}
	return agents
}

// mergeClaims combines the claim tables of all agents. A claim seen by
// several agents keeps the weaker status. Grounded claims come only from
// agents that did not abstain and carry that agent's records.
func mergeClaims(agents []string, results map[string]*model.AgentResult) (map[string]model.VerificationStatus, []llm.GroundedClaim) {
	statuses := map[string]model.VerificationStatus{}
	for _, agent := range agents {
		r := results[agent]
		if r == nil {
			continue
		}
		for _, c := range r.Claims {
			if prev, ok := statuses[c.ClaimID]; ok {
				statuses[c.ClaimID] = model.Weaker(prev, c.VerificationStatus)
			} else {
				statuses[c.ClaimID] = c.VerificationStatus
			}
		}
	}

	byID := map[string]*llm.GroundedClaim{}
	for _, agent := range agents {
		r := results[agent]
		if r == nil || r.Abstained {
			continue
		}
		for _, c := range r.Claims {
			gc, ok := byID[c.ClaimID]
			if !ok {
				claim := c
				claim.VerificationStatus = statuses[c.ClaimID]
				gc = &llm.GroundedClaim{Claim: claim}
				byID[c.ClaimID] = gc
			}
			for _, idx := range c.Evidence {
				if idx >= 0 && idx < len(r.Evidence) {
					gc.Records = append(gc.Records, r.Evidence[idx])
				}
			}
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	grounded := make([]llm.GroundedClaim, 0, len(ids))
	for _, id := range ids {
		grounded = append(grounded, *byID[id])
	}
	return statuses, grounded
}
