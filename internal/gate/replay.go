package gate

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
)

// Replay is a narrative and claim table checked outside a request, as
// accepted by the gate command and the HTTP API
type Replay struct {
	Narrative string        `json:"narrative"`
	Claims    []model.Claim `json:"claims"`
	// Included defaults to every claim in Claims
	Included []string `json:"included,omitempty"`
}

// Table builds the gate table. A claim listed twice keeps the weaker status.
func (r Replay) Table() Table {
	statuses := make(map[string]model.VerificationStatus, len(r.Claims))
	for _, c := range r.Claims {
		id := strings.ToLower(strings.TrimSpace(c.ClaimID))
		if id == "" {
			continue
		}
		if prev, ok := statuses[id]; ok {
			statuses[id] = model.Weaker(prev, c.VerificationStatus)
		} else {
			statuses[id] = c.VerificationStatus
		}
	}

	var included []string
	if len(r.Included) > 0 {
		for _, id := range r.Included {
			included = append(included, strings.ToLower(strings.TrimSpace(id)))
		}
	} else {
		for id := range statuses {
			included = append(included, id)
		}
	}
	sort.Strings(included)
	return Table{Statuses: statuses, Included: included}
}

// Run checks the narrative against the table
func (r Replay) Run() Result {
	return Check(r.Narrative, r.Table())
}

// ParseClaims reads a claim table from either a JSON array of claims or a
// full research response, whose agent claim tables are merged
func ParseClaims(data []byte) ([]model.Claim, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, eris.New("gate: empty claim table")
	}

	if data[0] == '[' {
		var claims []model.Claim
		if err := json.Unmarshal(data, &claims); err != nil {
			return nil, eris.Wrap(err, "gate: decode claims")
		}
		return claims, nil
	}

	var resp model.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "gate: decode response")
	}
	agents := make([]string, 0, len(resp.Results))
	for agent := range resp.Results {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	var claims []model.Claim
	for _, agent := range agents {
		if r := resp.Results[agent]; r != nil {
			claims = append(claims, r.Claims...)
		}
	}
	return claims, nil
}
