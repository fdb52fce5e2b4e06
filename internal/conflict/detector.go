// Package conflict finds contradictory evidence within a claim and applies
// the tier-then-confidence tie-break.
package conflict

import (
	"fmt"
	"sort"

	"github.com/ppiankov/truthgate/internal/model"
)

// confidenceEpsilon bounds float noise when comparing aggregate confidence
const confidenceEpsilon = 1e-6

// Cluster is a set of records asserting compatible values
type Cluster struct {
	Value      string  `json:"value"`
	Members    []int   `json:"members"` // indexes into the evaluated record slice
	BestRank   int     `json:"best_rank"`
	Confidence float64 `json:"confidence"` // summed record confidence
}

// Outcome is the conflict analysis of one claim
type Outcome struct {
	ClaimID  string
	Clusters []Cluster // sorted by Value
	Neutral  []int     // records without a comparable value
	Conflict bool
	Resolved bool
	Winner   int // cluster index, -1 when there is no winner
	TieBreak *model.TieBreak
}

// Support returns the record indexes that support the claim.
// With an unresolved conflict there is no support set.
func (o *Outcome) Support() []int {
	var out []int
	switch {
	case !o.Conflict:
		for _, c := range o.Clusters {
			out = append(out, c.Members...)
		}
		out = append(out, o.Neutral...)
	case o.Resolved:
		out = append(out, o.Clusters[o.Winner].Members...)
		out = append(out, o.Neutral...)
	}
	sort.Ints(out)
	return out
}

// Losers returns the record indexes in losing clusters
func (o *Outcome) Losers() []int {
	var out []int
	if !o.Conflict {
		return out
	}
	for i, c := range o.Clusters {
		if o.Resolved && i == o.Winner {
			continue
		}
		out = append(out, c.Members...)
	}
	sort.Ints(out)
	return out
}

// Detector runs conflict detection over scored records
type Detector struct{}

// NewDetector creates a detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect analyzes every claim in records. records must already be scored.
// The result is keyed by claim id and does not depend on record order.
func (d *Detector) Detect(records []model.EvidenceRecord) (map[string]*Outcome, []model.Signal) {
	groups := make(map[string][]int)
	for i, rec := range records {
		groups[rec.ClaimID] = append(groups[rec.ClaimID], i)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	outcomes := make(map[string]*Outcome, len(groups))
	var signals []model.Signal
	for _, id := range ids {
		o := d.detectClaim(id, records, groups[id])
		outcomes[id] = o
		if o.Conflict {
			signals = append(signals, conflictSignal(o))
		}
	}
	return outcomes, signals
}

func (d *Detector) detectClaim(claimID string, records []model.EvidenceRecord, idx []int) *Outcome {
	values := make(map[int]Value, len(idx))
	categorical := false
	for _, i := range idx {
		v := ParseValue(records[i].ClaimText)
		values[i] = v
		if v.Kind == KindCategorical {
			categorical = true
		}
	}

	o := &Outcome{ClaimID: claimID, Winner: -1}
	if categorical {
		o.Clusters, o.Neutral = categoricalClusters(records, idx, values)
	} else {
		o.Clusters, o.Neutral = numericClusters(records, idx, values)
	}

	if len(o.Clusters) < 2 {
		if len(o.Clusters) == 1 {
			o.Winner = 0
		}
		o.Resolved = true
		return o
	}

	o.Conflict = true
	o.Winner, o.TieBreak = tieBreak(o.Clusters)
	o.Resolved = o.Winner >= 0
	return o
}

func categoricalClusters(records []model.EvidenceRecord, idx []int, values map[int]Value) ([]Cluster, []int) {
	byLabel := make(map[string][]int)
	var neutral []int
	for _, i := range idx {
		if values[i].Kind != KindCategorical {
			neutral = append(neutral, i)
			continue
		}
		byLabel[values[i].Label] = append(byLabel[values[i].Label], i)
	}

	clusters := make([]Cluster, 0, len(byLabel))
	for label, members := range byLabel {
		clusters = append(clusters, newCluster(label, members, records))
	}
	sortClusters(clusters)
	sort.Ints(neutral)
	return clusters, neutral
}

func numericClusters(records []model.EvidenceRecord, idx []int, values map[int]Value) ([]Cluster, []int) {
	// The unit with the most records is compared; others are neutral
	byUnit := make(map[string][]int)
	for _, i := range idx {
		if values[i].Kind == KindNumeric {
			byUnit[values[i].Unit] = append(byUnit[values[i].Unit], i)
		}
	}
	unit, best := "", -1
	for u, members := range byUnit {
		if len(members) > best || (len(members) == best && u < unit) {
			unit, best = u, len(members)
		}
	}

	var neutral, members []int
	for _, i := range idx {
		if values[i].Kind == KindNumeric && values[i].Unit == unit {
			members = append(members, i)
		} else {
			neutral = append(neutral, i)
		}
	}
	sort.Ints(neutral)
	sort.Ints(members)
	if len(members) == 0 {
		return nil, neutral
	}

	// Connected components of the overlap graph
	parent := make(map[int]int, len(members))
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, i := range members {
		parent[i] = i
	}
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			if values[members[a]].Overlaps(values[members[b]]) {
				ra, rb := find(members[a]), find(members[b])
				if ra != rb {
					if ra < rb {
						parent[rb] = ra
					} else {
						parent[ra] = rb
					}
				}
			}
		}
	}

	components := make(map[int][]int)
	for _, i := range members {
		r := find(i)
		components[r] = append(components[r], i)
	}

	clusters := make([]Cluster, 0, len(components))
	for _, comp := range components {
		lo, hi := values[comp[0]].Lo, values[comp[0]].Hi
		for _, i := range comp[1:] {
			if values[i].Lo < lo {
				lo = values[i].Lo
			}
			if values[i].Hi > hi {
				hi = values[i].Hi
			}
		}
		clusters = append(clusters, newCluster(formatInterval(lo, hi, unit), comp, records))
	}
	sortClusters(clusters)
	return clusters, neutral
}

func newCluster(value string, members []int, records []model.EvidenceRecord) Cluster {
	sorted := append([]int(nil), members...)
	sort.Ints(sorted)

	confs := make([]float64, 0, len(sorted))
	best := 0
	for _, i := range sorted {
		if r := records[i].Quality.SourceTier.Rank(); r > best {
			best = r
		}
		confs = append(confs, records[i].Quality.Confidence)
	}
	// Summing in sorted order keeps the total independent of input order
	sort.Float64s(confs)
	total := 0.0
	for _, c := range confs {
		total += c
	}

	return Cluster{Value: value, Members: sorted, BestRank: best, Confidence: total}
}

func sortClusters(clusters []Cluster) {
	sort.Slice(clusters, func(a, b int) bool { return clusters[a].Value < clusters[b].Value })
}

// tieBreak picks the cluster with the strictly highest best tier, then the
// strictly highest aggregate confidence. It returns -1 when neither decides.
func tieBreak(clusters []Cluster) (int, *model.TieBreak) {
	topRank := 0
	for _, c := range clusters {
		if c.BestRank > topRank {
			topRank = c.BestRank
		}
	}
	var top []int
	for i, c := range clusters {
		if c.BestRank == topRank {
			top = append(top, i)
		}
	}
	if len(top) == 1 {
		return top[0], newTieBreak(model.TieBreakTier, clusters, top[0])
	}

	winner, bestConf, tied := -1, -1.0, false
	for _, i := range top {
		c := clusters[i].Confidence
		switch {
		case c > bestConf+confidenceEpsilon:
			winner, bestConf, tied = i, c, false
		case c >= bestConf-confidenceEpsilon:
			tied = true
		}
	}
	if tied || winner < 0 {
		return -1, nil
	}
	return winner, newTieBreak(model.TieBreakConfidence, clusters, winner)
}

func newTieBreak(rule model.TieBreakRule, clusters []Cluster, winner int) *model.TieBreak {
	tb := &model.TieBreak{Rule: rule, WinnerValue: clusters[winner].Value}
	for i, c := range clusters {
		if i != winner {
			tb.LoserValues = append(tb.LoserValues, c.Value)
		}
	}
	return tb
}

func conflictSignal(o *Outcome) model.Signal {
	values := make([]string, len(o.Clusters))
	for i, c := range o.Clusters {
		values[i] = c.Value
	}

	sig := model.Signal{
		Type:     model.SignalConflict,
		Severity: model.SeverityCritical,
		Data: map[string]interface{}{
			"claim_id": o.ClaimID,
			"values":   values,
			"formula":  "winner = argmax strictly(best_tier_rank) else argmax strictly(sum(confidence)) else unresolved",
		},
	}
	if o.Resolved {
		sig.Type = model.SignalConflictPolicy
		sig.Severity = model.SeverityWarning
		sig.Description = fmt.Sprintf("Conflict on %s resolved by %s in favor of %q", o.ClaimID, o.TieBreak.Rule, o.TieBreak.WinnerValue)
		sig.Data["rule"] = string(o.TieBreak.Rule)
	} else {
		sig.Description = fmt.Sprintf("Unresolved conflict on %s between %d values", o.ClaimID, len(o.Clusters))
	}
	return sig
}
