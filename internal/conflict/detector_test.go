package conflict

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(claimID, text string, tier model.SourceTier, conf float64, hash string) model.EvidenceRecord {
	return model.EvidenceRecord{
		ClaimID:   claimID,
		ClaimText: text,
		Source:    model.Source{Name: string(tier), URL: "https://example.com/" + hash},
		Retrieval: model.Retrieval{Hash: hash},
		Quality:   model.Quality{SourceTier: tier, Confidence: conf},
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		text string
		want Value
	}{
		{"Drug X approved by FDA in 2023", Value{Kind: KindCategorical, Label: LabelPositive}},
		{"Drug X was not approved", Value{Kind: KindCategorical, Label: LabelNegative}},
		{"FDA rejected the application", Value{Kind: KindCategorical, Label: LabelNegative}},
		{"Clinical hold placed on trial", Value{Kind: KindCategorical, Label: LabelNegative}},
		{"Approved, then withdrawn", Value{}},
		{"Response rate 42%", Value{Kind: KindNumeric, Lo: 42, Hi: 42, Unit: "%"}},
		{"Dose of 10-20 mg daily", Value{Kind: KindNumeric, Lo: 10, Hi: 20, Unit: "mg"}},
		{"between 5 and 7 weeks", Value{Kind: KindNumeric, Lo: 5, Hi: 7, Unit: "week"}},
		{"Enrolled 120 patients", Value{Kind: KindNumeric, Lo: 120, Hi: 120, Unit: "participants"}},
		{"Posted 2024-01-05 without values", Value{}},
		{"Unsafe at high doses", Value{Kind: KindCategorical, Label: LabelNegative}},
		{"", Value{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.text))
		})
	}
}

func TestDetect_NoConflictWhenValuesAgree(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x-approval", "Drug X approved", model.TierOfficial, 0.95, "h1"),
		rec("x-approval", "Drug X approved for adults", model.TierNews, 0.65, "h2"),
		rec("x-approval", "Drug X label updated", model.TierNews, 0.65, "h3"),
	}
	outcomes, signals := NewDetector().Detect(records)
	o := outcomes["x-approval"]
	require.NotNil(t, o)
	assert.False(t, o.Conflict)
	assert.True(t, o.Resolved)
	assert.Equal(t, []int{0, 1, 2}, o.Support())
	assert.Empty(t, signals)
}

func TestDetect_TierTieBreak(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x-approval", "Drug X approved", model.TierOfficial, 0.95, "h1"),
		rec("x-approval", "Drug X rejected", model.TierNews, 0.65, "h2"),
		rec("x-approval", "Drug X rejected again", model.TierNews, 0.65, "h3"),
	}
	outcomes, signals := NewDetector().Detect(records)
	o := outcomes["x-approval"]

	assert.True(t, o.Conflict)
	assert.True(t, o.Resolved)
	require.NotNil(t, o.TieBreak)
	assert.Equal(t, model.TieBreakTier, o.TieBreak.Rule)
	assert.Equal(t, LabelPositive, o.TieBreak.WinnerValue)
	assert.Equal(t, []int{0}, o.Support())
	assert.Equal(t, []int{1, 2}, o.Losers())
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalConflictPolicy, signals[0].Type)
}

func TestDetect_ConfidenceTieBreak(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x-rate", "Response rate 40%", model.TierPeerReviewed, 0.85, "h1"),
		rec("x-rate", "Response rate 40%", model.TierPeerReviewed, 0.5, "h2"),
		rec("x-rate", "Response rate 55%", model.TierPeerReviewed, 0.85, "h3"),
	}
	outcomes, _ := NewDetector().Detect(records)
	o := outcomes["x-rate"]

	assert.True(t, o.Resolved)
	assert.Equal(t, model.TieBreakConfidence, o.TieBreak.Rule)
	assert.Equal(t, "40 %", o.TieBreak.WinnerValue)
}

func TestDetect_UnresolvedConflict(t *testing.T) {
	// Equal tiers and equal aggregate confidence
	records := []model.EvidenceRecord{
		rec("x-approval", "Drug X approved", model.TierNews, 0.65, "h1"),
		rec("x-approval", "Drug X rejected", model.TierNews, 0.65, "h2"),
	}
	outcomes, signals := NewDetector().Detect(records)
	o := outcomes["x-approval"]

	assert.True(t, o.Conflict)
	assert.False(t, o.Resolved)
	assert.Nil(t, o.TieBreak)
	assert.Empty(t, o.Support())
	assert.Equal(t, []int{0, 1}, o.Losers())
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalConflict, signals[0].Type)
}

func TestDetect_OverlappingRangesFormOneCluster(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x-dose", "10-20 mg", model.TierNews, 0.65, "h1"),
		rec("x-dose", "15 mg", model.TierNews, 0.65, "h2"),
		rec("x-dose", "18-30 mg", model.TierNews, 0.65, "h3"),
		rec("x-dose", "Enrolled 300 patients", model.TierNews, 0.65, "h4"),
	}
	outcomes, _ := NewDetector().Detect(records)
	o := outcomes["x-dose"]

	assert.False(t, o.Conflict)
	require.Len(t, o.Clusters, 1)
	assert.Equal(t, "10-30 mg", o.Clusters[0].Value)
	assert.Equal(t, []int{3}, o.Neutral)
}

func TestDetect_NeutralRecordsJoinWinner(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x-approval", "Drug X approved", model.TierOfficial, 0.95, "h1"),
		rec("x-approval", "Drug X rejected", model.TierNews, 0.65, "h2"),
		rec("x-approval", "Drug X label text", model.TierPeerReviewed, 0.85, "h3"),
	}
	outcomes, _ := NewDetector().Detect(records)
	assert.Equal(t, []int{0, 2}, outcomes["x-approval"].Support())
}

func TestDetect_PermutationInvariant(t *testing.T) {
	base := []model.EvidenceRecord{
		rec("a", "Drug X approved", model.TierOfficial, 0.95, "h1"),
		rec("a", "Drug X rejected", model.TierNews, 0.65, "h2"),
		rec("a", "Drug X approved in EU", model.TierPeerReviewed, 0.85, "h3"),
		rec("b", "Response rate 40%", model.TierPeerReviewed, 0.85, "h4"),
		rec("b", "Response rate 60%", model.TierPeerReviewed, 0.85, "h5"),
		rec("c", "10-20 mg", model.TierNews, 0.65, "h6"),
		rec("c", "25 mg", model.TierNews, 0.60, "h7"),
	}

	type summary struct {
		Conflict, Resolved bool
		Winner             string
		Support            []string
	}
	summarize := func(records []model.EvidenceRecord) map[string]summary {
		outcomes, _ := NewDetector().Detect(records)
		out := make(map[string]summary)
		for id, o := range outcomes {
			s := summary{Conflict: o.Conflict, Resolved: o.Resolved}
			if o.TieBreak != nil {
				s.Winner = o.TieBreak.WinnerValue
			}
			for _, i := range o.Support() {
				s.Support = append(s.Support, records[i].Retrieval.Hash)
			}
			sort.Strings(s.Support)
			out[id] = s
		}
		return out
	}

	want := summarize(base)
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 25; n++ {
		shuffled := append([]model.EvidenceRecord(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, summarize(shuffled))
	}
}
