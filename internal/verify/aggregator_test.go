package verify

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ppiankov/truthgate/internal/conflict"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(claimID, text, host string, tier model.SourceTier, hash string) model.EvidenceRecord {
	return model.EvidenceRecord{
		ClaimID:   claimID,
		ClaimText: text,
		Source:    model.Source{Name: host, URL: "https://" + host + "/doc"},
		Retrieval: model.Retrieval{Hash: hash, FetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Quality:   model.Quality{SourceTier: tier, Confidence: 0.5 + float64(tier.Rank())/10},
	}
}

func aggregate(records []model.EvidenceRecord) ([]model.Claim, []model.EvidenceRecord) {
	outcomes, _ := conflict.NewDetector().Detect(records)
	return NewAggregator().Aggregate(records, outcomes)
}

func TestAggregate_Verified(t *testing.T) {
	claims, records := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "fda.gov", model.TierOfficial, "h1"),
		rec("x", "X approved", "statnews.com", model.TierNews, "h2"),
	})
	require.Len(t, claims, 1)
	assert.Equal(t, model.StatusVerified, claims[0].VerificationStatus)
	assert.Equal(t, 2, claims[0].SupportCount)
	for _, r := range records {
		assert.Equal(t, model.StatusVerified, r.Quality.VerificationStatus)
	}
}

func TestAggregate_PartiallyVerifiedSingleTrustedSource(t *testing.T) {
	claims, _ := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "pubmed.ncbi.nlm.nih.gov", model.TierPeerReviewed, "h1"),
	})
	assert.Equal(t, model.StatusPartiallyVerified, claims[0].VerificationStatus)
}

func TestAggregate_UnverifiedWithoutTrustedSource(t *testing.T) {
	claims, _ := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "statnews.com", model.TierNews, "h1"),
		rec("x", "X approved", "reuters.com", model.TierNews, "h2"),
	})
	assert.Equal(t, model.StatusUnverified, claims[0].VerificationStatus)
	assert.Equal(t, 2, claims[0].SupportCount)
}

func TestAggregate_DuplicateSnippetsAreOneSource(t *testing.T) {
	// Same snippet syndicated on two sites plus a repeat from one of them
	claims, _ := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "nejm.org", model.TierPeerReviewed, "same"),
		rec("x", "X approved", "statnews.com", model.TierNews, "same"),
		rec("x", "X approved", "nejm.org", model.TierPeerReviewed, "same"),
	})
	assert.Equal(t, 1, claims[0].SupportCount)
	assert.Equal(t, model.StatusPartiallyVerified, claims[0].VerificationStatus)
}

func TestAggregate_ConflictLosersMarked(t *testing.T) {
	claims, records := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "fda.gov", model.TierOfficial, "h1"),
		rec("x", "X rejected", "statnews.com", model.TierNews, "h2"),
	})
	assert.Equal(t, model.StatusPartiallyVerified, claims[0].VerificationStatus)
	require.NotNil(t, claims[0].TieBreak)
	assert.Equal(t, model.StatusPartiallyVerified, records[0].Quality.VerificationStatus)
	assert.Equal(t, model.StatusConflicting, records[1].Quality.VerificationStatus)
	assert.Equal(t, "X approved", claims[0].ClaimText)
}

func TestAggregate_UnresolvedConflict(t *testing.T) {
	claims, records := aggregate([]model.EvidenceRecord{
		rec("x", "X approved", "statnews.com", model.TierNews, "h1"),
		rec("x", "X rejected", "reuters.com", model.TierNews, "h2"),
	})
	assert.Equal(t, model.StatusConflicting, claims[0].VerificationStatus)
	assert.Equal(t, 0, claims[0].SupportCount)
	for _, r := range records {
		assert.Equal(t, model.StatusConflicting, r.Quality.VerificationStatus)
	}
	assert.Equal(t, 1, Summarize(claims).ConflictingCount)
}

func TestAggregate_SummaryPermutationInvariant(t *testing.T) {
	base := []model.EvidenceRecord{
		rec("a", "A approved", "fda.gov", model.TierOfficial, "h1"),
		rec("a", "A approved", "nejm.org", model.TierPeerReviewed, "h2"),
		rec("b", "B approved", "statnews.com", model.TierNews, "h3"),
		rec("c", "C approved", "statnews.com", model.TierNews, "h4"),
		rec("c", "C rejected", "reuters.com", model.TierNews, "h5"),
		rec("d", "D 20 mg", "nejm.org", model.TierPeerReviewed, "h6"),
	}
	claims, _ := aggregate(base)
	want := Summarize(claims)

	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 20; n++ {
		shuffled := append([]model.EvidenceRecord(nil), base...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, _ := aggregate(shuffled)
		assert.Equal(t, want, Summarize(got))
	}
}

func TestIndependentCount_Matching(t *testing.T) {
	records := []model.EvidenceRecord{
		rec("x", "", "a.org", model.TierNews, "h1"),
		rec("x", "", "a.org", model.TierNews, "h2"),
		rec("x", "", "b.org", model.TierNews, "h1"),
	}
	// a/h2 and b/h1 are independent
	assert.Equal(t, 2, IndependentCount(records, []int{0, 1, 2}))
	assert.Equal(t, 1, IndependentCount(records, []int{0, 2}))
	assert.Equal(t, 0, IndependentCount(records, nil))
}

func TestFreshness(t *testing.T) {
	empty := Freshness(nil)
	assert.Nil(t, empty.LatestFetchAt)
	assert.Equal(t, float64(model.NoEvidenceMaxAge), empty.MaxAgeHours)

	a := rec("x", "", "a.org", model.TierNews, "h1")
	a.Quality.FreshnessHours = 10
	b := rec("x", "", "b.org", model.TierNews, "h2")
	b.Retrieval.FetchedAt = b.Retrieval.FetchedAt.Add(time.Hour)
	b.Quality.FreshnessHours = 3

	f := Freshness([]model.EvidenceRecord{a, b})
	require.NotNil(t, f.LatestFetchAt)
	assert.Equal(t, b.Retrieval.FetchedAt, *f.LatestFetchAt)
	assert.Equal(t, 10.0, f.MaxAgeHours)
}
