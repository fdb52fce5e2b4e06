// Package verify assigns verification status to claims and their records.
package verify

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/conflict"
	"github.com/ppiankov/truthgate/internal/model"
)

// MinVerifiedSources is the independent-source count required for verified
const MinVerifiedSources = 2

// Aggregator derives claim statuses from scored records and conflict outcomes
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate returns the claims (sorted by id) and a copy of records with
// record-level verification status set.
func (a *Aggregator) Aggregate(records []model.EvidenceRecord, outcomes map[string]*conflict.Outcome) ([]model.Claim, []model.EvidenceRecord) {
	out := make([]model.EvidenceRecord, len(records))
	copy(out, records)

	groups := make(map[string][]int)
	for i, rec := range records {
		groups[rec.ClaimID] = append(groups[rec.ClaimID], i)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	claims := make([]model.Claim, 0, len(ids))
	for _, id := range ids {
		idx := groups[id]
		outcome := outcomes[id]
		if outcome == nil {
			outcome = &conflict.Outcome{ClaimID: id, Neutral: idx, Resolved: true, Winner: -1}
		}

		support := outcome.Support()
		status := model.StatusConflicting
		count := 0
		if outcome.Resolved {
			count = IndependentCount(records, support)
			status = Classify(records, support, count)
		}

		for _, i := range idx {
			out[i].Quality.VerificationStatus = status
		}
		for _, i := range outcome.Losers() {
			out[i].Quality.VerificationStatus = model.StatusConflicting
		}

		stale := true
		for _, i := range idx {
			if !records[i].Quality.Stale {
				stale = false
				break
			}
		}

		claims = append(claims, model.Claim{
			ClaimID:            id,
			ClaimText:          representativeText(records, idx, support),
			Category:           records[idx[0]].Category,
			Evidence:           append([]int(nil), idx...),
			VerificationStatus: status,
			SupportCount:       count,
			Stale:              stale,
			TieBreak:           outcome.TieBreak,
		})
	}

	return claims, out
}

// Classify applies the support rules to a resolved support set
func Classify(records []model.EvidenceRecord, support []int, independent int) model.VerificationStatus {
	trusted := false
	for _, i := range support {
		if records[i].Quality.SourceTier.AtLeast(model.TierPeerReviewed) {
			trusted = true
			break
		}
	}
	switch {
	case independent >= MinVerifiedSources && trusted:
		return model.StatusVerified
	case trusted:
		return model.StatusPartiallyVerified
	default:
		return model.StatusUnverified
	}
}

// IndependentCount returns the largest number of records in support that
// pairwise differ in both source and snippet hash. It is the size of a
// maximum matching between distinct sources and distinct hashes.
func IndependentCount(records []model.EvidenceRecord, support []int) int {
	sourceIdx := make(map[string]int)
	hashIdx := make(map[string]int)
	var adj [][]int
	seenEdge := make(map[[2]int]bool)

	for _, i := range support {
		src := sourceKey(records[i].Source)
		s, ok := sourceIdx[src]
		if !ok {
			s = len(sourceIdx)
			sourceIdx[src] = s
			adj = append(adj, nil)
		}
		h, ok := hashIdx[records[i].Retrieval.Hash]
		if !ok {
			h = len(hashIdx)
			hashIdx[records[i].Retrieval.Hash] = h
		}
		if !seenEdge[[2]int{s, h}] {
			seenEdge[[2]int{s, h}] = true
			adj[s] = append(adj[s], h)
		}
	}

	matchHash := make([]int, len(hashIdx))
	for i := range matchHash {
		matchHash[i] = -1
	}

	var augment func(s int, visited []bool) bool
	augment = func(s int, visited []bool) bool {
		for _, h := range adj[s] {
			if visited[h] {
				continue
			}
			visited[h] = true
			if matchHash[h] < 0 || augment(matchHash[h], visited) {
				matchHash[h] = s
				return true
			}
		}
		return false
	}

	count := 0
	for s := range adj {
		if augment(s, make([]bool, len(hashIdx))) {
			count++
		}
	}
	return count
}

// sourceKey identifies a source by host, falling back to its name
func sourceKey(src model.Source) string {
	if u, err := url.Parse(src.URL); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return strings.ToLower(src.Name)
}

// representativeText picks the claim text of the strongest supporting record
func representativeText(records []model.EvidenceRecord, all, support []int) string {
	pool := support
	if len(pool) == 0 {
		pool = all
	}
	best := pool[0]
	for _, i := range pool[1:] {
		if stronger(records[i], records[best]) {
			best = i
		}
	}
	return records[best].ClaimText
}

func stronger(a, b model.EvidenceRecord) bool {
	if ra, rb := a.Quality.SourceTier.Rank(), b.Quality.SourceTier.Rank(); ra != rb {
		return ra > rb
	}
	if a.Quality.Confidence != b.Quality.Confidence {
		return a.Quality.Confidence > b.Quality.Confidence
	}
	return a.ClaimText < b.ClaimText
}

// Summarize counts claims by status
func Summarize(claims []model.Claim) model.VerificationSummary {
	var s model.VerificationSummary
	for _, c := range claims {
		switch c.VerificationStatus {
		case model.StatusVerified:
			s.VerifiedCount++
		case model.StatusPartiallyVerified:
			s.PartialCount++
		case model.StatusUnverified:
			s.UnverifiedCount++
		case model.StatusConflicting:
			s.ConflictingCount++
		}
	}
	return s
}

// Freshness summarizes the recency of records
func Freshness(records []model.EvidenceRecord) model.FreshnessSummary {
	if len(records) == 0 {
		return model.FreshnessSummary{MaxAgeHours: model.NoEvidenceMaxAge}
	}
	var latest time.Time
	maxAge := 0.0
	for _, rec := range records {
		if rec.Retrieval.FetchedAt.After(latest) {
			latest = rec.Retrieval.FetchedAt
		}
		if rec.Quality.FreshnessHours > maxAge {
			maxAge = rec.Quality.FreshnessHours
		}
	}
	return model.FreshnessSummary{LatestFetchAt: &latest, MaxAgeHours: maxAge}
}
