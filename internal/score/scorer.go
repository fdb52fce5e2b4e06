package score

import (
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
)

// TierClassifier maps a source to its trust tier
type TierClassifier interface {
	Classify(sourceName, rawURL string) model.SourceTier
}

// tiersLowToHigh is the rank order used to keep base trust monotone
var tiersLowToHigh = []model.SourceTier{
	model.TierOther, model.TierNews, model.TierPeerReviewed, model.TierOfficial,
}

// Scorer assigns tier, freshness, confidence and staleness to records
type Scorer struct {
	classifier TierClassifier
	base       map[model.SourceTier]float64
	sla        map[model.ClaimCategory]float64
	defaultSLA float64
	floor      float64
}

// NewScorer creates a scorer from the scoring config
func NewScorer(cfg model.ScoringConfig, classifier TierClassifier) *Scorer {
	defaults := model.DefaultConfig().Scoring

	s := &Scorer{
		classifier: classifier,
		base:       make(map[model.SourceTier]float64),
		sla:        make(map[model.ClaimCategory]float64),
		defaultSLA: cfg.DefaultSLAHours,
		floor:      cfg.ConfidenceFloor,
	}
	if s.defaultSLA <= 0 {
		s.defaultSLA = defaults.DefaultSLAHours
	}
	if s.floor < 0 {
		s.floor = 0
	}

	// Higher tiers never get less base trust than lower ones
	prev := 0.0
	for _, tier := range tiersLowToHigh {
		v, ok := cfg.BaseTrust[string(tier)]
		if !ok {
			v = defaults.BaseTrust[string(tier)]
		}
		v = math.Max(0, math.Min(1, v))
		if v < prev {
			v = prev
		}
		s.base[tier] = v
		prev = v
	}

	slaHours := cfg.SLAHours
	if len(slaHours) == 0 {
		slaHours = defaults.SLAHours
	}
	for category, hours := range slaHours {
		if hours > 0 {
			s.sla[model.ClaimCategory(category)] = hours
		}
	}

	return s
}

// SLAHours returns the freshness SLA of a category
func (s *Scorer) SLAHours(category model.ClaimCategory) float64 {
	if h, ok := s.sla[category]; ok {
		return h
	}
	return s.defaultSLA
}

// BaseTrust returns the undecayed confidence of a tier
func (s *Scorer) BaseTrust(tier model.SourceTier) float64 {
	return s.base[tier]
}

// Score returns scored copies of records plus staleness signals.
// The input slice is not modified.
func (s *Scorer) Score(records []model.EvidenceRecord, now time.Time) ([]model.EvidenceRecord, []model.Signal) {
	scored := make([]model.EvidenceRecord, len(records))
	var signals []model.Signal
	staleCount := 0

	for i, rec := range records {
		tier := s.classifier.Classify(rec.Source.Name, rec.Source.URL)
		if !tier.Valid() {
			tier = model.TierOther
		}

		age := now.Sub(rec.Reference()).Hours()
		if age < 0 {
			age = 0
		}
		age = round4(age)
		sla := s.SLAHours(rec.Category)

		rec.Quality = model.Quality{
			SourceTier:     tier,
			Confidence:     DecayedConfidence(s.base[tier], age, sla, s.floor),
			FreshnessHours: age,
			Stale:          age > sla,
		}
		scored[i] = rec

		if rec.Quality.Stale {
			staleCount++
		}
	}

	if staleCount > 0 {
		severity := model.SeverityWarning
		if staleCount == len(records) {
			severity = model.SeverityCritical
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalStaleEvidence,
			Severity:    severity,
			Description: fmt.Sprintf("%d of %d evidence records exceed their freshness SLA", staleCount, len(records)),
			Data: map[string]interface{}{
				"stale":   staleCount,
				"total":   len(records),
				"floor":   s.floor,
				"formula": "max(floor, base_trust(tier) * 2^(-(age_hours - sla_hours) / sla_hours))",
			},
		})
	}

	return scored, signals
}
