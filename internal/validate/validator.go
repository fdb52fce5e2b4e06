// Package validate evaluates one agent's evidence: normalize, score,
// detect conflicts, aggregate and decide abstention.
package validate

import (
	"sort"
	"time"

	"github.com/ppiankov/truthgate/internal/abstain"
	"github.com/ppiankov/truthgate/internal/conflict"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/normalize"
	"github.com/ppiankov/truthgate/internal/score"
	"github.com/ppiankov/truthgate/internal/verify"
	"go.uber.org/zap"
)

// Validator evaluates raw hits into an AgentResult. It holds only
// configuration; every Evaluate call works on its own state.
type Validator struct {
	authority *AuthorityClassifier
	scoring   model.ScoringConfig
	policy    *abstain.Policy
}

// NewValidator creates a validator from config
func NewValidator(cfg *model.Config) *Validator {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	return &Validator{
		authority: NewAuthorityClassifier(&cfg.Authority),
		scoring:   cfg.Scoring,
		policy:    abstain.NewPolicy(cfg.Abstention),
	}
}

// Policy returns the abstention policy used by the validator
func (v *Validator) Policy() *abstain.Policy {
	return v.policy
}

// Evaluate builds the AgentResult for agent from hits at time now
func (v *Validator) Evaluate(agent string, hits []model.RawHit, req model.Request, now time.Time) *model.AgentResult {
	log := zap.L().Named("validate").With(zap.String("agent", agent))

	records, signals := normalize.NewNormalizer().NormalizeAll(hits)
	sortRecords(records)

	scored, scoreSignals := score.NewScorer(v.scoring, v.authority).Score(records, now)
	signals = append(signals, scoreSignals...)

	outcomes, conflictSignals := conflict.NewDetector().Detect(scored)
	signals = append(signals, conflictSignals...)

	claims, evaluated := verify.NewAggregator().Aggregate(scored, outcomes)
	claims = v.policy.Annotate(claims, req)

	result := &model.AgentResult{
		Agent:               agent,
		Evidence:            evaluated,
		Claims:              claims,
		VerificationSummary: verify.Summarize(claims),
		FreshnessSummary:    verify.Freshness(evaluated),
		Signals:             signals,
	}

	if reason := v.policy.Decide(evaluated, claims, req); reason != nil {
		result.Abstained = true
		result.AbstainReason = reason
		log.Info("agent abstained", zap.String("reason", string(*reason)))
	}

	log.Debug("agent evaluated",
		zap.Int("hits", len(hits)),
		zap.Int("records", len(evaluated)),
		zap.Int("claims", len(claims)),
		zap.Int("verified", result.VerificationSummary.VerifiedCount),
		zap.Int("conflicting", result.VerificationSummary.ConflictingCount),
	)
	return result
}

// sortRecords orders records canonically so results do not depend on
// connector arrival order
func sortRecords(records []model.EvidenceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ClaimID != b.ClaimID {
			return a.ClaimID < b.ClaimID
		}
		if a.Source.URL != b.Source.URL {
			return a.Source.URL < b.Source.URL
		}
		if a.Retrieval.Hash != b.Retrieval.Hash {
			return a.Retrieval.Hash < b.Retrieval.Hash
		}
		if !a.Retrieval.FetchedAt.Equal(b.Retrieval.FetchedAt) {
			return a.Retrieval.FetchedAt.Before(b.Retrieval.FetchedAt)
		}
		return a.Source.Name < b.Source.Name
	})
}
