// Package pipeline runs a research request end to end: retrieval,
// per-agent evaluation, grounded generation and the truth gate.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/truthgate/internal/connector"
	"github.com/ppiankov/truthgate/internal/gate"
	"github.com/ppiankov/truthgate/internal/llm"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/validate"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Pipeline orchestrates research requests. It keeps no per-request state.
type Pipeline struct {
	cfg       *model.Config
	registry  *connector.Registry
	retriever *connector.Retriever
	validator *validate.Validator
	builder   *llm.PromptBuilder
	provider  llm.Provider
	fallback  llm.Provider
	agents    map[string][]string
	now       func() time.Time
	newID     func() string
}

// New creates a pipeline over registry, generating with provider
func New(cfg *model.Config, registry *connector.Registry, provider llm.Provider) *Pipeline {
	if provider == nil {
		provider = llm.NewExtractiveProvider()
	}
	return &Pipeline{
		cfg:       cfg,
		registry:  registry,
		retriever: connector.NewRetriever(cfg.Pipeline.ConnectorTimeout),
		validator: validate.NewValidator(cfg),
		builder:   llm.NewPromptBuilder(cfg.LLM.PromptBudgetChars, cfg.LLM.MaxSnippets),
		provider:  provider,
		fallback:  llm.NewExtractiveProvider(),
		agents:    DefaultAgents(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// NewFromConfig builds connectors and the configured generator
func NewFromConfig(cfg *model.Config) (*Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create generator")
	}
	return New(cfg, connector.NewRegistryFromConfig(cfg), provider), nil
}

// Run answers req. It never returns an error: every failure ends as an
// abstention in the response.
func (p *Pipeline) Run(ctx context.Context, req model.Request) *model.Response {
	start := time.Now()
	resp := &model.Response{
		RequestID: p.newID(),
		Molecule:  req.Molecule,
		Results:   map[string]*model.AgentResult{},
	}
	log := zap.L().Named("pipeline").With(zap.String("request_id", resp.RequestID), zap.String("molecule", req.Molecule))

	if p.cfg.Pipeline.RequestBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Pipeline.RequestBudget)
		defer cancel()
	}

	if !p.cfg.Gate.Enabled {
		resp.Summary = p.legacy(ctx, req)
		log.Info("legacy request complete", zap.Duration("elapsed", time.Since(start)))
		return resp
	}

	agents := p.selectAgents(req)
	retrieved := p.retrieve(ctx, req, agents)

	now := p.now()
	for _, agent := range agents {
		var hits []model.RawHit
		var sources []model.SourceOutcome
		for _, name := range p.agents[agent] {
			if r, ok := retrieved[name]; ok {
				hits = append(hits, r.Hits...)
				sources = append(sources, r.Outcome)
			}
		}
		result := p.validator.Evaluate(agent, hits, req, now)
		result.Sources = sources
		resp.Results[agent] = result
	}

	if ctx.Err() != nil {
		budgetExceeded(resp)
		log.Warn("request budget exceeded during retrieval", zap.Duration("elapsed", time.Since(start)))
		return resp
	}

	p.summarize(ctx, req, agents, resp)

	log.Info("request complete",
		zap.Int("agents", len(agents)),
		zap.Bool("abstained", resp.Summary.Abstained),
		zap.Strings("supported_claim_ids", resp.Summary.SupportedClaimIDs),
		zap.Duration("elapsed", time.Since(start)))
	return resp
}

// retrieve queries every connector needed by agents exactly once
func (p *Pipeline) retrieve(ctx context.Context, req model.Request, agents []string) map[string]connector.Retrieval {
	query := req.SearchTerm()
	seen := map[string]bool{}
	var calls []connector.Call
	for _, agent := range agents {
		for _, name := range p.agents[agent] {
			if seen[name] {
				continue
			}
			seen[name] = true
			if c, ok := p.registry.Get(name); ok {
				calls = append(calls, connector.Call{Connector: c, Query: query})
			}
		}
	}

	results := p.retriever.Retrieve(ctx, calls)
	byName := make(map[string]connector.Retrieval, len(results))
	for i, r := range results {
		byName[calls[i].Connector.Name()] = r
	}
	return byName
}

// summarize builds the grounded narrative from every agent that did not
// abstain and passes it through the gate
func (p *Pipeline) summarize(ctx context.Context, req model.Request, agents []string, resp *model.Response) {
	statuses, grounded := mergeClaims(agents, resp.Results)
	if len(grounded) == 0 {
		resp.Summary = abstainedSummary(firstReason(agents, resp.Results))
		return
	}

	prompt, err := p.builder.Build(req.Molecule, req.Query, grounded)
	if err != nil {
		zap.L().Info("no grounded prompt", zap.Error(err))
		p.abstainAll(resp, model.ReasonUnsupportedNarrative)
		return
	}
	if prompt.Dropped > 0 {
		zap.L().Debug("prompt truncated", zap.Int("dropped_snippets", prompt.Dropped))
	}

	text, generator, err := p.generate(ctx, prompt)
	if err != nil {
		p.abstainAll(resp, model.ReasonTimeBudgetExceeded)
		return
	}

	gated := gate.Check(text, gate.Table{Statuses: statuses, Included: prompt.IncludedClaimIDs()})
	if gated.Abstained {
		p.abstainAll(resp, model.ReasonUnsupportedNarrative)
		resp.Summary.Generator = generator
		resp.Summary.Gate = gated.Verdicts
		return
	}

	resp.Summary = model.Summary{
		Text:              gated.Text,
		SupportedClaimIDs: gated.SupportedClaimIDs,
		Generator:         generator,
		Gate:              gated.Verdicts,
	}
}

// generate runs the provider under the generation timeout. A provider
// error other than a timeout falls back to the extractive generator; a
// timeout is returned.
func (p *Pipeline) generate(ctx context.Context, prompt *llm.Prompt) (string, string, error) {
	genCtx := ctx
	if p.cfg.Pipeline.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.cfg.Pipeline.GenerateTimeout)
		defer cancel()
	}

	out, err := p.provider.Generate(genCtx, llm.GenerateRequest{Prompt: prompt})
	if err == nil {
		return out.Text, p.provider.Name(), nil
	}
	if genCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		zap.L().Warn("generator overran its budget", zap.String("generator", p.provider.Name()), zap.Error(err))
		return "", p.provider.Name(), eris.Wrap(err, "pipeline: generate")
	}

	zap.L().Warn("generator failed, using extractive fallback", zap.String("generator", p.provider.Name()), zap.Error(err))
	out, err = p.fallback.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", p.fallback.Name(), eris.Wrap(err, "pipeline: fallback generate")
	}
	return out.Text, p.fallback.Name(), nil
}

// abstainAll marks every result and the summary abstained
func (p *Pipeline) abstainAll(resp *model.Response, reason model.AbstainReason) {
	for agent, result := range resp.Results {
		resp.Results[agent] = result.WithAbstention(reason)
	}
	resp.Summary = abstainedSummary(reason)
}

// budgetExceeded marks every result abstained for the time budget,
// replacing any earlier reason since retrieval was cut short
func budgetExceeded(resp *model.Response) {
	reason := model.ReasonTimeBudgetExceeded
	for agent, result := range resp.Results {
		cp := *result
		cp.Abstained = true
		cp.AbstainReason = &reason
		resp.Results[agent] = &cp
	}
	resp.Summary = abstainedSummary(reason)
}

func abstainedSummary(reason model.AbstainReason) model.Summary {
	return model.Summary{
		SupportedClaimIDs: []string{},
		Abstained:         true,
		AbstainReason:     &reason,
	}
}

// firstReason returns the abstention reason of the first agent in order
func firstReason(agents []string, results map[string]*model.AgentResult) model.AbstainReason {
	for _, agent := range agents {
		if r := results[agent]; r != nil && r.AbstainReason != nil {
			return *r.AbstainReason
		}
	}
	return model.ReasonNoEvidence
}
