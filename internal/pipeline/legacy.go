package pipeline

import (
	"context"

	"github.com/ppiankov/truthgate/internal/connector"
	"github.com/ppiankov/truthgate/internal/llm"
	"github.com/ppiankov/truthgate/internal/model"
	"go.uber.org/zap"
)

// legacy answers without evaluation or gating: every raw snippet goes into
// an unconstrained prompt and the generator output is returned verbatim
func (p *Pipeline) legacy(ctx context.Context, req model.Request) model.Summary {
	var calls []connector.Call
	for _, name := range p.registry.Names() {
		c, _ := p.registry.Get(name)
		calls = append(calls, connector.Call{Connector: c, Query: req.SearchTerm()})
	}

	var snippets []string
	for _, r := range p.retriever.Retrieve(ctx, calls) {
		for _, h := range r.Hits {
			snippets = append(snippets, h.Snippet)
		}
	}

	prompt := llm.LegacyPrompt(req.Molecule, req.Query, snippets, p.cfg.LLM.PromptBudgetChars)
	out, err := p.provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil {
		zap.L().Warn("legacy generation failed", zap.String("generator", p.provider.Name()), zap.Error(err))
		return model.Summary{SupportedClaimIDs: []string{}, Generator: p.provider.Name()}
	}
	return model.Summary{Text: out.Text, SupportedClaimIDs: []string{}, Generator: p.provider.Name()}
}
