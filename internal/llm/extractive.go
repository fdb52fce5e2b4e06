package llm

import (
	"context"
	"strings"

	"github.com/ppiankov/truthgate/internal/normalize"
)

// ExtractiveProvider writes one cited sentence per included claim using the
// claim text only. It needs no network and is used when no model is
// configured or a model call fails.
type ExtractiveProvider struct{}

// NewExtractiveProvider creates the extractive provider
func NewExtractiveProvider() *ExtractiveProvider {
	return &ExtractiveProvider{}
}

// Name returns the provider name
func (p *ExtractiveProvider) Name() string {
	return "extractive"
}

// IsAvailable always reports true
func (p *ExtractiveProvider) IsAvailable(context.Context) bool {
	return true
}

// Generate renders the included claims as cited sentences in claim id order
func (p *ExtractiveProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Prompt != nil && req.Prompt.Unconstrained {
		parts := make([]string, 0, len(req.Prompt.Snippets))
		for _, s := range req.Prompt.Snippets {
			parts = append(parts, s.Text)
		}
		return &GenerateResponse{Text: strings.Join(parts, "\n"), Model: "extractive"}, nil
	}
	if req.Prompt == nil || len(req.Prompt.Claims) == 0 {
		return &GenerateResponse{Text: AbstainSentinel, Model: "extractive"}, nil
	}

	var sentences []string
	for _, id := range req.Prompt.IncludedClaimIDs() {
		text := sentenceBody(req.Prompt.Claims[id])
		if text == "" {
			continue
		}
		sentences = append(sentences, text+" [claim:"+id+"].")
	}
	if len(sentences) == 0 {
		return &GenerateResponse{Text: AbstainSentinel, Model: "extractive"}, nil
	}

	return &GenerateResponse{
		Text:  strings.Join(sentences, "\n"),
		Model: "extractive",
	}, nil
}

// sentenceBody flattens text into a single sentence without terminators
func sentenceBody(text string) string {
	text = normalize.NormalizeWhitespace(text)
	replacer := strings.NewReplacer(". ", "; ", "! ", "; ", "? ", "; ", "[", "(", "]", ")")
	text = replacer.Replace(text)
	return strings.TrimRight(text, ".!?;: ")
}
