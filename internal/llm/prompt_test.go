package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/truthgate/internal/model"
)

func record(hash, snippet, source string, tier model.SourceTier, status model.VerificationStatus, fetched time.Time) model.EvidenceRecord {
	return model.EvidenceRecord{
		Source:    model.Source{Name: source},
		Retrieval: model.Retrieval{FetchedAt: fetched, Snippet: snippet, Hash: hash},
		Quality:   model.Quality{SourceTier: tier, VerificationStatus: status},
	}
}

func groundedClaims() []GroundedClaim {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []GroundedClaim{
		{
			Claim: model.Claim{ClaimID: "approval", ClaimText: "examplinib is FDA approved", VerificationStatus: model.StatusVerified},
			Records: []model.EvidenceRecord{
				record("h-news", "Examplinib wins approval.", "fiercepharma", model.TierNews, model.StatusVerified, t0.Add(48*time.Hour)),
				record("h-fda", "Approved 2026-02-01.", "openfda", model.TierOfficial, model.StatusVerified, t0),
				record("h-bad", "Approval withdrawn.", "blog", model.TierOther, model.StatusConflicting, t0),
			},
		},
		{
			Claim: model.Claim{ClaimID: "label", ClaimText: "the label lists one indication", VerificationStatus: model.StatusPartiallyVerified},
			Records: []model.EvidenceRecord{
				record("h-fda", "Approved 2026-02-01.", "openfda", model.TierOfficial, model.StatusPartiallyVerified, t0),
			},
		},
		{
			Claim: model.Claim{ClaimID: "cure", ClaimText: "examplinib cures cancer", VerificationStatus: model.StatusUnverified},
			Records: []model.EvidenceRecord{
				record("h-rumor", "It cures cancer.", "blog", model.TierOther, model.StatusUnverified, t0),
			},
		},
	}
}

func TestPromptBuilder_Build(t *testing.T) {
	p, err := NewPromptBuilder(0, 0).Build("examplinib", "Is it approved?", groundedClaims())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(p.Snippets) != 2 {
		t.Fatalf("Expected 2 snippets, got %d: %+v", len(p.Snippets), p.Snippets)
	}
	first := p.Snippets[0]
	if first.Hash != "h-fda" || first.Tag() != "[claim:approval,label]" {
		t.Errorf("Expected shared official snippet first, got %+v", first)
	}
	if p.Snippets[1].Hash != "h-news" {
		t.Errorf("Expected news snippet second, got %s", p.Snippets[1].Hash)
	}

	ids := p.IncludedClaimIDs()
	if strings.Join(ids, ",") != "approval,label" {
		t.Errorf("Unexpected included claims: %v", ids)
	}
	if strings.Contains(p.User, "cures cancer") || strings.Contains(p.User, "withdrawn") {
		t.Errorf("Unsupported evidence leaked into prompt:\n%s", p.User)
	}
	if !strings.Contains(p.User, "Question: Is it approved?") {
		t.Errorf("Question missing from prompt:\n%s", p.User)
	}
	if !strings.Contains(p.System, AbstainSentinel) {
		t.Error("System prompt must name the abstain sentinel")
	}
}

func TestPromptBuilder_MaxSnippets(t *testing.T) {
	p, err := NewPromptBuilder(0, 1).Build("examplinib", "", groundedClaims())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(p.Snippets) != 1 || p.Dropped != 1 {
		t.Errorf("Expected 1 snippet and 1 dropped, got %d and %d", len(p.Snippets), p.Dropped)
	}
	if _, ok := p.Claims["approval"]; !ok {
		t.Error("Expected approval claim to stay included")
	}
}

func TestPromptBuilder_BudgetDropsLowestTier(t *testing.T) {
	full, err := NewPromptBuilder(0, 0).Build("examplinib", "", groundedClaims())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	p, err := NewPromptBuilder(full.Len()-1, 0).Build("examplinib", "", groundedClaims())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(p.Snippets) != 1 || p.Snippets[0].Hash != "h-fda" {
		t.Errorf("Expected only the official snippet to survive, got %+v", p.Snippets)
	}
	if p.Len() > full.Len()-1 {
		t.Errorf("Prompt of %d chars exceeds budget", p.Len())
	}
}

func TestPromptBuilder_Errors(t *testing.T) {
	if _, err := NewPromptBuilder(10, 0).Build("examplinib", "", groundedClaims()); !errors.Is(err, ErrPromptBudgetExceeded) {
		t.Errorf("Expected budget error, got %v", err)
	}

	unsupported := groundedClaims()[2:]
	if _, err := NewPromptBuilder(0, 0).Build("examplinib", "", unsupported); !errors.Is(err, ErrPromptBudgetExceeded) {
		t.Errorf("Expected error for no supported evidence, got %v", err)
	}
}

func TestPromptBuilder_TruncatesLongSnippet(t *testing.T) {
	claims := []GroundedClaim{{
		Claim:   model.Claim{ClaimID: "long", VerificationStatus: model.StatusVerified},
		Records: []model.EvidenceRecord{record("h", strings.Repeat("word ", 400), "pubmed", model.TierPeerReviewed, model.StatusVerified, time.Now())},
	}}
	p, err := NewPromptBuilder(0, 0).Build("m", "", claims)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := len(p.Snippets[0].Text); got > maxSnippetChars+3 {
		t.Errorf("Snippet not truncated: %d chars", got)
	}
}

func TestPromptBuilder_TruncatesOnRuneBoundary(t *testing.T) {
	// 1 + 2*400 bytes puts the 600-byte cut inside a two-byte rune
	text := "x" + strings.Repeat("µ", 400)
	claims := []GroundedClaim{{
		Claim:   model.Claim{ClaimID: "dose", VerificationStatus: model.StatusVerified},
		Records: []model.EvidenceRecord{record("h", text, "pubmed", model.TierPeerReviewed, model.StatusVerified, time.Now())},
	}}
	p, err := NewPromptBuilder(0, 0).Build("m", "", claims)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := p.Snippets[0].Text
	if !utf8.ValidString(got) || !utf8.ValidString(p.User) {
		t.Errorf("Truncated snippet is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "µ...") {
		t.Errorf("Expected snippet to end on a whole rune, got suffix %q", got[len(got)-6:])
	}
}

func TestLegacyPrompt(t *testing.T) {
	p := LegacyPrompt("examplinib", "", []string{"first result", "  ", "second result"}, 0)
	if !p.Unconstrained || len(p.Snippets) != 2 || p.Dropped != 0 {
		t.Errorf("Unexpected legacy prompt: %+v", p)
	}
	if len(p.Claims) != 0 {
		t.Error("Legacy prompt must not carry claims")
	}

	budget := len(legacySystemPrompt) + len("Molecule: examplinib\n\nSearch results:\n") + len("- first result\n")
	p = LegacyPrompt("examplinib", "", []string{"first result", "second result"}, budget)
	if len(p.Snippets) != 1 || p.Dropped != 1 {
		t.Errorf("Expected one snippet kept and one dropped, got %d and %d", len(p.Snippets), p.Dropped)
	}
}

func TestExtractiveProvider_Generate(t *testing.T) {
	provider := NewExtractiveProvider()
	prompt := &Prompt{Claims: map[string]string{
		"label":    "The label lists one indication. It is [oral].",
		"approval": "examplinib is FDA approved",
	}}

	resp, err := provider.Generate(context.Background(), GenerateRequest{Prompt: prompt})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := "examplinib is FDA approved [claim:approval].\n" +
		"The label lists one indication; It is (oral) [claim:label]."
	if resp.Text != want {
		t.Errorf("Unexpected text:\n got %q\nwant %q", resp.Text, want)
	}
}

func TestExtractiveProvider_Abstains(t *testing.T) {
	provider := NewExtractiveProvider()
	for _, req := range []GenerateRequest{{}, {Prompt: &Prompt{}}, {Prompt: &Prompt{Claims: map[string]string{"x": " . "}}}} {
		resp, err := provider.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if resp.Text != AbstainSentinel {
			t.Errorf("Expected sentinel, got %q", resp.Text)
		}
	}
}

func TestExtractiveProvider_Legacy(t *testing.T) {
	p := LegacyPrompt("examplinib", "", []string{"first result", "second result"}, 0)
	resp, err := NewExtractiveProvider().Generate(context.Background(), GenerateRequest{Prompt: p})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "first result\nsecond result" {
		t.Errorf("Unexpected legacy text: %q", resp.Text)
	}
}

func TestExtractiveProvider_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractiveProvider().Generate(ctx, GenerateRequest{Prompt: &Prompt{}}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"empty selects extractive", Config{}, "extractive", false},
		{"none", Config{Provider: "none"}, "extractive", false},
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"openai without key", Config{Provider: "openai"}, "", true},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama", Model: "llama3.1:8b"}, "ollama", false},
		{"unknown", Config{Provider: "bard"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	c := ConfigFromModel(
		model.LLMConfig{Provider: "openai", Model: "gpt-test", APIKey: "k", Timeout: time.Second, MaxTokens: 200, Temperature: 0.1},
		model.HTTPConfig{HTTPSProxy: "http://proxy:3128", NoProxy: "localhost"},
	)
	if c.Provider != "openai" || c.Model != "gpt-test" || c.MaxTokens != 200 || c.Timeout != time.Second {
		t.Errorf("Unexpected config: %+v", c)
	}
	if c.HTTPSProxy != "http://proxy:3128" || c.NoProxy != "localhost" {
		t.Errorf("Proxy settings not carried over: %+v", c)
	}
	if c.maxTokens(0) != 200 || c.maxTokens(50) != 50 {
		t.Error("Unexpected max token resolution")
	}
	if c.model("", "fallback") != "gpt-test" || (Config{}).model("", "fallback") != "fallback" {
		t.Error("Unexpected model resolution")
	}
}
