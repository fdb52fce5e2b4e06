package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/normalize"
)

// ErrPromptBudgetExceeded is returned when not even one snippet fits
var ErrPromptBudgetExceeded = errors.New("prompt budget exceeded")

// maxSnippetChars bounds a single snippet in the prompt
const maxSnippetChars = 600

// GroundedClaim is a claim together with the records that support it
type GroundedClaim struct {
	Claim   model.Claim
	Records []model.EvidenceRecord
}

// Snippet is one evidence excerpt placed in the prompt
type Snippet struct {
	ClaimIDs []string
	Hash     string
	Text     string
	Source   string
	Tier     model.SourceTier
	Rank     int
	Unix     int64 // reference time used for ordering
}

// Tag renders the citation tag of the snippet
func (s Snippet) Tag() string {
	return "[claim:" + strings.Join(s.ClaimIDs, ",") + "]"
}

// Prompt is a grounded prompt and the claims it exposes
type Prompt struct {
	System   string
	User     string
	Snippets []Snippet
	// Claims maps each included claim id to its claim text
	Claims map[string]string
	// Dropped counts snippets removed to fit the budget
	Dropped int
	// Unconstrained marks a legacy prompt built without grounding rules
	Unconstrained bool
}

// IncludedClaimIDs returns the sorted ids of claims with at least one snippet
func (p *Prompt) IncludedClaimIDs() []string {
	ids := make([]string, 0, len(p.Claims))
	for id := range p.Claims {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the size of the prompt in characters
func (p *Prompt) Len() int {
	return len(p.System) + len(p.User)
}

// PromptBuilder assembles grounded prompts
type PromptBuilder struct {
	budgetChars int
	maxSnippets int
}

// NewPromptBuilder creates a builder. Zero values disable the limit.
func NewPromptBuilder(budgetChars, maxSnippets int) *PromptBuilder {
	return &PromptBuilder{budgetChars: budgetChars, maxSnippets: maxSnippets}
}

const systemPrompt = `You write short research summaries about drugs and molecules.
You MUST use ONLY the evidence snippets provided by the user. Do not add facts from memory or any other source.
Every sentence you write must state a fact taken from the snippets and must cite the claim it relies on with the exact tag shown next to the snippet, for example [claim:example-id] or [claim:first-id,second-id].
Never invent claim ids. Never cite a claim whose snippet does not state the fact.
If the snippets do not support an answer to the question, reply with exactly ` + AbstainSentinel + ` and nothing else.`

// Build returns a prompt over the supported claims. Only verified and
// partially verified claims are used, and only their non-conflicting
// records. Snippets shared by several claims are deduplicated by hash.
func (b *PromptBuilder) Build(molecule, question string, claims []GroundedClaim) (*Prompt, error) {
	byHash := make(map[string]*Snippet)
	claimText := make(map[string]string)

	for _, gc := range claims {
		if !gc.Claim.VerificationStatus.Supported() {
			continue
		}
		for _, rec := range gc.Records {
			if rec.Quality.VerificationStatus == model.StatusConflicting {
				continue
			}
			text := strings.TrimSpace(rec.Retrieval.Snippet)
			if text == "" {
				continue
			}
			if len(text) > maxSnippetChars {
				text = strings.TrimSpace(normalize.Clip(text, maxSnippetChars)) + "..."
			}

			s, ok := byHash[rec.Retrieval.Hash]
			if !ok {
				s = &Snippet{
					Hash:   rec.Retrieval.Hash,
					Text:   text,
					Source: rec.Source.Name,
					Tier:   rec.Quality.SourceTier,
					Rank:   rec.Quality.SourceTier.Rank(),
					Unix:   rec.Reference().Unix(),
				}
				byHash[rec.Retrieval.Hash] = s
			}
			if r := rec.Quality.SourceTier.Rank(); r > s.Rank {
				s.Rank, s.Tier, s.Source = r, rec.Quality.SourceTier, rec.Source.Name
			}
			if u := rec.Reference().Unix(); u > s.Unix {
				s.Unix = u
			}
			if !containsString(s.ClaimIDs, gc.Claim.ClaimID) {
				s.ClaimIDs = append(s.ClaimIDs, gc.Claim.ClaimID)
			}
			claimText[gc.Claim.ClaimID] = gc.Claim.ClaimText
		}
	}

	snippets := make([]Snippet, 0, len(byHash))
	for _, s := range byHash {
		sort.Strings(s.ClaimIDs)
		snippets = append(snippets, *s)
	}
	if len(snippets) == 0 {
		return nil, fmt.Errorf("%w: no supported evidence", ErrPromptBudgetExceeded)
	}

	// Highest tier first, then newest, so truncation drops lowest tier then oldest
	sort.Slice(snippets, func(i, j int) bool {
		a, c := snippets[i], snippets[j]
		if a.Rank != c.Rank {
			return a.Rank > c.Rank
		}
		if a.Unix != c.Unix {
			return a.Unix > c.Unix
		}
		return a.Hash < c.Hash
	})

	total := len(snippets)
	if b.maxSnippets > 0 && len(snippets) > b.maxSnippets {
		snippets = snippets[:b.maxSnippets]
	}

	for len(snippets) > 0 {
		p := b.render(molecule, question, snippets, claimText)
		if b.budgetChars <= 0 || p.Len() <= b.budgetChars {
			p.Dropped = total - len(snippets)
			return p, nil
		}
		snippets = snippets[:len(snippets)-1]
	}
	return nil, ErrPromptBudgetExceeded
}

func (b *PromptBuilder) render(molecule, question string, snippets []Snippet, claimText map[string]string) *Prompt {
	included := make(map[string]string)
	var sb strings.Builder

	fmt.Fprintf(&sb, "Molecule: %s\n", molecule)
	if question != "" {
		fmt.Fprintf(&sb, "Question: %s\n", question)
	}
	sb.WriteString("\nEvidence snippets (cite with the tag that precedes each one):\n")
	for i, s := range snippets {
		fmt.Fprintf(&sb, "%d. %s (%s, %s) %s\n", i+1, s.Tag(), s.Source, s.Tier, s.Text)
		for _, id := range s.ClaimIDs {
			included[id] = claimText[id]
		}
	}
	sb.WriteString("\nWrite at most one sentence per claim. End every sentence with its citation tag.")

	return &Prompt{
		System:   systemPrompt,
		User:     sb.String(),
		Snippets: append([]Snippet(nil), snippets...),
		Claims:   included,
	}
}

const legacySystemPrompt = `You write short research summaries about drugs and molecules from the search results provided.`

// LegacyPrompt builds an ungrounded prompt over raw snippets, truncated to
// budgetChars. It carries no claim table and no citation rules.
func LegacyPrompt(molecule, question string, snippets []string, budgetChars int) *Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Molecule: %s\n", molecule)
	if question != "" {
		fmt.Fprintf(&sb, "Question: %s\n", question)
	}
	sb.WriteString("\nSearch results:\n")

	p := &Prompt{System: legacySystemPrompt, Unconstrained: true}
	for _, text := range snippets {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		line := "- " + text + "\n"
		if budgetChars > 0 && len(p.System)+sb.Len()+len(line) > budgetChars {
			p.Dropped++
			continue
		}
		sb.WriteString(line)
		p.Snippets = append(p.Snippets, Snippet{Text: text})
	}
	p.User = sb.String()
	return p
}

func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
