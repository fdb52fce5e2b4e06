package extract

import (
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
)

// Topic groups sentences that speak to the same kind of fact
type Topic struct {
	Name     string
	Category model.ClaimCategory
	keywords []string
}

// DefaultTopics are checked in order; a sentence belongs to the first match
var DefaultTopics = []Topic{
	{
		Name:     "approval-status",
		Category: model.CategoryRegulatory,
		keywords: []string{
			"approved", "approval", "authorized", "authorised", "cleared",
			"complete response letter", "rejected", "withdrawn",
		},
	},
	{
		Name:     "trial-phase",
		Category: model.CategoryTrial,
		keywords: []string{"phase 1", "phase 2", "phase 3", "phase i", "enrollment", "enrolled", "trial"},
	},
	{
		Name:     "efficacy",
		Category: model.CategoryPublication,
		keywords: []string{"efficacy", "response rate", "reduction", "reduced", "survival", "endpoint"},
	},
}

// Finding is one snippet selected from a page
type Finding struct {
	Topic    string
	Category model.ClaimCategory
	Snippet  string
}

// SnippetExtractor selects topic sentences about a subject from pages
type SnippetExtractor struct {
	topics   []Topic
	maxChars int
}

// NewSnippetExtractor creates an extractor over DefaultTopics
func NewSnippetExtractor(maxChars int) *SnippetExtractor {
	if maxChars <= 0 {
		maxChars = 400
	}
	return &SnippetExtractor{topics: DefaultTopics, maxChars: maxChars}
}

// Extract returns at most one finding per topic, in topic order, from
// sentences that mention subject. When no topic sentence exists but the
// page is about subject, a single "coverage" finding built from the
// description or first matching sentence is returned.
func (e *SnippetExtractor) Extract(page *Page, subject string) []Finding {
	subject = strings.ToLower(strings.TrimSpace(subject))
	if subject == "" {
		return nil
	}

	var mentions []string
	for _, sentence := range splitSentences(page.Text()) {
		if strings.Contains(strings.ToLower(sentence), subject) {
			mentions = append(mentions, sentence)
		}
	}

	var findings []Finding
	for _, topic := range e.topics {
		for _, sentence := range mentions {
			if topic.matches(sentence) {
				findings = append(findings, Finding{
					Topic:    topic.Name,
					Category: topic.Category,
					Snippet:  e.clip(sentence),
				})
				break
			}
		}
	}
	if len(findings) > 0 {
		return findings
	}

	fallback := ""
	switch {
	case strings.Contains(strings.ToLower(page.Description), subject):
		fallback = page.Description
	case len(mentions) > 0:
		fallback = mentions[0]
	case strings.Contains(strings.ToLower(page.Title), subject):
		fallback = page.Title
	}
	if fallback == "" {
		return nil
	}
	return []Finding{{Topic: "coverage", Category: model.CategoryNews, Snippet: e.clip(fallback)}}
}

func (t Topic) matches(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, kw := range t.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// clip shortens s to maxChars on a word boundary
func (e *SnippetExtractor) clip(s string) string {
	if len(s) <= e.maxChars {
		return s
	}
	cut := strings.LastIndex(s[:e.maxChars], " ")
	if cut <= 0 {
		cut = e.maxChars
	}
	return strings.TrimSpace(s[:cut])
}

// splitSentences splits text after terminators followed by whitespace.
// Fragments shorter than 30 or longer than 500 characters are skipped.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder
	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 30 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				flush()
			}
		}
	}
	if current.Len() > 0 {
		flush()
	}
	return sentences
}
