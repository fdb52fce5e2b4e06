// Package normalize turns connector hits into schema-valid evidence records.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/truthgate/internal/model"
	"go.uber.org/zap"
)

// SchemaError reports a hit that cannot become an EvidenceRecord
type SchemaError struct {
	Source string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s: %s %s", e.Source, e.Field, e.Reason)
}

// Normalizer converts RawHits into EvidenceRecords with empty quality
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer creates a normalizer logging to the global logger
func NewNormalizer() *Normalizer {
	return &Normalizer{log: zap.L().Named("normalize")}
}

// Normalize converts one hit. Quality fields are left for the scorer.
func (n *Normalizer) Normalize(hit model.RawHit) (model.EvidenceRecord, error) {
	if strings.TrimSpace(hit.URL) == "" {
		return model.EvidenceRecord{}, &SchemaError{Source: hit.SourceName, Field: "url", Reason: "missing"}
	}
	u, err := url.Parse(hit.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.EvidenceRecord{}, &SchemaError{Source: hit.SourceName, Field: "url", Reason: "not an absolute http(s) url"}
	}
	if hit.FetchedAt.IsZero() {
		return model.EvidenceRecord{}, &SchemaError{Source: hit.SourceName, Field: "fetched_at", Reason: "missing"}
	}

	claimID := CanonicalClaimID(hit.ClaimKey)
	if claimID == "" {
		claimID = CanonicalClaimID(hit.Query)
	}
	if claimID == "" {
		return model.EvidenceRecord{}, &SchemaError{Source: hit.SourceName, Field: "claim_key", Reason: "cannot derive claim id"}
	}

	snippet := NormalizeWhitespace(hit.Snippet)
	claimText := NormalizeWhitespace(hit.ClaimText)
	if claimText == "" {
		claimText = FirstSentence(snippet)
	}

	var published = hit.PublishedAt
	if published != nil && published.IsZero() {
		published = nil
	}

	return model.EvidenceRecord{
		ClaimID:   claimID,
		ClaimText: claimText,
		Category:  hit.Category,
		Source: model.Source{
			Name:        hit.SourceName,
			URL:         hit.URL,
			DocumentID:  hit.DocumentID,
			PublishedAt: published,
		},
		Retrieval: model.Retrieval{
			FetchedAt: hit.FetchedAt,
			Query:     hit.Query,
			Snippet:   snippet,
			Hash:      SnippetHash(snippet),
		},
	}, nil
}

// NormalizeAll converts hits, dropping and logging the ones that fail.
// The returned signals describe each drop.
func (n *Normalizer) NormalizeAll(hits []model.RawHit) ([]model.EvidenceRecord, []model.Signal) {
	records := make([]model.EvidenceRecord, 0, len(hits))
	var signals []model.Signal
	for _, hit := range hits {
		rec, err := n.Normalize(hit)
		if err != nil {
			n.log.Warn("dropping hit", zap.String("source", hit.SourceName), zap.String("url", hit.URL), zap.Error(err))
			signals = append(signals, model.Signal{
				Type:        model.SignalSchemaDrop,
				Severity:    model.SeverityWarning,
				Description: err.Error(),
				Data: map[string]interface{}{
					"source": hit.SourceName,
					"url":    hit.URL,
				},
			})
			continue
		}
		records = append(records, rec)
	}
	return records, signals
}

// CanonicalClaimID lower-cases key and collapses characters outside
// [a-z0-9._-] into single dashes
func CanonicalClaimID(key string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SnippetHash returns the hex sha256 of the normalized, lower-cased snippet
func SnippetHash(snippet string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(NormalizeWhitespace(snippet))))
	return hex.EncodeToString(sum[:])
}

// FirstSentence returns text up to and including the first terminator
func FirstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(text) || text[i+1] == ' ' {
				return strings.TrimSpace(text[:i+1])
			}
		}
	}
	return strings.TrimSpace(text)
}

// Clip returns the longest prefix of s that is at most n bytes and ends on
// a rune boundary
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
