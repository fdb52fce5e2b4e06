// Package gate checks a generated narrative sentence by sentence and keeps
// only sentences whose citations resolve to supported claims.
package gate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/truthgate/internal/llm"
	"github.com/ppiankov/truthgate/internal/model"
	"go.uber.org/zap"
)

var (
	// tokenRe finds anything shaped like a citation, valid or not
	tokenRe = regexp.MustCompile(`(?i)\[claim:([^\[\]]*)\]`)
	idRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// CitationMismatchError explains why a sentence was rejected
type CitationMismatchError struct {
	Sentence int
	ClaimID  string
	Reason   string
}

func (e *CitationMismatchError) Error() string {
	if e.ClaimID == "" {
		return fmt.Sprintf("sentence %d: %s", e.Sentence, e.Reason)
	}
	return fmt.Sprintf("sentence %d: claim %q %s", e.Sentence, e.ClaimID, e.Reason)
}

// Table is what the gate checks citations against
type Table struct {
	// Statuses holds every claim known to the request
	Statuses map[string]model.VerificationStatus
	// Included lists the claim ids that were given to the generator
	Included []string
}

// Result is the gated narrative
type Result struct {
	Text              string
	SupportedClaimIDs []string
	Abstained         bool
	Verdicts          []model.SentenceVerdict
}

// Check gates narrative against table. It is a pure function: the same
// inputs always produce the same result, and checking Result.Text again
// returns it unchanged.
func Check(narrative string, table Table) Result {
	included := make(map[string]bool, len(table.Included))
	for _, id := range table.Included {
		included[id] = true
	}

	var (
		accepted  []string
		supported = map[string]bool{}
		verdicts  []model.SentenceVerdict
	)
	for i, sentence := range SplitSentences(narrative) {
		v := judge(i, sentence, table.Statuses, included)
		verdicts = append(verdicts, v)
		if v.State != model.SentenceAccepted {
			zap.L().Debug("gate rejected sentence", zap.Int("index", i), zap.String("reason", v.Reason))
			continue
		}
		accepted = append(accepted, sentence)
		for _, id := range v.CitedIDs {
			supported[id] = true
		}
	}

	sentinel := strings.Contains(narrative, llm.AbstainSentinel)
	if sentinel || len(accepted) == 0 {
		return Result{Abstained: true, Verdicts: verdicts}
	}

	ids := make([]string, 0, len(supported))
	for id := range supported {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return Result{
		Text:              strings.Join(accepted, " "),
		SupportedClaimIDs: ids,
		Verdicts:          verdicts,
	}
}

// judge moves one sentence from pending to accepted or rejected
func judge(index int, sentence string, statuses map[string]model.VerificationStatus, included map[string]bool) model.SentenceVerdict {
	v := model.SentenceVerdict{Index: index, Text: sentence, State: model.SentencePending}

	ids, err := ParseCitations(index, sentence)
	if err != nil {
		return reject(v, err)
	}
	if len(ids) == 0 {
		return reject(v, &CitationMismatchError{Sentence: index, Reason: "has no citation"})
	}
	if strings.TrimSpace(tokenRe.ReplaceAllString(sentence, "")) == "" {
		return reject(v, &CitationMismatchError{Sentence: index, Reason: "has no content"})
	}
	v.State = model.SentenceCited
	v.CitedIDs = ids

	for _, id := range ids {
		status, known := statuses[id]
		switch {
		case !known:
			return reject(v, &CitationMismatchError{Sentence: index, ClaimID: id, Reason: "is unknown"})
		case !status.Supported():
			return reject(v, &CitationMismatchError{Sentence: index, ClaimID: id, Reason: "is " + string(status)})
		case !included[id]:
			return reject(v, &CitationMismatchError{Sentence: index, ClaimID: id, Reason: "was not in the prompt"})
		}
	}
	v.State = model.SentenceAccepted
	return v
}

func reject(v model.SentenceVerdict, err error) model.SentenceVerdict {
	v.State = model.SentenceRejected
	v.Reason = err.Error()
	return v
}

// ParseCitations returns the sorted unique claim ids cited in sentence.
// Ids are lower-cased before validation. Any malformed token, including an
// unclosed "[claim:", is an error.
func ParseCitations(index int, sentence string) ([]string, error) {
	opened := strings.Count(strings.ToLower(sentence), "[claim:")
	matches := tokenRe.FindAllStringSubmatch(sentence, -1)
	if opened != len(matches) {
		return nil, &CitationMismatchError{Sentence: index, Reason: "has a malformed citation"}
	}

	seen := map[string]bool{}
	var ids []string
	for _, m := range matches {
		for _, part := range strings.Split(m[1], ",") {
			id := strings.ToLower(strings.TrimSpace(part))
			id = strings.TrimPrefix(id, "claim:")
			if !idRe.MatchString(id) {
				return nil, &CitationMismatchError{Sentence: index, Reason: fmt.Sprintf("has a malformed citation %q", m[0])}
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
