// Package connector retrieves raw evidence hits from external sources.
// Connector failures never abort a request; they become empty results
// with a recorded outcome.
package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/normalize"
)

// ErrTimeout is reported when a connector exceeds its time budget
var ErrTimeout = errors.New("connector timeout")

// Error wraps a failure of a named connector
type Error struct {
	Connector string
	Query     string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector %s (%q): %v", e.Connector, e.Query, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Connector searches one evidence source
type Connector interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.RawHit, error)
}

// Clock returns the current time
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// TopicKey builds the claim key shared by every source reporting on the
// same topic for subject, e.g. "examplinib-approval-status"
func TopicKey(subject, topic string) string {
	return normalize.CanonicalClaimID(strings.TrimSpace(subject) + " " + topic)
}

// ApprovalTopic is the topic of regulatory approval claims
const ApprovalTopic = "approval-status"

// truncate shortens s to at most n bytes on a word boundary
func truncate(s string, n int) string {
	s = normalize.NormalizeWhitespace(s)
	if len(s) <= n {
		return s
	}
	head := normalize.Clip(s, n)
	if cut := strings.LastIndex(head, " "); cut > 0 {
		head = head[:cut]
	}
	return strings.TrimSpace(head) + "..."
}
