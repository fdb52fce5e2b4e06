package connector

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Call is one connector query
type Call struct {
	Connector Connector
	Query     string
}

// Retrieval is the result of one call
type Retrieval struct {
	Hits    []model.RawHit
	Outcome model.SourceOutcome
}

// Retriever runs connector calls concurrently under a per-call timeout
type Retriever struct {
	timeout time.Duration
}

// NewRetriever creates a retriever. A zero timeout relies on ctx alone.
func NewRetriever(timeout time.Duration) *Retriever {
	return &Retriever{timeout: timeout}
}

// Retrieve runs every call and returns one Retrieval per call, in call
// order. Failures and timeouts produce empty hits and a recorded outcome;
// Retrieve itself never fails.
func (r *Retriever) Retrieve(ctx context.Context, calls []Call) []Retrieval {
	results := make([]Retrieval, len(calls))
	var g errgroup.Group

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = r.run(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Retriever) run(ctx context.Context, call Call) Retrieval {
	name := call.Connector.Name()
	outcome := model.SourceOutcome{Connector: name, Query: call.Query}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	hits, err := call.Connector.Search(callCtx, call.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &Error{Connector: name, Query: call.Query, Err: ErrTimeout}
			outcome.TimedOut = true
		} else {
			err = &Error{Connector: name, Query: call.Query, Err: err}
		}
		outcome.Error = err.Error()
		zap.L().Warn("connector failed",
			zap.String("connector", name),
			zap.String("query", call.Query),
			zap.Bool("timed_out", outcome.TimedOut),
			zap.Error(err))
		return Retrieval{Outcome: outcome}
	}

	outcome.Hits = len(hits)
	zap.L().Debug("connector returned",
		zap.String("connector", name),
		zap.String("query", call.Query),
		zap.Int("hits", len(hits)))
	return Retrieval{Hits: hits, Outcome: outcome}
}
