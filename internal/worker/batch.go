package worker

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Researcher answers one research request
type Researcher interface {
	Run(ctx context.Context, req model.Request) *model.Response
}

// ResearchJob runs one request through a Researcher
type ResearchJob struct {
	Request    model.Request
	Researcher Researcher
}

// Execute runs the request unless ctx is already done
func (j *ResearchJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &ResearchResult{Request: j.Request, Error: eris.Wrapf(err, "research %s", j.Request.Molecule)}
	}
	start := time.Now()
	resp := j.Researcher.Run(ctx, j.Request)
	return &ResearchResult{Request: j.Request, Response: resp, Elapsed: time.Since(start)}
}

// ResearchResult is the outcome of a ResearchJob
type ResearchResult struct {
	Request  model.Request
	Response *model.Response
	Elapsed  time.Duration
	Error    error
}

// GetError returns the job error
func (r *ResearchResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many research requests with bounded parallelism
type BatchProcessor struct {
	researcher  Researcher
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(researcher Researcher, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		researcher:  researcher,
		concurrency: concurrency,
	}
}

// ProcessRequests runs reqs and returns one result per request, in order
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []model.Request) []*ResearchResult {
	if len(reqs) == 0 {
		return []*ResearchResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	for _, req := range reqs {
		pool.Submit(&ResearchJob{Request: req, Researcher: b.researcher})
	}
	results := pool.Wait()

	out := make([]*ResearchResult, len(reqs))
	for i := range reqs {
		if i < len(results) {
			if rr, ok := results[i].(*ResearchResult); ok {
				out[i] = rr
				continue
			}
		}
		out[i] = &ResearchResult{Request: reqs[i], Error: eris.Errorf("research %s: not run", reqs[i].Molecule)}
	}

	failed := 0
	for _, r := range out {
		if r.Error != nil {
			failed++
		}
	}
	zap.L().Info("batch complete", zap.Int("requests", len(reqs)), zap.Int("failed", failed))
	return out
}

// ProcessFile reads requests from path and runs them
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string, base model.Request) ([]*ResearchResult, error) {
	reqs, err := ReadRequestsFromFile(path, base)
	if err != nil {
		return nil, eris.Wrap(err, "read requests")
	}
	return b.ProcessRequests(ctx, reqs), nil
}

// ReadRequestsFromFile reads one request per line. A line is a molecule
// name, optionally followed by "|" and a question. Blank lines and lines
// starting with # are skipped; duplicate lines are dropped. Every request
// copies the remaining fields of base.
func ReadRequestsFromFile(path string, base model.Request) ([]model.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var reqs []model.Request
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		molecule, query, _ := strings.Cut(line, "|")
		molecule = strings.TrimSpace(molecule)
		query = strings.TrimSpace(query)
		if molecule == "" {
			continue
		}

		key := strings.ToLower(molecule) + "\x00" + query
		if seen[key] {
			continue
		}
		seen[key] = true

		req := base
		req.Molecule = molecule
		if query != "" {
			req.Query = query
		}
		reqs = append(reqs, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scan file")
	}
	return reqs, nil
}
