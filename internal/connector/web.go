package connector

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/extract"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/util"
	"github.com/ppiankov/truthgate/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WebConnector reads configured web pages and extracts topic snippets
// about the query
type WebConnector struct {
	fetcher   *Fetcher
	robots    *util.RobotsChecker
	limiter   *worker.Limiter
	extractor *extract.SnippetExtractor
	pages     []string
	now       Clock
}

// NewWebConnector creates a web connector. robots may be nil to skip
// robots.txt checks; limiter may be nil to ignore crawl delays.
func NewWebConnector(fetcher *Fetcher, robots *util.RobotsChecker, limiter *worker.Limiter, pages []string) *WebConnector {
	return &WebConnector{
		fetcher:   fetcher,
		robots:    robots,
		limiter:   limiter,
		extractor: extract.NewSnippetExtractor(400),
		pages:     pages,
		now:       utcNow,
	}
}

// Name returns the source name
func (c *WebConnector) Name() string {
	return "web"
}

// Search fetches every page for query. Pages that fail are skipped; an
// error is returned only when every page failed.
func (c *WebConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(c.pages) == 0 {
		return nil, nil
	}

	perPage := make([][]model.RawHit, len(c.pages))
	errs := make([]error, len(c.pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, tmpl := range c.pages {
		i, tmpl := i, tmpl
		g.Go(func() error {
			pageURL := strings.ReplaceAll(tmpl, "{query}", url.QueryEscape(query))
			perPage[i], errs[i] = c.page(gctx, pageURL, query)
			return nil
		})
	}
	_ = g.Wait()

	var hits []model.RawHit
	var firstErr error
	failed := 0
	for i := range c.pages {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			zap.L().Warn("web page skipped", zap.String("page", c.pages[i]), zap.Error(errs[i]))
			continue
		}
		hits = append(hits, perPage[i]...)
	}
	if failed == len(c.pages) {
		return nil, firstErr
	}
	return hits, nil
}

func (c *WebConnector) page(ctx context.Context, pageURL, query string) ([]model.RawHit, error) {
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, pageURL)
		if err != nil {
			return nil, eris.Wrap(err, "web: robots")
		}
		if !allowed {
			return nil, eris.Errorf("web: robots.txt disallows %s", pageURL)
		}
		if delay > crawlDelayCap {
			delay = crawlDelayCap
		}
		if c.limiter != nil && delay > 0 {
			if err := c.limiter.WaitWithDelay(ctx, pageURL, delay); err != nil {
				return nil, eris.Wrap(err, "web: crawl delay")
			}
		}
	}

	res, err := c.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "web: fetch %s", pageURL)
	}
	page, err := extract.ParsePage(res.Text(), res.FinalURL)
	if err != nil {
		return nil, eris.Wrap(err, "web: parse page")
	}

	host := ""
	if u, err := url.Parse(page.URL); err == nil {
		host = u.Hostname()
	}
	fetchedAt := c.now()

	var hits []model.RawHit
	for _, f := range c.extractor.Extract(page, query) {
		key := TopicKey(query, f.Topic)
		if f.Topic == "coverage" {
			key = TopicKey(query, "coverage "+host)
		}
		hits = append(hits, model.RawHit{
			SourceName:  host,
			URL:         page.URL,
			PublishedAt: page.Published,
			FetchedAt:   fetchedAt,
			Query:       query,
			Snippet:     f.Snippet,
			ClaimKey:    key,
			ClaimText:   f.Snippet,
			Category:    f.Category,
		})
	}
	return hits, nil
}

// crawlDelayCap bounds robots.txt crawl delays honored per request
const crawlDelayCap = 5 * time.Second
