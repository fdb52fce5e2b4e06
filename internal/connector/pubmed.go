package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
)

// PubMedConnector searches PubMed through the NCBI E-utilities
type PubMedConnector struct {
	fetcher    *Fetcher
	baseURL    string
	apiKey     string
	maxResults int
	now        Clock
}

// NewPubMedConnector creates a PubMed connector
func NewPubMedConnector(fetcher *Fetcher, cfg model.EndpointConfig) *PubMedConnector {
	return &PubMedConnector{
		fetcher:    fetcher,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults(cfg.MaxResults),
		now:        utcNow,
	}
}

// Name returns the source name
func (c *PubMedConnector) Name() string {
	return "pubmed"
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedSummary struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	PubDate         string `json:"pubdate"`
	Source          string `json:"source"`
	FullJournalName string `json:"fulljournalname"`
}

// pubDateLayouts are the PubMed pubdate shapes, most specific first
var pubDateLayouts = []string{"2006 Jan 2", "2006 Jan", "2006"}

// Search runs esearch for ids and esummary for their metadata
func (c *PubMedConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	ids, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	summaries, err := c.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	fetchedAt := c.now()
	var hits []model.RawHit
	for _, id := range ids {
		s, ok := summaries[id]
		if !ok || strings.TrimSpace(s.Title) == "" {
			continue
		}
		journal := s.FullJournalName
		if journal == "" {
			journal = s.Source
		}
		title := strings.TrimSpace(s.Title)

		hits = append(hits, model.RawHit{
			SourceName:  c.Name(),
			URL:         fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", id),
			DocumentID:  "PMID:" + id,
			PublishedAt: parsePubDate(s.PubDate),
			FetchedAt:   fetchedAt,
			Query:       query,
			Snippet:     fmt.Sprintf("%s %s (%s).", title, journal, s.PubDate),
			ClaimKey:    "pubmed-" + id,
			ClaimText:   title,
			Category:    model.CategoryPublication,
		})
	}
	return hits, nil
}

func (c *PubMedConnector) search(ctx context.Context, query string) ([]string, error) {
	params := c.params()
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(c.maxResults))
	params.Set("sort", "relevance")

	res, err := c.fetcher.FetchWithRetry(ctx, c.baseURL+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: esearch")
	}
	var body esearchResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, eris.Wrap(err, "pubmed: decode esearch")
	}
	return body.Result.IDList, nil
}

func (c *PubMedConnector) summaries(ctx context.Context, ids []string) (map[string]pubmedSummary, error) {
	params := c.params()
	params.Set("id", strings.Join(ids, ","))

	res, err := c.fetcher.FetchWithRetry(ctx, c.baseURL+"/esummary.fcgi?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "pubmed: esummary")
	}

	// The result object mixes a "uids" array with one object per id
	var body struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, eris.Wrap(err, "pubmed: decode esummary")
	}

	out := make(map[string]pubmedSummary, len(ids))
	for _, id := range ids {
		raw, ok := body.Result[id]
		if !ok {
			continue
		}
		var s pubmedSummary
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, eris.Wrapf(err, "pubmed: decode summary %s", id)
		}
		out[id] = s
	}
	return out, nil
}

func (c *PubMedConnector) params() url.Values {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("retmode", "json")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	return params
}

func parsePubDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	// Seasonal or ranged dates such as "2024 Spring" or "2024 Jan-Feb"
	if len(value) >= 4 {
		if t, err := time.Parse("2006", value[:4]); err == nil {
			return &t
		}
	}
	return nil
}
