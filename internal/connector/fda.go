package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
)

// FDAConnector searches openFDA drug labels
type FDAConnector struct {
	fetcher    *Fetcher
	baseURL    string
	apiKey     string
	maxResults int
	now        Clock
}

// NewFDAConnector creates an openFDA connector
func NewFDAConnector(fetcher *Fetcher, cfg model.EndpointConfig) *FDAConnector {
	return &FDAConnector{
		fetcher:    fetcher,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: maxResults(cfg.MaxResults),
		now:        utcNow,
	}
}

// Name returns the source name
func (c *FDAConnector) Name() string {
	return "openfda"
}

type fdaResponse struct {
	Results []fdaLabel `json:"results"`
}

type fdaLabel struct {
	ID                  string   `json:"id"`
	SetID               string   `json:"set_id"`
	EffectiveTime       string   `json:"effective_time"`
	IndicationsAndUsage []string `json:"indications_and_usage"`
	OpenFDA             struct {
		BrandName        []string `json:"brand_name"`
		GenericName      []string `json:"generic_name"`
		ManufacturerName []string `json:"manufacturer_name"`
	} `json:"openfda"`
}

// Search returns one hit per label plus an approval-status hit for the
// query. openFDA answers 404 when nothing matches, which yields no hits.
func (c *FDAConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	phrase := quotePhrase(query)
	search := fmt.Sprintf(`openfda.generic_name:"%s" OR openfda.brand_name:"%s"`, phrase, phrase)
	params := url.Values{}
	params.Set("search", search)
	params.Set("limit", strconv.Itoa(c.maxResults))
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	res, err := c.fetcher.FetchWithRetry(ctx, c.baseURL+"/drug/label.json?"+params.Encode())
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, eris.Wrap(err, "openfda: search labels")
	}

	var body fdaResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, eris.Wrap(err, "openfda: decode labels")
	}

	fetchedAt := c.now()
	var hits []model.RawHit
	firstName := ""
	for _, label := range body.Results {
		if label.SetID == "" {
			continue
		}
		name := labelName(label, query)
		indications := strings.Join(label.IndicationsAndUsage, " ")
		if indications == "" {
			continue
		}
		if firstName == "" {
			firstName = name
		}

		snippet := truncate(indications, 300)
		if effective := parseFDADate(label.EffectiveTime); effective != nil {
			snippet = fmt.Sprintf("%s (label effective %s)", snippet, effective.Format("2006-01-02"))
		}

		// openFDA serves the current label, so the observation time is the
		// freshness reference rather than the label revision date
		hits = append(hits, model.RawHit{
			SourceName: c.Name(),
			URL:        c.labelURL(label.SetID),
			DocumentID: label.SetID,
			FetchedAt:  fetchedAt,
			Query:      query,
			Snippet:    snippet,
			ClaimKey:   "fda-label-" + label.SetID,
			ClaimText:  fmt.Sprintf("%s labeling: %s", name, truncate(indications, 160)),
			Category:   model.CategoryRegulatory,
		})
	}

	// A label on file means the product is marketed under FDA approval
	if len(hits) > 0 {
		first := hits[0]
		hits = append(hits, model.RawHit{
			SourceName: c.Name(),
			URL:        first.URL,
			DocumentID: first.DocumentID,
			FetchedAt:  fetchedAt,
			Query:      query,
			Snippet:    fmt.Sprintf("FDA-approved prescribing information is on file for %s (set id %s).", firstName, first.DocumentID),
			ClaimKey:   TopicKey(query, ApprovalTopic),
			ClaimText:  fmt.Sprintf("%s is approved by the FDA", query),
			Category:   model.CategoryRegulatory,
		})
	}
	return hits, nil
}

func (c *FDAConnector) labelURL(setID string) string {
	return c.baseURL + "/drug/label.json?search=set_id:" + url.QueryEscape(setID)
}

// quotePhrase escapes s for use inside a quoted openFDA search phrase
func quotePhrase(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func labelName(label fdaLabel, fallback string) string {
	brand := firstOf(label.OpenFDA.BrandName)
	generic := firstOf(label.OpenFDA.GenericName)
	switch {
	case brand != "" && generic != "" && !strings.EqualFold(brand, generic):
		return fmt.Sprintf("%s (%s)", brand, strings.ToLower(generic))
	case brand != "":
		return brand
	case generic != "":
		return generic
	}
	return fallback
}

func parseFDADate(value string) *time.Time {
	t, err := time.Parse("20060102", value)
	if err != nil {
		return nil
	}
	return &t
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func maxResults(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}
