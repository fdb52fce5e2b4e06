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

// ClinicalTrialsConnector searches the ClinicalTrials.gov v2 API
type ClinicalTrialsConnector struct {
	fetcher    *Fetcher
	baseURL    string
	maxResults int
	now        Clock
}

// NewClinicalTrialsConnector creates a ClinicalTrials.gov connector
func NewClinicalTrialsConnector(fetcher *Fetcher, cfg model.EndpointConfig) *ClinicalTrialsConnector {
	return &ClinicalTrialsConnector{
		fetcher:    fetcher,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxResults: maxResults(cfg.MaxResults),
		now:        utcNow,
	}
}

// Name returns the source name
func (c *ClinicalTrialsConnector) Name() string {
	return "clinicaltrials.gov"
}

type ctgovResponse struct {
	Studies []struct {
		Protocol ctgovProtocol `json:"protocolSection"`
	} `json:"studies"`
}

type ctgovProtocol struct {
	Identification struct {
		NCTID      string `json:"nctId"`
		BriefTitle string `json:"briefTitle"`
	} `json:"identificationModule"`
	Status struct {
		OverallStatus  string `json:"overallStatus"`
		LastUpdatePost struct {
			Date string `json:"date"`
		} `json:"lastUpdatePostDateStruct"`
	} `json:"statusModule"`
	Design struct {
		Phases     []string `json:"phases"`
		Enrollment struct {
			Count int `json:"count"`
		} `json:"enrollmentInfo"`
	} `json:"designModule"`
	Sponsors struct {
		LeadSponsor struct {
			Name string `json:"name"`
		} `json:"leadSponsor"`
	} `json:"sponsorCollaboratorsModule"`
}

// Search returns one hit per study
func (c *ClinicalTrialsConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query.term", query)
	params.Set("pageSize", strconv.Itoa(c.maxResults))
	params.Set("format", "json")

	res, err := c.fetcher.FetchWithRetry(ctx, c.baseURL+"/studies?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "clinicaltrials: search studies")
	}
	var body ctgovResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, eris.Wrap(err, "clinicaltrials: decode studies")
	}

	fetchedAt := c.now()
	var hits []model.RawHit
	for _, study := range body.Studies {
		p := study.Protocol
		nct := strings.TrimSpace(p.Identification.NCTID)
		if nct == "" {
			continue
		}
		status := humanize(p.Status.OverallStatus)
		phase := "n/a"
		if len(p.Design.Phases) > 0 {
			parts := make([]string, len(p.Design.Phases))
			for i, ph := range p.Design.Phases {
				parts[i] = humanize(ph)
			}
			phase = strings.Join(parts, "/")
		}

		hits = append(hits, model.RawHit{
			SourceName:  c.Name(),
			URL:         "https://clinicaltrials.gov/study/" + nct,
			DocumentID:  nct,
			PublishedAt: parseISODate(p.Status.LastUpdatePost.Date),
			FetchedAt:   fetchedAt,
			Query:       query,
			Snippet: fmt.Sprintf("Phase: %s | Status: %s | Enrollment: %d | Sponsor: %s",
				phase, status, p.Design.Enrollment.Count, p.Sponsors.LeadSponsor.Name),
			ClaimKey:  "ctgov-" + nct,
			ClaimText: fmt.Sprintf("%s: %s", strings.TrimSpace(p.Identification.BriefTitle), status),
			Category:  model.CategoryTrial,
		})
	}
	return hits, nil
}

// humanize turns enum values such as ACTIVE_NOT_RECRUITING into words
func humanize(enum string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(enum), "_", " "))
}

func parseISODate(value string) *time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
