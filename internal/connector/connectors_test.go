package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/truthgate/internal/cache"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/util"
	"github.com/ppiankov/truthgate/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func endpoint(url string) model.EndpointConfig {
	return model.EndpointConfig{Enabled: true, BaseURL: url, MaxResults: 3}
}

func TestFDAConnector_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("search"), `openfda.generic_name:"examplinib"`)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = fmt.Fprint(w, `{"results":[
			{"set_id":"abc-123","effective_time":"20240115",
			 "indications_and_usage":["EXAMPLIX is indicated for the treatment of adults with advanced disease."],
			 "openfda":{"brand_name":["Examplix"],"generic_name":["EXAMPLINIB"]}},
			{"set_id":"","indications_and_usage":["skipped"]}
		]}`)
	}))
	defer server.Close()

	c := NewFDAConnector(newTestFetcher(), endpoint(server.URL))
	c.now = fixedClock
	hits, err := c.Search(context.Background(), "examplinib")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	label := hits[0]
	assert.Equal(t, "openfda", label.SourceName)
	assert.Equal(t, "fda-label-abc-123", label.ClaimKey)
	assert.Equal(t, model.CategoryRegulatory, label.Category)
	assert.Equal(t, fixedNow, label.FetchedAt)
	assert.Nil(t, label.PublishedAt, "current label is referenced by fetch time")
	assert.Contains(t, label.Snippet, "(label effective 2024-01-15)")
	assert.Contains(t, label.ClaimText, "Examplix (examplinib) labeling:")
	assert.True(t, strings.HasPrefix(label.URL, server.URL))

	approval := hits[1]
	assert.Equal(t, "examplinib-approval-status", approval.ClaimKey)
	assert.Contains(t, approval.ClaimText, "approved")
}

func TestFDAConnector_NotFoundIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	hits, err := NewFDAConnector(newTestFetcher(), endpoint(server.URL)).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFDAConnector_QuotesAreEscaped(t *testing.T) {
	var search string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search = r.URL.Query().Get("search")
		_, _ = fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	_, err := NewFDAConnector(newTestFetcher(), endpoint(server.URL)).Search(context.Background(), `exampl"inib\`)
	require.NoError(t, err)
	assert.Equal(t, `openfda.generic_name:"exampl\"inib\\" OR openfda.brand_name:"exampl\"inib\\"`, search)
}

func TestPubMedConnector_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "examplinib", r.URL.Query().Get("term"))
			_, _ = fmt.Fprint(w, `{"esearchresult":{"idlist":["111","222","333"]}}`)
		case "/esummary.fcgi":
			assert.Equal(t, "111,222,333", r.URL.Query().Get("id"))
			_, _ = fmt.Fprint(w, `{"result":{"uids":["111","222","333"],
				"111":{"uid":"111","title":"Examplinib in advanced disease.","pubdate":"2025 Feb 03","fulljournalname":"J Onc"},
				"222":{"uid":"222","title":"Examplinib dosing.","pubdate":"2024 Spring","source":"Clin Pharm"},
				"333":{"uid":"333","title":"","pubdate":"2023"}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewPubMedConnector(newTestFetcher(), endpoint(server.URL))
	c.now = fixedClock
	hits, err := c.Search(context.Background(), "examplinib")
	require.NoError(t, err)
	require.Len(t, hits, 2, "untitled summaries are skipped")

	assert.Equal(t, "pubmed-111", hits[0].ClaimKey)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/111/", hits[0].URL)
	assert.Equal(t, model.CategoryPublication, hits[0].Category)
	require.NotNil(t, hits[0].PublishedAt)
	assert.Equal(t, "2025-02-03", hits[0].PublishedAt.Format("2006-01-02"))
	assert.Contains(t, hits[1].Snippet, "Clin Pharm")
	require.NotNil(t, hits[1].PublishedAt)
	assert.Equal(t, 2024, hits[1].PublishedAt.Year())
}

func TestParsePubDate(t *testing.T) {
	tests := map[string]string{
		"2025 Feb 3":   "2025-02-03",
		"2025 Feb":     "2025-02-01",
		"2025":         "2025-01-01",
		"2025 Jan-Feb": "2025-01-01",
	}
	for in, want := range tests {
		got := parsePubDate(in)
		if assert.NotNil(t, got, in) {
			assert.Equal(t, want, got.Format("2006-01-02"), in)
		}
	}
	assert.Nil(t, parsePubDate("unknown"))
}

func TestClinicalTrialsConnector_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/studies", r.URL.Path)
		assert.Equal(t, "examplinib", r.URL.Query().Get("query.term"))
		_, _ = fmt.Fprint(w, `{"studies":[{"protocolSection":{
			"identificationModule":{"nctId":"NCT01234567","briefTitle":"Examplinib Phase 3 Study"},
			"statusModule":{"overallStatus":"ACTIVE_NOT_RECRUITING","lastUpdatePostDateStruct":{"date":"2026-02-01"}},
			"designModule":{"phases":["PHASE3"],"enrollmentInfo":{"count":420}},
			"sponsorCollaboratorsModule":{"leadSponsor":{"name":"Example Pharma"}}}}]}`)
	}))
	defer server.Close()

	c := NewClinicalTrialsConnector(newTestFetcher(), endpoint(server.URL))
	c.now = fixedClock
	hits, err := c.Search(context.Background(), "examplinib")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	h := hits[0]
	assert.Equal(t, "ctgov-NCT01234567", h.ClaimKey)
	assert.Equal(t, "https://clinicaltrials.gov/study/NCT01234567", h.URL)
	assert.Equal(t, "Phase: phase3 | Status: active not recruiting | Enrollment: 420 | Sponsor: Example Pharma", h.Snippet)
	assert.Equal(t, "Examplinib Phase 3 Study: active not recruiting", h.ClaimText)
	assert.Equal(t, model.CategoryTrial, h.Category)
	require.NotNil(t, h.PublishedAt)
	assert.Equal(t, "2026-02-01", h.PublishedAt.Format("2006-01-02"))
}

const newsHTML = `<html><head><title>Examplinib news</title>
<meta property="article:published_time" content="2026-03-11T10:00:00Z"></head>
<body><p>Examplinib was not approved by the FDA after a complete response letter this week.</p></body></html>`

func TestWebConnector_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
		case "/search":
			assert.Equal(t, "examplinib", r.URL.Query().Get("q"))
			_, _ = fmt.Fprint(w, newsHTML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	robots := util.NewRobotsChecker("truthgate-test/1.0", time.Second, nil)
	pages := []string{server.URL + "/search?q={query}", server.URL + "/private/page"}
	c := NewWebConnector(newTestFetcher(), robots, worker.NewLimiter(0, 1), pages)
	c.now = fixedClock

	hits, err := c.Search(context.Background(), "examplinib")
	require.NoError(t, err, "one failing page does not fail the search")
	require.Len(t, hits, 1)

	h := hits[0]
	assert.Equal(t, "examplinib-approval-status", h.ClaimKey)
	assert.Equal(t, model.CategoryRegulatory, h.Category)
	assert.Equal(t, "127.0.0.1", h.SourceName)
	require.NotNil(t, h.PublishedAt)
	assert.Contains(t, h.ClaimText, "not approved")
}

func TestWebConnector_AllPagesFail(t *testing.T) {
	noSleep(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewWebConnector(newTestFetcher(), nil, nil, []string{server.URL + "/a"})
	_, err := c.Search(context.Background(), "examplinib")
	assert.Error(t, err)
}

type stubConnector struct {
	name  string
	hits  []model.RawHit
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Search(ctx context.Context, query string) ([]model.RawHit, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.hits, s.err
}

func TestRetriever_Outcomes(t *testing.T) {
	ok := &stubConnector{name: "ok", hits: []model.RawHit{{ClaimKey: "a"}, {ClaimKey: "b"}}}
	broken := &stubConnector{name: "broken", err: fmt.Errorf("boom")}
	slow := &stubConnector{name: "slow", hits: []model.RawHit{{ClaimKey: "late"}}, delay: time.Second}

	r := NewRetriever(50 * time.Millisecond)
	results := r.Retrieve(context.Background(), []Call{
		{Connector: ok, Query: "q"},
		{Connector: broken, Query: "q"},
		{Connector: slow, Query: "q"},
	})
	require.Len(t, results, 3)

	assert.Len(t, results[0].Hits, 2)
	assert.Equal(t, model.SourceOutcome{Connector: "ok", Query: "q", Hits: 2}, results[0].Outcome)

	assert.Empty(t, results[1].Hits)
	assert.Contains(t, results[1].Outcome.Error, "boom")
	assert.False(t, results[1].Outcome.TimedOut)

	assert.Empty(t, results[2].Hits)
	assert.True(t, results[2].Outcome.TimedOut)
	assert.Contains(t, results[2].Outcome.Error, ErrTimeout.Error())
}

func TestCachedConnector(t *testing.T) {
	inner := &stubConnector{name: "pubmed", hits: []model.RawHit{{ClaimKey: "pubmed-1"}}}
	c := NewCachedConnector(inner, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	for i := 0; i < 3; i++ {
		hits, err := c.Search(context.Background(), "examplinib")
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, "pubmed", c.Name())

	failing := &stubConnector{name: "fda", err: fmt.Errorf("down")}
	fc := NewCachedConnector(failing, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
	_, _ = fc.Search(context.Background(), "x")
	_, _ = fc.Search(context.Background(), "x")
	assert.Equal(t, int32(2), failing.calls.Load(), "errors are not cached")
}

func TestRegistryFromConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Connectors.Web.Enabled = true
	cfg.Connectors.Web.Pages = []string{"https://news.example/search?q={query}"}
	cfg.Connectors.PubMed.Enabled = false

	r := NewRegistryFromConfig(cfg)
	assert.Equal(t, []string{"clinicaltrials.gov", "openfda", "web"}, r.Names())

	c, ok := r.Get("openfda")
	require.True(t, ok)
	_, cached := c.(*CachedConnector)
	assert.True(t, cached)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "Examplinib 5...", truncate("Examplinib 5 µg daily", 14))

	got := truncate(strings.Repeat("µ", 10), 5)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, "µµ...", got)

	assert.Equal(t, "short text", truncate("short   text", 20))
}

func TestTopicKey(t *testing.T) {
	assert.Equal(t, "examplinib-approval-status", TopicKey(" Examplinib ", ApprovalTopic))
}
