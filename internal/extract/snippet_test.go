package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
)

const trialPage = `
<html>
<head>
	<title>Examplinib update | Pharma Wire</title>
	<meta name="description" content="Latest news on examplinib from the company.">
	<meta property="article:published_time" content="2026-03-10T08:30:00Z">
	<link rel="canonical" href="/news/examplinib-update">
	<script>var tracking = "examplinib was approved";</script>
</head>
<body>
	<nav><p>Examplinib menu entry that should never be read as content.</p></nav>
	<p>Examplinib was approved by the FDA for adults with advanced disease. It
	is the first drug in its class.</p>
	<p>The phase 3 trial of examplinib enrolled 420 patients across 12 sites.</p>
	<p>Examplinib reduced tumor size by 40% in the primary analysis cohort.</p>
</body>
</html>`

func TestParsePage_Metadata(t *testing.T) {
	page, err := ParsePage(trialPage, "https://pharmawire.example/news/123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if page.Title != "Examplinib update | Pharma Wire" {
		t.Errorf("Unexpected title: %q", page.Title)
	}
	if page.Description != "Latest news on examplinib from the company." {
		t.Errorf("Unexpected description: %q", page.Description)
	}
	if page.URL != "https://pharmawire.example/news/examplinib-update" {
		t.Errorf("Expected canonical url, got %q", page.URL)
	}
	want := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	if page.Published == nil || !page.Published.Equal(want) {
		t.Errorf("Expected published %v, got %v", want, page.Published)
	}
	if len(page.Paragraphs) != 3 {
		t.Errorf("Expected 3 paragraphs outside nav, got %d", len(page.Paragraphs))
	}
	if strings.Contains(page.Text(), "tracking") {
		t.Error("Script content leaked into page text")
	}
}

func TestParsePage_TimeElement(t *testing.T) {
	page, err := ParsePage(`<html><body><time datetime="2025-12-01">Dec 1</time><p>x</p></body></html>`, "https://a.example/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.Published == nil || page.Published.Format("2006-01-02") != "2025-12-01" {
		t.Errorf("Expected 2025-12-01, got %v", page.Published)
	}
}

func TestSnippetExtractor_Topics(t *testing.T) {
	page, err := ParsePage(trialPage, "https://pharmawire.example/news/123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	findings := NewSnippetExtractor(0).Extract(page, "Examplinib")
	if len(findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d: %+v", len(findings), findings)
	}

	expect := []struct {
		topic    string
		category model.ClaimCategory
		contains string
	}{
		{"approval-status", model.CategoryRegulatory, "approved by the FDA"},
		{"trial-phase", model.CategoryTrial, "420 patients"},
		{"efficacy", model.CategoryPublication, "40%"},
	}
	for i, e := range expect {
		if findings[i].Topic != e.topic {
			t.Errorf("finding %d: expected topic %s, got %s", i, e.topic, findings[i].Topic)
		}
		if findings[i].Category != e.category {
			t.Errorf("finding %d: expected category %s, got %s", i, e.category, findings[i].Category)
		}
		if !strings.Contains(findings[i].Snippet, e.contains) {
			t.Errorf("finding %d: expected snippet to contain %q, got %q", i, e.contains, findings[i].Snippet)
		}
	}
}

func TestSnippetExtractor_CoverageFallback(t *testing.T) {
	page := &Page{
		Title:       "Company pipeline",
		Description: "An overview of examplinib and other assets in development.",
	}

	findings := NewSnippetExtractor(0).Extract(page, "examplinib")
	if len(findings) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(findings))
	}
	if findings[0].Topic != "coverage" || findings[0].Category != model.CategoryNews {
		t.Errorf("Unexpected fallback finding: %+v", findings[0])
	}
}

func TestSnippetExtractor_UnrelatedPage(t *testing.T) {
	page := &Page{Title: "Weather", Paragraphs: []string{"It will rain across the region tomorrow afternoon."}}
	if findings := NewSnippetExtractor(0).Extract(page, "examplinib"); len(findings) != 0 {
		t.Errorf("Expected no findings, got %+v", findings)
	}
	if findings := NewSnippetExtractor(0).Extract(page, "  "); findings != nil {
		t.Errorf("Expected nil for empty subject, got %+v", findings)
	}
}

func TestSnippetExtractor_Clip(t *testing.T) {
	e := NewSnippetExtractor(20)
	got := e.clip("examplinib was approved for adults today")
	if len(got) > 20 {
		t.Errorf("Expected at most 20 chars, got %d (%q)", len(got), got)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("Expected trimmed clip, got %q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	text := "Short one. This sentence is long enough to be kept by the splitter. " +
		"And so is this second sentence that follows it!"
	sentences := splitSentences(text)
	if len(sentences) != 2 {
		t.Fatalf("Expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
	if !strings.HasSuffix(sentences[1], "!") {
		t.Errorf("Expected terminator kept, got %q", sentences[1])
	}
}
