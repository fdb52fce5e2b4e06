// Package extract pulls evidence snippets out of fetched HTML pages.
package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Page is the readable content of an HTML document
type Page struct {
	URL         string
	Title       string
	Description string
	Published   *time.Time
	Paragraphs  []string
}

// publishedMeta lists meta names carrying a publication timestamp
var publishedMeta = map[string]bool{
	"article:published_time":    true,
	"article:modified_time":     true,
	"og:updated_time":           true,
	"date":                      true,
	"dc.date":                   true,
	"citation_publication_date": true,
}

// publishedLayouts are tried in order when parsing publication timestamps
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParsePage parses htmlContent fetched from sourceURL. A canonical link
// in the document replaces sourceURL when it resolves to http(s).
func ParsePage(htmlContent, sourceURL string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse source url")
	}

	page := &Page{URL: sourceURL}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "footer":
				return
			case "title":
				if page.Title == "" {
					page.Title = collapse(textOf(n))
				}
				return
			case "meta":
				page.readMeta(n)
			case "link":
				if attr(n, "rel") == "canonical" {
					if resolved := resolveURL(base, attr(n, "href")); resolved != "" {
						page.URL = resolved
					}
				}
			case "time":
				if page.Published == nil {
					page.Published = parsePublished(attr(n, "datetime"))
				}
			case "p":
				if text := collapse(textOf(n)); text != "" {
					page.Paragraphs = append(page.Paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return page, nil
}

func (p *Page) readMeta(n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	if name == "" {
		name = strings.ToLower(attr(n, "property"))
	}
	content := strings.TrimSpace(attr(n, "content"))
	if content == "" {
		return
	}

	switch {
	case name == "description" || name == "og:description":
		if p.Description == "" {
			p.Description = collapse(content)
		}
	case publishedMeta[name]:
		if p.Published == nil {
			p.Published = parsePublished(content)
		}
	}
}

// Text returns the visible paragraph text joined by spaces
func (p *Page) Text() string {
	return strings.Join(p.Paragraphs, " ")
}

// textOf concatenates the text nodes under n, skipping scripts and styles
func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// resolveURL resolves href against base, keeping only http(s) results
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func parsePublished(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
