package score

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/qfrontier/qfrontier/internal/crawler"
)

// Extractor finds outbound links on a page and describes each with a
// feature mapping: anchor words, position on the page, class tokens, and
// whether the link leaves the page's domain.
type Extractor struct {
	// MaxWords caps how many anchor-text words become features per link.
	MaxWords int
	// MaxClasses caps how many class tokens become features per link.
	MaxClasses int
}

// NewExtractor returns an extractor with the default feature caps.
func NewExtractor() *Extractor {
	return &Extractor{MaxWords: 10, MaxClasses: 3}
}

// Links parses the page and returns its followable links, deduplicated
// by resolved URL, in document order.
func (e *Extractor) Links(pageURL string, body []byte) ([]crawler.Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var links []crawler.Link
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || skipHref(href) {
			return
		}
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		target := resolved.String()
		if seen[target] {
			return
		}
		seen[target] = true

		links = append(links, crawler.Link{
			URL:      target,
			Features: e.features(a, base, resolved, len(links)),
		})
	})
	return links, nil
}

func (e *Extractor) features(a *goquery.Selection, base, target *url.URL, pos int) map[string]float64 {
	f := map[string]float64{
		"bias": 1,
		"pos":  float64(pos),
	}

	for i, w := range tokens(a.Text()) {
		if i >= e.MaxWords {
			break
		}
		f["word:"+w] = 1
	}

	if class, ok := a.Attr("class"); ok {
		for i, c := range tokens(class) {
			if i >= e.MaxClasses {
				break
			}
			f["class:"+c] = 1
		}
	}

	if rel, ok := a.Attr("rel"); ok && strings.Contains(strings.ToLower(rel), "nofollow") {
		f["rel:nofollow"] = 1
	}

	if sameHost(base, target) {
		f["dom:same"] = 1
	} else {
		f["dom:external"] = 1
	}
	return f
}

func skipHref(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "sms:", "data:", "ftp:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// tokens splits text into lowercased alphanumeric words, dropping
// single-character fragments.
func tokens(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			out = append(out, cur.String())
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			cur.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

func sameHost(a, b *url.URL) bool {
	ha := strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.")
	hb := strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
	return ha != "" && ha == hb
}
