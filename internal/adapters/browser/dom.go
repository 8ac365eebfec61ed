package browser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"placeharvest/internal/domain"
)

// DOM is a parsed snapshot of the page HTML. Queries against it never touch
// the browser.
type DOM struct {
	doc  *goquery.Document
	base *url.URL
}

func NewDOM(html, pageURL string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)
	return &DOM{doc: doc, base: base}, nil
}

// Text returns the trimmed, non-empty text of every match.
func (d *DOM) Text(selector string) []string {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// Links returns absolute hrefs of every match, labelled by aria-label or text.
func (d *DOM) Links(selector string) []domain.Link {
	var out []domain.Link
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		label, _ := s.Attr("aria-label")
		if label == "" {
			label = strings.Join(strings.Fields(s.Text()), " ")
		}
		out = append(out, domain.Link{Href: d.resolve(href), Text: strings.TrimSpace(label)})
	})
	return out
}

// Attr returns the non-empty values of attr on every match.
func (d *DOM) Attr(selector, attr string) []string {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}

func (d *DOM) resolve(href string) string {
	href = strings.TrimSpace(href)
	if d.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}
