package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/domain"
	"placeharvest/internal/parse"
)

var phoneLabel = regexp.MustCompile(`(?i)^\s*(?:phone|telefon|téléphone|telefono|teléfono|هاتف|โทรศัพท์)\s*:\s*`)

// Extractor turns a candidate's detail page into a PlaceRecord. Only a failed
// page load is an error; every missing field is simply left absent.
type Extractor struct {
	page domain.Page
}

func NewExtractor(p domain.Page) *Extractor { return &Extractor{page: p} }

func (e *Extractor) Extract(ctx context.Context, c domain.Candidate, city string) (domain.PlaceRecord, error) {
	if err := e.page.Navigate(ctx, c.URL); err != nil {
		return domain.PlaceRecord{}, fmt.Errorf("open %s: %w", c.ID, err)
	}
	if err := e.page.WaitFor(ctx, anyTitle); err != nil {
		return domain.PlaceRecord{}, fmt.Errorf("load %s: %w", c.ID, err)
	}

	rec := domain.PlaceRecord{
		CandidateID: c.ID,
		City:        city,
		MapsURL:     c.URL,
	}
	rec.Name = e.name(ctx, c)
	rec.Rating, rec.ReviewCount = e.ratingAndReviews(ctx)
	rec.Address = e.address(ctx)
	rec.Phone = e.phone(ctx)
	rec.Website = e.website(ctx)
	rec.Coords = e.coords(ctx, c)
	rec.Socials = e.socials(ctx)
	return rec, nil
}

func (e *Extractor) name(ctx context.Context, c domain.Candidate) *string {
	if v := e.firstText(ctx, placeTitle, anyTitle); v != nil {
		return v
	}
	if c.Name != "" {
		return &c.Name
	}
	return nil
}

func (e *Extractor) ratingAndReviews(ctx context.Context) (*float64, *int) {
	var rating *float64
	var count *int
	labels := e.attrs(ctx, mainLabels, "aria-label")
	for _, l := range labels {
		if rating == nil && parse.HasStarWord(l) {
			if v, ok := parse.ParseRating(l); ok {
				rating = &v
			}
		}
		if count == nil && parse.HasReviewWord(l) {
			if n, ok := parse.ParseReviewCount(parse.AfterStarWord(l)); ok {
				count = &n
			}
		}
		if rating != nil && count != nil {
			return rating, count
		}
	}

	// Summary block: "4.6" followed by "(1,204)".
	for _, t := range e.texts(ctx, ratingSummary) {
		if count == nil && strings.ContainsAny(t, "(（") {
			if n, ok := parse.ParseReviewCount(t); ok {
				count = &n
				continue
			}
		}
		if rating == nil {
			if v, ok := parse.ParseRating(t); ok {
				rating = &v
			}
		}
	}
	return rating, count
}

func (e *Extractor) address(ctx context.Context) *string {
	if v := e.firstText(ctx, addressItem); v != nil {
		return v
	}
	for _, l := range e.attrs(ctx, addressButton, "aria-label") {
		if v := strings.TrimSpace(strings.TrimPrefix(l, "Address:")); v != "" {
			return &v
		}
	}
	return nil
}

func (e *Extractor) phone(ctx context.Context) *string {
	for _, l := range e.attrs(ctx, phoneItem, "aria-label") {
		if v := strings.TrimSpace(phoneLabel.ReplaceAllString(l, "")); v != "" {
			return &v
		}
	}
	if v := e.firstText(ctx, phoneItem); v != nil {
		return v
	}
	for _, h := range e.attrs(ctx, telLinks, "href") {
		if v := strings.TrimSpace(strings.TrimPrefix(h, "tel:")); v != "" {
			return &v
		}
	}
	return nil
}

func (e *Extractor) website(ctx context.Context) *string {
	for _, sel := range []string{websiteItem, websiteLabeled} {
		for _, h := range e.attrs(ctx, sel, "href") {
			if h = strings.TrimSpace(h); h != "" {
				return &h
			}
		}
	}
	return nil
}

// coords tries the canonical place URL first, then the address bar, the
// preview image and finally any map link on the page.
func (e *Extractor) coords(ctx context.Context, c domain.Candidate) *domain.Coords {
	sources := []string{c.URL}
	if u, err := e.page.URL(ctx); err == nil {
		sources = append(sources, u)
	}
	sources = append(sources, e.attrs(ctx, ogImage, "content")...)
	links, err := e.page.QueryLinks(ctx, mapLinks)
	if err != nil {
		e.trace(err, mapLinks)
	}
	for _, l := range links {
		sources = append(sources, l.Href)
	}
	if p, ok := parse.ResolveCoords(sources...); ok {
		return &p
	}
	return nil
}

func (e *Extractor) socials(ctx context.Context) map[domain.Platform]string {
	links, err := e.page.QueryLinks(ctx, mainLinks)
	if err != nil {
		e.trace(err, mainLinks)
	}
	hrefs := make([]string, 0, len(links))
	for _, l := range links {
		hrefs = append(hrefs, l.Href)
	}
	return parse.ClassifySocial(hrefs)
}

func (e *Extractor) firstText(ctx context.Context, selectors ...string) *string {
	for _, sel := range selectors {
		for _, t := range e.texts(ctx, sel) {
			if t = strings.TrimSpace(t); t != "" {
				return &t
			}
		}
	}
	return nil
}

func (e *Extractor) texts(ctx context.Context, sel string) []string {
	out, err := e.page.QueryText(ctx, sel)
	if err != nil {
		e.trace(err, sel)
	}
	return out
}

func (e *Extractor) attrs(ctx context.Context, sel, attr string) []string {
	out, err := e.page.QueryAttr(ctx, sel, attr)
	if err != nil {
		e.trace(err, sel)
	}
	return out
}

func (e *Extractor) trace(err error, sel string) {
	log.Debug().Err(err).Str("selector", sel).Msg("field lookup failed")
}
