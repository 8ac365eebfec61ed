package app

import (
	"context"
	"strings"
	"sync"

	"placeharvest/internal/domain"
)

// fakePage is a scripted result list plus a set of detail pages.
type fakePage struct {
	current     string
	navigations []string
	clicks      []string
	scrolls     int
	located     []domain.Coords

	feed      [][]domain.Link // revealed one batch per scroll; the first is visible up front
	revealed  int
	areaFeed  []domain.Link   // appended once "search this area" is clicked
	nextFeed  []domain.Link   // appended once the next-page button is clicked
	clickable map[string]bool // by text, or by selector for selector targets
	expanded  bool
	paged     bool
	scrollErr error
	noResults func(url string) bool

	places map[string]fakePlace
	navErr map[string]error
}

type fakePlace struct {
	waitErr error
	url     string // address bar after load, defaults to the navigated URL
	text    map[string][]string
	attrs   map[string][]string // "selector|attr"
	links   map[string][]domain.Link
}

func newFakePage() *fakePage {
	return &fakePage{
		revealed:  1,
		clickable: map[string]bool{},
		places:    map[string]fakePlace{},
		navErr:    map[string]error{},
	}
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	if err := f.navErr[url]; err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *fakePage) TypeAndSubmit(_ context.Context, q string) error {
	f.current += "#typed:" + q
	return nil
}

func (f *fakePage) Scroll(context.Context, string) error {
	f.scrolls++
	if f.scrollErr != nil {
		return f.scrollErr
	}
	if f.revealed < len(f.feed) {
		f.revealed++
	}
	return nil
}

func (f *fakePage) Click(_ context.Context, t domain.Target) (bool, error) {
	key := t.Text
	if key == "" {
		key = t.Selector
	}
	if !f.clickable[key] {
		return false, nil
	}
	f.clicks = append(f.clicks, key)
	if key == nextPageButton {
		f.paged = true
	} else {
		f.expanded = true
	}
	return true, nil
}

func (f *fakePage) SetGeolocation(_ context.Context, c domain.Coords) error {
	f.located = append(f.located, c)
	return nil
}

func (f *fakePage) WaitFor(_ context.Context, sel string) error {
	if p, ok := f.places[f.current]; ok {
		return p.waitErr
	}
	if sel == resultsReady && f.noResults != nil && f.noResults(f.current) {
		return domain.ErrPageTimeout
	}
	return nil
}

func (f *fakePage) URL(context.Context) (string, error) {
	if p, ok := f.places[f.current]; ok && p.url != "" {
		return p.url, nil
	}
	return f.current, nil
}

func (f *fakePage) QueryText(_ context.Context, sel string) ([]string, error) {
	return f.places[f.current].text[sel], nil
}

func (f *fakePage) QueryAttr(_ context.Context, sel, attr string) ([]string, error) {
	return f.places[f.current].attrs[sel+"|"+attr], nil
}

func (f *fakePage) QueryLinks(_ context.Context, sel string) ([]domain.Link, error) {
	if sel == feedPlaceLinks {
		if _, onPlace := f.places[f.current]; onPlace {
			return nil, nil
		}
		var out []domain.Link
		for _, b := range f.feed[:min(f.revealed, len(f.feed))] {
			out = append(out, b...)
		}
		if f.expanded {
			out = append(out, f.areaFeed...)
		}
		if f.paged {
			out = append(out, f.nextFeed...)
		}
		return out, nil
	}
	return f.places[f.current].links[sel], nil
}

func (f *fakePage) navigatedTo(sub string) bool {
	for _, n := range f.navigations {
		if strings.Contains(n, sub) {
			return true
		}
	}
	return false
}

// memSink keeps records in memory and rejects repeated candidate IDs.
type memSink struct {
	mu       sync.Mutex
	recs     []domain.PlaceRecord
	ids      map[string]bool
	flushes  int
	writeErr error
	onWrite  func(domain.PlaceRecord)
}

func (s *memSink) Write(_ context.Context, rec domain.PlaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.ids == nil {
		s.ids = map[string]bool{}
	}
	if s.ids[rec.CandidateID] {
		return domain.ErrDuplicateRecord
	}
	s.ids[rec.CandidateID] = true
	s.recs = append(s.recs, rec)
	if s.onWrite != nil {
		s.onWrite(rec)
	}
	return nil
}

func (s *memSink) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func link(href, text string) domain.Link { return domain.Link{Href: href, Text: text} }

const mapsPlace = "https://www.google.com/maps/place/"
