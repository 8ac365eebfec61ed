package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/domain"
	"placeharvest/internal/parse"
)

const DefaultMapsBase = "https://www.google.com/maps"

type ScopeOptions struct {
	MapsBase string
	Zoom     int
	Locale   string
	CacheTTL time.Duration
}

// CityScoper points the page at a city's result list, anchored on the city
// center when one can be resolved.
type CityScoper struct {
	page  domain.Page
	geo   domain.Geocoder // optional
	cache domain.Cache    // optional
	opts  ScopeOptions
}

func NewCityScoper(p domain.Page, geo domain.Geocoder, cache domain.Cache, opts ScopeOptions) *CityScoper {
	if opts.MapsBase == "" {
		opts.MapsBase = DefaultMapsBase
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 12
	}
	return &CityScoper{page: p, geo: geo, cache: cache, opts: opts}
}

// Scope opens the search for query within city. Any failure to reach a
// result list is reported as domain.ErrCityUnresolved.
func (s *CityScoper) Scope(ctx context.Context, city domain.City, query string) error {
	center := s.Center(ctx, city)
	hl := s.locale(city)
	if g, ok := s.page.(domain.Geolocator); ok && center != nil {
		if err := g.SetGeolocation(ctx, *center); err != nil {
			log.Debug().Err(err).Str("city", city.Name).Msg("geolocation override failed")
		}
	}

	target := SearchURL(s.opts.MapsBase, query, city.Name, center, s.opts.Zoom, hl)
	err := s.page.Navigate(ctx, target)
	if err == nil {
		err = s.page.WaitFor(ctx, resultsReady)
	}
	if err != nil {
		log.Debug().Err(err).Str("city", city.Name).Msg("search url did not load, typing query")
		if err := s.typedSearch(ctx, city, query, center, hl); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrCityUnresolved, city.Name, err)
		}
	}

	if center != nil {
		// Re-anchor the list on the visible map area.
		s.clickSearchThisArea(ctx)
	}
	return nil
}

func (s *CityScoper) typedSearch(ctx context.Context, city domain.City, query string, center *domain.Coords, hl string) error {
	home := s.opts.MapsBase
	if center != nil {
		home += "/@" + center.String() + "," + strconv.Itoa(s.opts.Zoom) + "z"
	}
	if hl != "" {
		home += "?hl=" + url.QueryEscape(hl)
	}
	if err := s.page.Navigate(ctx, home); err != nil {
		return err
	}
	if err := s.page.TypeAndSubmit(ctx, "("+query+") near "+city.Name); err != nil {
		return err
	}
	return s.page.WaitFor(ctx, resultsReady)
}

func (s *CityScoper) clickSearchThisArea(ctx context.Context) {
	for _, txt := range searchThisAreaTexts {
		ok, err := s.page.Click(ctx, domain.Target{Text: txt})
		if err != nil || ok {
			return
		}
	}
}

// Center resolves the city center: configured table, cache, geocoder, then
// the city's own place page. Returns nil when every source fails.
func (s *CityScoper) Center(ctx context.Context, city domain.City) *domain.Coords {
	if city.Center != nil {
		return city.Center
	}
	key := "center:" + NormalizeKey(city.Name)
	if s.cache != nil {
		var c domain.Coords
		if ok, _ := s.cache.Get(ctx, key, &c); ok {
			return &c
		}
	}

	c, err := s.resolveCenter(ctx, city)
	if err != nil {
		log.Warn().Err(err).Str("city", city.Name).Msg("city center unresolved, searching by name")
		return nil
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, c, int(s.opts.CacheTTL.Seconds()))
	}
	return &c
}

func (s *CityScoper) resolveCenter(ctx context.Context, city domain.City) (domain.Coords, error) {
	var geoErr error
	if s.geo != nil {
		c, err := s.geo.Geocode(ctx, city.Name)
		if err == nil {
			return c, nil
		}
		geoErr = err
	}

	place := s.opts.MapsBase + "/place/" + url.QueryEscape(city.Name)
	if hl := s.locale(city); hl != "" {
		place += "?hl=" + url.QueryEscape(hl)
	}
	if err := s.page.Navigate(ctx, place); err != nil {
		return domain.Coords{}, errors.Join(geoErr, err)
	}
	// The address bar settles on @lat,lon once the map has centered.
	_ = s.page.WaitFor(ctx, anyTitle)
	var sources []string
	if u, err := s.page.URL(ctx); err == nil {
		sources = append(sources, u)
	}
	if og, err := s.page.QueryAttr(ctx, ogImage, "content"); err == nil {
		sources = append(sources, og...)
	}
	if links, err := s.page.QueryLinks(ctx, mapLinks); err == nil {
		for _, l := range links {
			sources = append(sources, l.Href)
		}
	}
	if c, ok := parse.ResolveCoords(sources...); ok {
		return c, nil
	}
	return domain.Coords{}, errors.Join(geoErr, domain.ErrNotFound)
}

func (s *CityScoper) locale(city domain.City) string {
	if city.Locale != "" {
		return city.Locale
	}
	return s.opts.Locale
}

// SearchURL builds the result-list URL for query. With a center the view is
// pinned to it; otherwise the city name is appended to the query.
func SearchURL(base, query, city string, center *domain.Coords, zoom int, hl string) string {
	q := "(" + query + ")"
	if center == nil {
		q += " near " + city
	}
	u := strings.TrimRight(base, "/") + "/search/" + url.PathEscape(q)
	if center != nil {
		u += "/@" + center.String() + "," + strconv.Itoa(zoom) + "z"
	}
	if hl != "" {
		u += "?hl=" + url.QueryEscape(hl)
	}
	return u
}

// NormalizeKey lowercases and collapses whitespace for cache keys.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
