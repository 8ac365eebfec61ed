package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "placeharvest/internal/adapters/redis"
	"placeharvest/internal/domain"
)

type stubGeocoder struct {
	calls int
	c     domain.Coords
	err   error
}

func (g *stubGeocoder) Geocode(context.Context, string) (domain.Coords, error) {
	g.calls++
	return g.c, g.err
}

func TestSearchURL(t *testing.T) {
	center := &domain.Coords{Lat: 25.2048, Lon: 55.2708}
	assert.Equal(t,
		"https://www.google.com/maps/search/%28%22cafe%22%20OR%20%22coffee%22%29/@25.2048,55.2708,12z?hl=ar",
		SearchURL(DefaultMapsBase, `"cafe" OR "coffee"`, "Dubai", center, 12, "ar"))
	assert.Equal(t,
		"https://www.google.com/maps/search/%28cafe%29%20near%20Sharjah",
		SearchURL(DefaultMapsBase+"/", "cafe", "Sharjah", nil, 12, ""))
}

func TestCenter_GeocoderResultIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	geo := &stubGeocoder{c: domain.Coords{Lat: 25.3463, Lon: 55.4209}}
	s := NewCityScoper(newFakePage(), geo, cache, ScopeOptions{CacheTTL: time.Hour})

	for i := 0; i < 2; i++ {
		c := s.Center(context.Background(), domain.City{Name: "  Sharjah "})
		require.NotNil(t, c)
		assert.Equal(t, geo.c, *c)
	}
	assert.Equal(t, 1, geo.calls)
	assert.True(t, mr.Exists("placeharvest:center:sharjah"))
}

func TestCenter_TableWinsAndPlacePageFallback(t *testing.T) {
	geo := &stubGeocoder{err: domain.ErrNotFound}
	p := newFakePage()
	s := NewCityScoper(p, geo, nil, ScopeOptions{})

	fixed := &domain.Coords{Lat: 1, Lon: 2}
	assert.Equal(t, fixed, s.Center(context.Background(), domain.City{Name: "Fixed", Center: fixed}))
	assert.Zero(t, geo.calls)

	place := DefaultMapsBase + "/place/Al+Ain"
	p.places[place] = fakePlace{url: DefaultMapsBase + "/place/Al+Ain/@24.2075,55.7447,12z"}
	c := s.Center(context.Background(), domain.City{Name: "Al Ain"})
	require.NotNil(t, c)
	assert.Equal(t, domain.Coords{Lat: 24.2075, Lon: 55.7447}, *c)
	assert.Equal(t, 1, geo.calls)

	assert.Nil(t, s.Center(context.Background(), domain.City{Name: "Nowhere"}))
}

func TestScope_TypedFallback(t *testing.T) {
	p := newFakePage()
	// the direct search URL never shows results; the typed search does
	p.noResults = func(u string) bool { return strings.Contains(u, "/search/") }
	s := NewCityScoper(p, nil, nil, ScopeOptions{})

	err := s.Scope(context.Background(), domain.City{Name: "Manama", Center: &domain.Coords{Lat: 26.2285, Lon: 50.586}}, "cafe")
	require.NoError(t, err)
	assert.Contains(t, p.current, "/@26.2285,50.586,12z#typed:(cafe) near Manama")
}

func TestScope_PinsGeolocationToCenter(t *testing.T) {
	p := newFakePage()
	s := NewCityScoper(p, nil, nil, ScopeOptions{})

	doha := domain.Coords{Lat: 25.2854, Lon: 51.531}
	require.NoError(t, s.Scope(context.Background(), domain.City{Name: "Doha", Center: &doha}, "cafe"))
	assert.Equal(t, []domain.Coords{doha}, p.located)

	// no center, no override
	require.NoError(t, s.Scope(context.Background(), domain.City{Name: "Nowhere"}, "cafe"))
	assert.Len(t, p.located, 1)
}

func TestScope_Unresolved(t *testing.T) {
	p := newFakePage()
	p.noResults = func(string) bool { return true }
	s := NewCityScoper(p, nil, nil, ScopeOptions{})

	err := s.Scope(context.Background(), domain.City{Name: "Atlantis", Center: &domain.Coords{}}, "cafe")
	assert.True(t, errors.Is(err, domain.ErrCityUnresolved))
}

func TestInvalidateCity(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()

	for _, k := range []string{"places:kuwait city:50", "places::50", "health:kuwait city", "center:kuwait city", "places:doha:50"} {
		require.NoError(t, cache.Set(ctx, k, 1, 0))
	}
	require.NoError(t, InvalidateCity(ctx, cache, "Kuwait  City"))

	assert.False(t, mr.Exists("placeharvest:places:kuwait city:50"))
	assert.False(t, mr.Exists("placeharvest:places::50"))
	assert.False(t, mr.Exists("placeharvest:health:kuwait city"))
	assert.True(t, mr.Exists("placeharvest:center:kuwait city"))
	assert.True(t, mr.Exists("placeharvest:places:doha:50"))
}
