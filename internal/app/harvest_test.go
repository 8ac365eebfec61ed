package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placeharvest/internal/domain"
)

type skipLog struct{ reasons []string }

func (s *skipLog) UpsertPlaces(context.Context, string, []domain.PlaceRecord) error { return nil }
func (s *skipLog) LogSkip(_ context.Context, _, _, id, reason string) error {
	s.reasons = append(s.reasons, id+": "+reason)
	return nil
}
func (s *skipLog) SaveHealth(context.Context, string, domain.HealthSummary) error { return nil }
func (s *skipLog) ListPlaces(context.Context, domain.PlacesQuery) (domain.PlacesPage, error) {
	return domain.PlacesPage{}, nil
}
func (s *skipLog) LatestHealth(context.Context, string) (domain.HealthSummary, error) {
	return domain.HealthSummary{}, domain.ErrNotFound
}

func springfield() (*fakePage, domain.City) {
	p := newFakePage()
	p.feed = [][]domain.Link{{
		link(mapsPlace+"A", "A"),
		link(mapsPlace+"B", "B"),
		link(mapsPlace+"A?utm_campaign=z&entry=ttu", "A"),
	}}
	p.places[mapsPlace+"A"] = fakePlace{text: map[string][]string{placeTitle: {"Alpha Cafe"}}}
	p.places[mapsPlace+"B"] = fakePlace{waitErr: domain.ErrPageTimeout}
	return p, domain.City{Name: "Springfield", Center: &domain.Coords{Lat: 39.78, Lon: -89.65}}
}

func newService(p *fakePage, sink domain.RecordSink, repo domain.PlaceRepository, cap int) *HarvestService {
	scoper := NewCityScoper(p, nil, nil, ScopeOptions{Locale: "en"})
	return NewHarvestService(p, scoper, sink, NewPreview(5), repo, nil, HarvestConfig{
		RunID:   "run-1",
		Query:   `"cafe" OR "coffee"`,
		Harvest: HarvestOptions{MaxCandidates: cap, ExpandAttempts: 1, StallLimit: 1},
	})
}

func TestRun_SpringfieldSkipsTimedOutCandidate(t *testing.T) {
	p, city := springfield()
	sink := &memSink{}
	skips := &skipLog{}
	svc := newService(p, sink, skips, 2)

	sums, err := svc.Run(context.Background(), []domain.City{city})
	require.NoError(t, err)

	require.Len(t, sink.recs, 1)
	assert.Equal(t, "Alpha Cafe", *sink.recs[0].Name)
	assert.Equal(t, "Springfield", sink.recs[0].City)

	require.Len(t, sums, 1)
	assert.Equal(t, "Springfield", sums[0].City)
	assert.Equal(t, 1, sums[0].Total)
	assert.Equal(t, 1, sums[0].Skipped)
	assert.Equal(t, 2, sums[0].Candidates)
	assert.Equal(t, 1, sums[0].Present["name"])
	assert.True(t, sums[0].Finalized)

	require.Len(t, skips.reasons, 1)
	assert.True(t, strings.HasPrefix(skips.reasons[0], "www.google.com/maps/place/B: "))
	assert.GreaterOrEqual(t, sink.flushes, 1)
	assert.True(t, p.navigatedTo("/@39.78,-89.65,12z"))
}

func TestRun_UnresolvedCityStillReports(t *testing.T) {
	p, springfieldCity := springfield()
	p.noResults = func(u string) bool { return strings.Contains(u, "Atlantis") }
	sink := &memSink{}
	svc := newService(p, sink, nil, 0)

	var reported []string
	svc.OnCity = func(h domain.HealthSummary) { reported = append(reported, h.City) }

	sums, err := svc.Run(context.Background(), []domain.City{springfieldCity, {Name: "Atlantis"}})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, []string{"Springfield", "Atlantis"}, reported)

	atl := sums[1]
	assert.Zero(t, atl.Total)
	assert.Contains(t, atl.Error, domain.ErrCityUnresolved.Error())

	// per-city totals match what was written
	perCity := map[string]int{}
	for _, r := range sink.recs {
		perCity[r.City]++
	}
	for _, s := range sums {
		assert.Equal(t, perCity[s.City], s.Total, s.City)
		for col, n := range s.Present {
			assert.LessOrEqual(t, n, s.Total, col)
		}
	}
}

func TestRun_RepeatedCityHarvestedOnce(t *testing.T) {
	p, city := springfield()
	p.feed = append(p.feed, []domain.Link{link(mapsPlace+"C", "C")})
	p.places[mapsPlace+"C"] = fakePlace{text: map[string][]string{placeTitle: {"Corner Diner"}}}
	sink := &memSink{}
	svc := newService(p, sink, nil, 0)

	var reported int
	svc.OnCity = func(domain.HealthSummary) { reported++ }

	again := city
	again.Name = "  springfield "
	sums, err := svc.Run(context.Background(), []domain.City{city, again})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 1, reported)

	written := 0
	for _, r := range sink.recs {
		if NormalizeKey(r.City) == "springfield" {
			written++
		}
	}
	assert.Equal(t, 2, written)
	assert.Equal(t, written, sums[0].Total)
	assert.Len(t, svc.Health().Summaries(), 1)
}

func TestRun_SameListingUnderTwoURLsEmittedOnce(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{
		link(mapsPlace+"A", "Alpha"),
		link(mapsPlace+"A2", "Alpha"),
		link(mapsPlace+"N1", "Kiosk"),
		link(mapsPlace+"N2", "Kiosk"),
	}}
	resolved := mapsPlace + "Alpha/@25.1,51.2,17z/data=!3d25.1!4d51.2"
	p.places[mapsPlace+"A"] = fakePlace{url: resolved, text: map[string][]string{placeTitle: {"Alpha Cafe"}}}
	p.places[mapsPlace+"A2"] = fakePlace{url: resolved, text: map[string][]string{placeTitle: {" ALPHA CAFE"}}}
	// a shared name without coordinates is not enough to merge
	p.places[mapsPlace+"N1"] = fakePlace{text: map[string][]string{placeTitle: {"Kiosk"}}}
	p.places[mapsPlace+"N2"] = fakePlace{text: map[string][]string{placeTitle: {"Kiosk"}}}
	sink := &memSink{}
	svc := newService(p, sink, nil, 0)

	sums, err := svc.Run(context.Background(), []domain.City{{Name: "Doha", Center: &domain.Coords{Lat: 25.28, Lon: 51.53}}})
	require.NoError(t, err)
	require.Len(t, sink.recs, 3)
	assert.Equal(t, "www.google.com/maps/place/A", sink.recs[0].CandidateID)
	require.Len(t, sums, 1)
	assert.Equal(t, 3, sums[0].Total)
	assert.Equal(t, 4, sums[0].Candidates)
	assert.Zero(t, sums[0].Skipped)
}

func TestRun_InterruptFlushesAndStops(t *testing.T) {
	p := newFakePage()
	p.feed = [][]domain.Link{{link(mapsPlace+"A", ""), link(mapsPlace+"B", "")}}
	p.places[mapsPlace+"A"] = fakePlace{}
	p.places[mapsPlace+"B"] = fakePlace{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &memSink{onWrite: func(domain.PlaceRecord) { cancel() }}
	svc := newService(p, sink, nil, 0)

	sums, err := svc.Run(ctx, []domain.City{
		{Name: "Doha", Center: &domain.Coords{Lat: 25.28, Lon: 51.53}},
		{Name: "Muscat", Center: &domain.Coords{Lat: 23.58, Lon: 58.38}},
	})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, sink.recs, 1)
	assert.Equal(t, 1, sink.flushes)
	assert.False(t, p.navigatedTo(mapsPlace+"B"))
	require.Len(t, sums, 1)
	assert.Equal(t, 1, sums[0].Total)
}

func TestRun_SinkFailureAborts(t *testing.T) {
	p, city := springfield()
	sink := &memSink{writeErr: domain.ErrSinkWrite}
	svc := newService(p, sink, nil, 2)

	sums, err := svc.Run(context.Background(), []domain.City{city, {Name: "Never"}})
	assert.True(t, errors.Is(err, domain.ErrSinkWrite))
	assert.Len(t, sums, 1)
	assert.False(t, p.navigatedTo("Never"))
}
