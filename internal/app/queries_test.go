package app_test

import (
	"context"
	"testing"
	"time"

	"placeharvest/internal/app"
	"placeharvest/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	pp    domain.PlacesPage
	hs    domain.HealthSummary
	calls int
}

func (f *fakeRepo) UpsertPlaces(ctx context.Context, runID string, recs []domain.PlaceRecord) error {
	return nil
}
func (f *fakeRepo) LogSkip(ctx context.Context, runID, city, candidateID, reason string) error {
	return nil
}
func (f *fakeRepo) SaveHealth(ctx context.Context, runID string, h domain.HealthSummary) error {
	return nil
}
func (f *fakeRepo) ListPlaces(ctx context.Context, q domain.PlacesQuery) (domain.PlacesPage, error) {
	f.calls++
	return f.pp, nil
}
func (f *fakeRepo) LatestHealth(ctx context.Context, city string) (domain.HealthSummary, error) {
	f.calls++
	if f.hs.City == "" {
		return domain.HealthSummary{}, domain.ErrNotFound
	}
	return f.hs, nil
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.PlacesPage:
		*d = v.(domain.PlacesPage)
	case *domain.HealthSummary:
		*d = v.(domain.HealthSummary)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error { return nil }

// ---- tests ----

func TestListPlaces_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{
		pp: domain.PlacesPage{Items: []domain.PlaceView{
			{RunID: "r1", City: "Dubai", Name: ptr("Cafe One"), Rating: ptr(4.6)},
		}},
	}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	out, err := q.ListPlaces(context.Background(), domain.PlacesQuery{City: "Dubai", Limit: 10})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out.Items) != 1 || deref(out.Items[0].Name) != "Cafe One" {
		t.Fatalf("unexpected places: %+v", out.Items)
	}
	if _, ok := cache.store["places:dubai:10"]; !ok {
		t.Fatalf("expected cache key places:dubai:10, have %v", cache.store)
	}

	// Change repo, call again -> should come from cache
	repo.pp.Items[0].Name = ptr("SHOULD NOT SEE THIS")
	out2, _ := q.ListPlaces(context.Background(), domain.PlacesQuery{City: " DUBAI ", Limit: 10})
	if deref(out2.Items[0].Name) != "Cafe One" {
		t.Fatalf("expected cached name, got %s", deref(out2.Items[0].Name))
	}
	if repo.calls != 1 {
		t.Fatalf("expected one repo call, got %d", repo.calls)
	}
}

func TestCityHealth_NoCache(t *testing.T) {
	repo := &fakeRepo{hs: domain.HealthSummary{City: "Doha", Total: 3, Present: map[string]int{"name": 3}}}
	q := app.NewQueryService(repo, nil, time.Minute)

	h, err := q.CityHealth(context.Background(), "Doha")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if h.Total != 3 || h.Present["name"] != 3 {
		t.Fatalf("unexpected health: %+v", h)
	}

	repo.hs = domain.HealthSummary{}
	if _, err := q.CityHealth(context.Background(), "Doha"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
