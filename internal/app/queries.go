package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"placeharvest/internal/domain"
)

// QueryService serves the mirrored places and health reports, cached when a
// cache is configured.
type QueryService struct {
	repo     domain.PlaceRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.PlaceRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) ListPlaces(ctx context.Context, q domain.PlacesQuery) (domain.PlacesPage, error) {
	key := fmt.Sprintf("places:%s:%d", NormalizeKey(q.City), q.Limit)
	var out domain.PlacesPage
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	pg, err := s.repo.ListPlaces(ctx, q)
	if err != nil {
		return domain.PlacesPage{}, err
	}

	// copy so callers mutating the result cannot alter the cached value
	cp := copyPlacesPage(pg)
	if s.cache != nil {
		if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
		}
	}
	return cp, nil
}

func (s *QueryService) CityHealth(ctx context.Context, city string) (domain.HealthSummary, error) {
	key := "health:" + NormalizeKey(city)
	var h domain.HealthSummary
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &h); ok {
			return h, nil
		}
	}
	h, err := s.repo.LatestHealth(ctx, city)
	if err != nil {
		return domain.HealthSummary{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, h, int(s.cacheTTL.Seconds()))
	}
	return h, nil
}

func copyPlacesPage(in domain.PlacesPage) domain.PlacesPage {
	out := domain.PlacesPage{Items: make([]domain.PlaceView, len(in.Items))}
	copy(out.Items, in.Items)
	return out
}

// PrefixCache is a Cache that can drop a key range.
type PrefixCache interface {
	domain.Cache
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// InvalidateCity drops cached API reads that a new harvest of city makes
// stale: its listings, unfiltered listings and its health report.
func InvalidateCity(ctx context.Context, c PrefixCache, city string) error {
	key := NormalizeKey(city)
	for _, p := range []string{"places:" + key + ":", "places::"} {
		if _, err := c.DelPrefix(ctx, p); err != nil {
			return err
		}
	}
	return c.Del(ctx, "health:"+key)
}
