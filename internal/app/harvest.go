package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/adapters/observability"
	"placeharvest/internal/domain"
)

type HarvestConfig struct {
	RunID   string
	Query   string // boolean keyword query, see shared.BooleanQuery
	Harvest HarvestOptions
}

// HarvestService runs the per-city pipeline: scope, harvest, extract, write.
// Cities are processed sequentially over a single page.
type HarvestService struct {
	page      domain.Page
	scoper    *CityScoper
	extractor *Extractor
	sink      domain.RecordSink
	preview   domain.PreviewSink     // optional
	repo      domain.PlaceRepository // optional
	health    *HealthAggregator
	cfg       HarvestConfig

	// OnCity is called with each finalized city summary.
	OnCity func(domain.HealthSummary)
}

func NewHarvestService(p domain.Page, scoper *CityScoper, sink domain.RecordSink, preview domain.PreviewSink,
	repo domain.PlaceRepository, health *HealthAggregator, cfg HarvestConfig) *HarvestService {
	if health == nil {
		health = NewHealthAggregator()
	}
	return &HarvestService{
		page:      p,
		scoper:    scoper,
		extractor: NewExtractor(p),
		sink:      sink,
		preview:   preview,
		repo:      repo,
		health:    health,
		cfg:       cfg,
	}
}

func (s *HarvestService) Health() *HealthAggregator { return s.health }

// Run harvests every distinct city in order. Cancelling ctx stops the run at
// the next candidate boundary; the current page action is allowed to finish
// and buffered records are flushed before Run returns the interruption.
func (s *HarvestService) Run(ctx context.Context, cities []domain.City) ([]domain.HealthSummary, error) {
	work := context.WithoutCancel(ctx)
	out := make([]domain.HealthSummary, 0, len(cities))
	seen := make(map[string]struct{}, len(cities))
	for _, city := range cities {
		if ctx.Err() != nil {
			break
		}
		// each city gets exactly one summary
		key := NormalizeKey(city.Name)
		if _, dup := seen[key]; dup {
			log.Warn().Str("city", city.Name).Msg("city listed twice, skipping repeat")
			continue
		}
		seen[key] = struct{}{}
		sum, err := s.harvestCity(ctx, work, city)
		out = append(out, sum)
		if err != nil {
			return out, err
		}
	}
	if err := ctx.Err(); err != nil {
		log.Warn().Int("cities_done", len(out)).Msg("harvest interrupted")
		return out, fmt.Errorf("harvest interrupted: %w", err)
	}
	return out, nil
}

func (s *HarvestService) harvestCity(ctx, work context.Context, city domain.City) (domain.HealthSummary, error) {
	logger := log.With().Str("city", city.Name).Logger()
	s.health.Begin(city.Name)

	if err := s.scoper.Scope(work, city, s.cfg.Query); err != nil {
		logger.Warn().Err(err).Msg("city skipped")
		observability.ObserveSkip("city", err)
		s.health.Fail(city.Name, err)
		return s.finish(work, city.Name), nil
	}

	h := NewHarvester(s.page, city.Name, s.cfg.Harvest)
	var cands []domain.Candidate
	for !h.Finished() && ctx.Err() == nil {
		batch, err := h.NextBatch(work)
		if err != nil {
			break
		}
		cands = append(cands, batch...)
	}
	s.health.SetCandidates(city.Name, len(cands))
	logger.Info().Int("candidates", len(cands)).Str("state", h.State().String()).Msg("result list harvested")

	listings := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		rec, err := s.extractor.Extract(work, c, city.Name)
		if err != nil {
			s.skip(work, city.Name, c, err)
			continue
		}
		if key, ok := rec.ListingKey(); ok {
			if _, dup := listings[key]; dup {
				logger.Debug().Str("candidate", c.ID).Msg("listing already emitted under another URL")
				continue
			}
			listings[key] = struct{}{}
		}
		if err := s.sink.Write(work, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicateRecord) {
				logger.Debug().Str("candidate", c.ID).Msg("duplicate record dropped")
				continue
			}
			if ferr := s.sink.Flush(work); ferr != nil {
				logger.Error().Err(ferr).Msg("flush after write failure")
			}
			return s.finish(work, city.Name), fmt.Errorf("write %s: %w", c.ID, err)
		}
		s.health.Observe(rec)
		if s.preview != nil {
			s.preview.Push(rec)
		}
		observability.Records.WithLabelValues(city.Name).Inc()
		logger.Info().Strs("row", rec.Row()).Msg("record")
	}

	if err := s.sink.Flush(work); err != nil {
		return s.finish(work, city.Name), fmt.Errorf("flush %s: %w", city.Name, err)
	}
	return s.finish(work, city.Name), nil
}

func (s *HarvestService) skip(ctx context.Context, city string, c domain.Candidate, err error) {
	log.Warn().Err(err).Str("city", city).Str("candidate", c.ID).Msg("candidate skipped")
	observability.ObserveSkip("candidate", err)
	s.health.Skip(city)
	if s.repo != nil {
		if lerr := s.repo.LogSkip(ctx, s.cfg.RunID, city, c.ID, err.Error()); lerr != nil {
			log.Warn().Err(lerr).Msg("skip log write failed")
		}
	}
}

func (s *HarvestService) finish(ctx context.Context, city string) domain.HealthSummary {
	sum := s.health.Finalize(city)
	if s.repo != nil {
		if err := s.repo.SaveHealth(ctx, s.cfg.RunID, sum); err != nil {
			log.Warn().Err(err).Str("city", city).Msg("health save failed")
		}
	}
	log.Info().Str("city", city).Int("total", sum.Total).Int("skipped", sum.Skipped).
		Interface("present", sum.Present).Msg("city done")
	if s.OnCity != nil {
		s.OnCity(sum)
	}
	return sum
}
