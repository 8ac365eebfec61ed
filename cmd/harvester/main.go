package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"placeharvest/internal/adapters/browser"
	"placeharvest/internal/adapters/geocoder"
	server "placeharvest/internal/adapters/http_server"
	"placeharvest/internal/adapters/observability"
	redisad "placeharvest/internal/adapters/redis"
	"placeharvest/internal/app"
	"placeharvest/internal/domain"
	"placeharvest/internal/shared"
	"placeharvest/internal/storage/csvfile"
	mysqlrepo "placeharvest/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	targets, err := shared.LoadTargets(cfg.CitiesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CitiesFile).Msg("load cities failed")
	}
	cities := targets.DomainCities()
	runID := uuid.NewString()

	log.Info().
		Str("run", runID).
		Int("cities", len(cities)).
		Int("max_per_city", cfg.MaxPerCity).
		Str("output", cfg.OutputCSV).
		Msg("harvester starting")

	// SIGINT/SIGTERM stop the run at the next candidate boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.Serve()

	// 2) optional mirror / cache / geocoder
	var repo domain.PlaceRepository
	var mirror csvfile.Mirror
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		r := mysqlrepo.New(db)
		repo, mirror = r, r
	}

	var cache domain.Cache
	var rcache *redisad.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, center cache disabled")
		} else {
			cache, rcache = rc, rc
		}
	}

	var geo domain.Geocoder
	if cfg.GeocoderBase != "" {
		g, err := geocoder.New(cfg.GeocoderBase, cfg.GeocoderUserAgent, cfg.GeocoderRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize geocoder")
		}
		geo = g
	}

	// 3) sink + browser
	sink, err := csvfile.Open(cfg.OutputCSV, csvfile.Options{RunID: runID, FlushEvery: cfg.FlushEvery, Mirror: mirror})
	if err != nil {
		log.Fatal().Err(err).Msg("open output failed")
	}

	// The browser outlives ctx so an interrupted run can finish its current action.
	page, closeBrowser, err := browser.Launch(context.Background(), browser.Options{
		Headless:      cfg.Headless,
		Locale:        cfg.Locale,
		ExecPath:      cfg.ChromePath,
		ActionTimeout: cfg.ActionTimeout,
		NavTimeout:    cfg.NavTimeout,
		MinInterval:   cfg.RateLimit,
	})
	if err != nil {
		_ = sink.Close(context.Background())
		log.Fatal().Err(err).Msg("browser launch failed")
	}
	defer closeBrowser()

	preview := app.NewPreview(cfg.PreviewMax)
	health := app.NewHealthAggregator()
	scoper := app.NewCityScoper(page, geo, cache, app.ScopeOptions{
		Zoom:     cfg.DefaultZoom,
		Locale:   cfg.Locale,
		CacheTTL: cfg.CacheTTL,
	})
	svc := app.NewHarvestService(page, scoper, sink, preview, repo, health, app.HarvestConfig{
		RunID: runID,
		Query: shared.BooleanQuery(targets.Keywords),
		Harvest: app.HarvestOptions{
			MaxCandidates:  cfg.MaxPerCity,
			ExpandAttempts: cfg.ExpandAttempts,
			PageTurns:      cfg.PageTurns,
			StallLimit:     cfg.StallLimit,
			MaxSteps:       cfg.MaxScrollSteps,
		},
	})

	if rcache != nil && repo != nil {
		// the API reads the mirror through the same cache
		svc.OnCity = func(sum domain.HealthSummary) {
			if err := app.InvalidateCity(context.Background(), rcache, sum.City); err != nil {
				log.Warn().Err(err).Str("city", sum.City).Msg("api cache invalidation failed")
			}
		}
	}

	// 4) pipeline + live status server
	g, gctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(gctx)
	if cfg.StatusAddr != "" {
		status := server.New()
		status.MountLive(&server.LiveHandlers{RunID: runID, Preview: preview, Health: health})
		g.Go(func() error {
			if err := status.ListenAndServe(statusCtx, cfg.StatusAddr); err != nil {
				log.Error().Err(err).Msg("status server failed")
			}
			return nil
		})
	}

	var sums []domain.HealthSummary
	g.Go(func() error {
		defer stopStatus()
		var err error
		sums, err = svc.Run(ctx, cities)
		return err
	})
	runErr := g.Wait()
	stopStatus()

	if err := sink.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("final flush failed")
		if runErr == nil {
			runErr = err
		}
	}

	for _, s := range sums {
		log.Info().Str("city", s.City).Int("total", s.Total).Int("skipped", s.Skipped).
			Interface("present", s.Present).Str("error", s.Error).Msg("city health")
	}

	switch {
	case runErr == nil:
		log.Info().Str("run", runID).Int("cities", len(sums)).Msg("harvest completed")
	case errors.Is(runErr, context.Canceled):
		log.Warn().Str("run", runID).Int("cities", len(sums)).Msg("harvest interrupted, partial output kept")
	default:
		log.Error().Err(runErr).Str("run", runID).Msg("harvest aborted")
		closeBrowser()
		os.Exit(1)
	}
}
