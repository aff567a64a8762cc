package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kigaligo/internal/api"
	"kigaligo/internal/api/handlers"
	"kigaligo/internal/api/middleware"
	"kigaligo/internal/cache"
	"kigaligo/internal/config"
	"kigaligo/internal/logging"
	"kigaligo/internal/metrics"
	"kigaligo/internal/repository"
	"kigaligo/internal/repository/gormstore"
	"kigaligo/internal/repository/memory"
	"kigaligo/internal/services"
	"kigaligo/internal/timeutil"
	"kigaligo/pkg/utils"
)

var configPath = flag.String("config", "", "Path to a config file (yaml, json or toml); env vars prefixed KIGALIGO_ override it")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kigaligo: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with an error")
	}
	logger.Info().Msg("Graceful shutdown complete")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}

	// Initialize the vehicle and stop stores
	stores, err := openStores(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer stores.close()
	repo := stores.vehicles

	if cfg.Stops.SeedOnStart {
		created, err := services.SeedStops(ctx, stores.stops, services.DefaultStops)
		if err != nil {
			return err
		}
		logger.Info().Int("created", created).Msg("Loaded stop fixture")
	}

	// Initialize the result cache
	resultCache, closeCache, err := openCache(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	queryMetrics, err := metrics.New()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	if err := queryMetrics.ObserveActiveVehicles(repo.CountActive); err != nil {
		return fmt.Errorf("register active vehicle gauge: %w", err)
	}

	// Initialize services
	var anchors []services.AnchorSpot
	if cfg.Seed.IncludePresets {
		anchors = services.DefaultAnchors
	}
	seeder := services.NewVehicleSeeder(repo, clock, anchors, nil, logger.With().Str("component", "seeder").Logger())
	proximity := services.NewProximityService(services.ProximityDependencies{
		Store:       repo,
		Cache:       resultCache,
		Seeder:      seeder,
		ETA:         utils.NewETAEstimator(cfg.ETA.Speeds, cfg.ETA.DefaultSpeedKmH, cfg.ETA.TrafficFactor),
		Clock:       clock,
		Metrics:     queryMetrics,
		Logger:      logger.With().Str("component", "proximity").Logger(),
		Query:       cfg.Query,
		CacheTTL:    cfg.Cache.TTL,
		CachePrefix: cfg.Cache.KeyPrefix,
		SeedTotal:   cfg.Seed.TotalHint,
	})
	locationService := services.NewLocationService(repo, clock, logger.With().Str("component", "location").Logger())
	simulator := services.NewSimulator(repo, clock, cfg.Simulation, nil, logger.With().Str("component", "simulator").Logger())
	stopETA := services.NewStopETAService(services.StopETADependencies{
		Stops:    stores.stops,
		Vehicles: repo,
		ETA:      utils.NewETAEstimator(cfg.ETA.Speeds, cfg.ETA.DefaultSpeedKmH, cfg.ETA.TrafficFactor),
		Clock:    clock,
		Logger:   logger.With().Str("component", "stops").Logger(),
		Query:    cfg.Query,
		Config:   cfg.Stops,
	})

	var limiter *middleware.ClientLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewClientLimiter(cfg.RateLimit)
		defer limiter.Stop()
	}

	// Initialize handlers and router
	router := api.NewRouter(
		handlers.NewVehicleHandler(proximity, logger),
		handlers.NewLocationHandler(locationService, logger),
		handlers.NewFleetHandler(seeder, simulator, cfg.Seed, logger),
		handlers.NewStreamHandler(proximity, cfg.Stream, logger),
		handlers.NewStopHandler(stopETA, logger),
		limiter,
		locationService,
	)

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestLogger(logger.With().Str("component", "http").Logger()))
	router.Setup(engine)

	var wg sync.WaitGroup
	if cfg.Simulation.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulator.Run(ctx)
		}()
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Str("cache", cfg.Cache.Backend).
			Bool("simulation", cfg.Simulation.Enabled).
			Msg("Starting KigaliGo server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("listen on %s: %w", cfg.Server.Port, err)
		}
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	return nil
}

type storeSet struct {
	vehicles repository.VehicleRepository
	stops    repository.StopRepository
	close    func()
}

// openStores returns the configured vehicle and stop stores, which share one
// database when a SQL driver is selected.
func openStores(cfg config.StoreConfig, logger zerolog.Logger) (*storeSet, error) {
	if cfg.Driver == "memory" {
		return &storeSet{
			vehicles: memory.NewVehicleRepository(),
			stops:    memory.NewStopRepository(),
			close:    func() {},
		}, nil
	}

	db, err := gormstore.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	closeFn := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn().Err(err).Msg("Closing store failed")
		}
	}
	return &storeSet{
		vehicles: gormstore.NewVehicleRepository(db),
		stops:    gormstore.NewStopRepository(db),
		close:    closeFn,
	}, nil
}

// openCache returns the configured result cache, or nil when caching is off.
func openCache(ctx context.Context, cfg *config.Config, clock timeutil.Clock, logger zerolog.Logger) (cache.ResultCache, func(), error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := cache.NewRedisCache(client, "kigaligo:")
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Query.StoreTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			// The cache is advisory; run without it rather than refuse to start.
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable at startup, cache failures will be treated as misses")
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(clock, cfg.Cache.SweepInterval)
		return mc, mc.Stop, nil
	}
}
