package services

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kigaligo/internal/cache"
	"kigaligo/internal/config"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/metrics"
	"kigaligo/internal/repository"
	"kigaligo/internal/timeutil"
	"kigaligo/pkg/utils"
)

// RawQuery is a proximity query as received from a client, before parsing.
// Unknown parameters such as cache-busting nonces never reach it.
type RawQuery struct {
	Lat      string
	Lng      string
	Radius   string
	Type     string
	Since    string
	AutoSeed string
}

// Query is a parsed proximity query. A nil Since means "full snapshot".
type Query struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	Type     entities.VehicleType
	Since    *time.Time
	AutoSeed bool
}

// NearbyVehicle is one row of a QueryResult.
type NearbyVehicle struct {
	ID           string               `json:"id"`
	Registration string               `json:"registration"`
	Type         entities.VehicleType `json:"type"`
	RouteName    string               `json:"route_name,omitempty"`
	Lat          float64              `json:"lat"`
	Lng          float64              `json:"lng"`
	Heading      float64              `json:"heading"`
	Speed        float64              `json:"speed"`
	DistanceKm   float64              `json:"distance_km"`
	ETAMinutes   float64              `json:"eta_minutes"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// QueryResult is the response to a proximity query. Vehicles are sorted by
// distance, then id, and every DistanceKm is at most RadiusKm.
type QueryResult struct {
	Vehicles  []NearbyVehicle   `json:"vehicles"`
	Count     int               `json:"count"`
	Center    entities.Location `json:"center"`
	RadiusKm  float64           `json:"radius_km"`
	Type      string            `json:"type,omitempty"`
	Since     *time.Time        `json:"since,omitempty"`
	Seeded    bool              `json:"seeded,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Cached    bool              `json:"cached"`
}

// ProximityDependencies groups the collaborators of ProximityService. Cache,
// Seeder and Metrics are optional.
type ProximityDependencies struct {
	Store   repository.VehicleReader
	Cache   cache.ResultCache
	Seeder  Seeder
	ETA     *utils.ETAEstimator
	Clock   timeutil.Clock
	Metrics *metrics.QueryMetrics
	Logger  zerolog.Logger

	Query       config.QueryConfig
	CacheTTL    time.Duration
	CachePrefix string
	SeedTotal   int
}

// ProximityService answers "which active vehicles are near this point".
//
// A query runs entirely on the calling goroutine. The only blocking calls
// are the store fetch and the optional seed fallback, and each gets its own
// timeout derived from the request context.
type ProximityService struct {
	store   repository.VehicleReader
	cache   cache.ResultCache
	seeder  Seeder
	eta     *utils.ETAEstimator
	clock   timeutil.Clock
	metrics *metrics.QueryMetrics
	log     zerolog.Logger

	cfg         config.QueryConfig
	cacheTTL    time.Duration
	cachePrefix string
	seedTotal   int
}

func NewProximityService(deps ProximityDependencies) *ProximityService {
	s := &ProximityService{
		store:       deps.Store,
		cache:       deps.Cache,
		seeder:      deps.Seeder,
		eta:         deps.ETA,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		log:         deps.Logger,
		cfg:         deps.Query,
		cacheTTL:    deps.CacheTTL,
		cachePrefix: deps.CachePrefix,
		seedTotal:   deps.SeedTotal,
	}
	defaults := config.NewDefaultConfig()
	if s.eta == nil {
		s.eta = utils.NewETAEstimator(nil, 0, 1)
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.cfg.MaxRadiusKm <= 0 {
		s.cfg.MaxRadiusKm = defaults.Query.MaxRadiusKm
	}
	if s.cfg.DefaultRadiusKm <= 0 {
		s.cfg.DefaultRadiusKm = defaults.Query.DefaultRadiusKm
	}
	if s.cfg.MaxResults <= 0 {
		s.cfg.MaxResults = defaults.Query.MaxResults
	}
	if s.cfg.StoreTimeout <= 0 {
		s.cfg.StoreTimeout = defaults.Query.StoreTimeout
	}
	if s.cfg.SeedTimeout <= 0 {
		s.cfg.SeedTimeout = defaults.Query.SeedTimeout
	}
	if s.cfg.MaxSinceAge <= 0 {
		s.cfg.MaxSinceAge = defaults.Query.MaxSinceAge
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaults.Cache.TTL
	}
	if s.seedTotal <= 0 {
		s.seedTotal = defaults.Seed.TotalHint
	}
	return s
}

// ParseQuery converts client parameters into a Query, filling in the
// default radius. Every failure is a *geo.ValidationError naming the
// offending parameter.
func (s *ProximityService) ParseQuery(raw RawQuery) (Query, error) {
	q := Query{RadiusKm: s.cfg.DefaultRadiusKm}

	lat, lng, err := parsePoint(raw.Lat, raw.Lng)
	if err != nil {
		return q, err
	}
	q.Lat, q.Lng = lat, lng

	if raw.Radius != "" {
		if q.RadiusKm, err = parseRadius(raw.Radius); err != nil {
			return q, err
		}
	}

	if raw.Type != "" {
		t, ok := entities.ParseVehicleType(strings.ToLower(strings.TrimSpace(raw.Type)))
		if !ok {
			return q, geo.NewValidationError("type", "type must be one of bus, taxi, moto, got %q", raw.Type)
		}
		q.Type = t
	}

	if raw.Since != "" {
		since, err := ParseSince(raw.Since)
		if err != nil {
			return q, err
		}
		q.Since = &since
	}

	if raw.AutoSeed != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(raw.AutoSeed))
		if err != nil {
			return q, geo.NewValidationError("auto_seed", "auto_seed must be a boolean, got %q", raw.AutoSeed)
		}
		q.AutoSeed = b
	}

	return q, nil
}

// parsePoint parses and range-checks a required lat/lng pair.
func parsePoint(rawLat, rawLng string) (float64, float64, error) {
	if rawLat == "" {
		return 0, 0, geo.NewValidationError("lat", "latitude is required")
	}
	if rawLng == "" {
		return 0, 0, geo.NewValidationError("lng", "longitude is required")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(rawLat), 64)
	if err != nil {
		return 0, 0, geo.NewValidationError("lat", "latitude must be a number, got %q", rawLat)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(rawLng), 64)
	if err != nil {
		return 0, 0, geo.NewValidationError("lng", "longitude must be a number, got %q", rawLng)
	}
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func parseRadius(raw string) (float64, error) {
	r, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(r) {
		return 0, geo.NewValidationError("radius", "radius must be a number, got %q", raw)
	}
	return r, nil
}

// clampRadius clamps a requested radius into [0, maxKm]; NaN means fallback.
func clampRadius(requested, fallback, maxKm float64) float64 {
	switch {
	case math.IsNaN(requested):
		return fallback
	case requested < 0:
		return 0
	case requested > maxKm:
		return maxKm
	default:
		return requested
	}
}

// EffectiveRadius clamps a requested radius into [0, MaxRadiusKm].
func (s *ProximityService) EffectiveRadius(requested float64) float64 {
	return clampRadius(requested, s.cfg.DefaultRadiusKm, s.cfg.MaxRadiusKm)
}

type candidate struct {
	vehicle    *entities.Vehicle
	distanceKm float64
}

// FindNearby runs a proximity query.
//
// Without a cursor the result may come from the cache, in which case Cached
// is true. With a cursor the cache is neither read nor written.
func (s *ProximityService) FindNearby(ctx context.Context, q Query) (*QueryResult, error) {
	started := time.Now()

	if err := geo.ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return nil, err
	}
	if q.Type != "" {
		if _, ok := entities.ParseVehicleType(string(q.Type)); !ok {
			return nil, geo.NewValidationError("type", "unknown vehicle type %q", q.Type)
		}
	}

	radius := s.EffectiveRadius(q.RadiusKm)
	now := s.clock.Now()

	var since *time.Time
	if q.Since != nil {
		clamped := ClampSince(q.Since.UTC(), now, s.cfg.MaxSinceAge)
		since = &clamped
	}

	var key string
	if since == nil && s.cache != nil {
		key = cache.BuildKey(s.cachePrefix, cache.KeyParams{
			Lat:      q.Lat,
			Lng:      q.Lng,
			RadiusKm: radius,
			Type:     string(q.Type),
			AutoSeed: q.AutoSeed,
		})
		if result, ok := s.readCache(ctx, key); ok {
			s.record(ctx, started, result)
			return result, nil
		}
	}

	box := geo.ComputeBoundingBox(q.Lat, q.Lng, radius)

	matches, err := s.collect(ctx, q, box, radius, since)
	if err != nil {
		return nil, err
	}

	seeded := false
	if len(matches) == 0 && q.AutoSeed && s.seeder != nil {
		if err := s.seed(ctx, q, radius); err != nil {
			return nil, err
		}
		seeded = true
		// One retry only, even if the area is still empty.
		matches, err = s.collect(ctx, q, box, radius, since)
		if err != nil {
			return nil, err
		}
	}

	slices.SortFunc(matches, func(a, b candidate) int {
		if c := cmp.Compare(a.distanceKm, b.distanceKm); c != 0 {
			return c
		}
		return strings.Compare(a.vehicle.ID, b.vehicle.ID)
	})
	if len(matches) > s.cfg.MaxResults {
		matches = matches[:s.cfg.MaxResults]
	}

	result := &QueryResult{
		Vehicles:  make([]NearbyVehicle, 0, len(matches)),
		Center:    entities.NewLocation(q.Lat, q.Lng),
		RadiusKm:  radius,
		Type:      string(q.Type),
		Since:     since,
		Seeded:    seeded,
		Timestamp: now,
	}
	for _, m := range matches {
		v := m.vehicle
		result.Vehicles = append(result.Vehicles, NearbyVehicle{
			ID:           v.ID,
			Registration: v.Registration,
			Type:         v.Type,
			RouteName:    v.RouteName,
			Lat:          v.Position.Latitude,
			Lng:          v.Position.Longitude,
			Heading:      v.Heading,
			Speed:        v.Speed,
			DistanceKm:   m.distanceKm,
			ETAMinutes:   s.eta.Minutes(m.distanceKm, string(v.Type)),
			UpdatedAt:    v.UpdatedAt,
		})
	}
	result.Count = len(result.Vehicles)

	if key != "" {
		s.writeCache(ctx, key, result)
	}

	s.record(ctx, started, result)
	return result, nil
}

// collect fetches candidates inside box and keeps those within radius.
func (s *ProximityService) collect(ctx context.Context, q Query, box geo.BoundingBox, radius float64, since *time.Time) ([]candidate, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	var (
		vehicles []*entities.Vehicle
		err      error
	)
	if since != nil {
		vehicles, err = s.store.FetchActiveSince(fetchCtx, box, q.Type, *since, true)
	} else {
		vehicles, err = s.store.FetchActive(fetchCtx, box, q.Type)
	}
	if err != nil {
		s.queryLog(zerolog.ErrorLevel, q, radius, since).Err(err).Msg("Vehicle store fetch failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var (
		matches       []candidate
		outsideRadius int
		noPosition    int
	)
	for _, v := range vehicles {
		if !v.Active {
			continue
		}
		if v.Position == nil {
			noPosition++
			continue
		}
		if q.Type != "" && v.Type != q.Type {
			continue
		}
		if since != nil && !IsIncrementalMatch(v, *since) {
			continue
		}
		d := geo.HaversineKm(q.Lat, q.Lng, v.Position.Latitude, v.Position.Longitude)
		if d > radius {
			outsideRadius++
			continue
		}
		matches = append(matches, candidate{vehicle: v, distanceKm: d})
	}

	s.log.Debug().
		Float64("lat", q.Lat).
		Float64("lng", q.Lng).
		Float64("radius_km", radius).
		Int("candidates", len(vehicles)).
		Int("nearby", len(matches)).
		Int("outside_radius", outsideRadius).
		Int("without_position", noPosition).
		Msg("Filtered proximity candidates")

	return matches, nil
}

func (s *ProximityService) seed(ctx context.Context, q Query, radius float64) error {
	seedCtx, cancel := context.WithTimeout(ctx, s.cfg.SeedTimeout)
	defer cancel()

	res, err := s.seeder.Seed(seedCtx, entities.NewLocation(q.Lat, q.Lng), radius, s.seedTotal)
	if s.metrics != nil {
		s.metrics.RecordSeed(ctx, err == nil)
	}
	if err != nil {
		s.queryLog(zerolog.ErrorLevel, q, radius, nil).Err(err).Msg("Seed fallback failed")
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}

	s.queryLog(zerolog.InfoLevel, q, radius, nil).
		Int("created", res.Created).
		Int("reused", res.Reused).
		Msg("Seeded empty area")
	return nil
}

// readCache treats backend failures and undecodable entries as misses.
func (s *ProximityService) readCache(ctx context.Context, key string) (*QueryResult, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheFailure(ctx, "get", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.cacheFailure(ctx, "get", key, err)
		return nil, false
	}
	result.Cached = true
	return &result, true
}

// writeCache logs and swallows failures.
func (s *ProximityService) writeCache(ctx context.Context, key string, result *QueryResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.cacheFailure(ctx, "set", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.cacheFailure(ctx, "set", key, err)
	}
}

func (s *ProximityService) cacheFailure(ctx context.Context, op, key string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("Result cache failure")
	if s.metrics != nil {
		s.metrics.RecordCacheError(ctx, op)
	}
}

func (s *ProximityService) record(ctx context.Context, started time.Time, result *QueryResult) {
	if s.metrics != nil {
		s.metrics.RecordQuery(ctx, time.Since(started), result.Count, result.Cached, result.Since != nil)
	}
}

// queryLog starts an event carrying the query context needed to reproduce a
// failure.
func (s *ProximityService) queryLog(level zerolog.Level, q Query, radius float64, since *time.Time) *zerolog.Event {
	e := s.log.WithLevel(level).
		Float64("lat", q.Lat).
		Float64("lng", q.Lng).
		Float64("radius_km", radius).
		Str("type", string(q.Type)).
		Bool("auto_seed", q.AutoSeed)
	if since != nil {
		e = e.Time("since", *since)
	}
	return e
}
