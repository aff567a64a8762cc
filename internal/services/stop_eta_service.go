package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kigaligo/internal/config"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/timeutil"
	"kigaligo/pkg/utils"
)

// StopRawQuery is a stop ETA query as received from a client.
type StopRawQuery struct {
	Lat      string
	Lng      string
	Radius   string
	StopType string
}

// StopQuery is a parsed stop ETA query. An empty StopType matches every stop.
type StopQuery struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	StopType entities.StopType
}

// ArrivingVehicle is the vehicle nearest to a stop.
type ArrivingVehicle struct {
	ID           string               `json:"id"`
	Registration string               `json:"registration"`
	Type         entities.VehicleType `json:"type"`
	DistanceKm   float64              `json:"distance_km"`
	ETAMinutes   float64              `json:"eta_minutes"`
}

// NearbyStop is one row of a StopETAResult. ETAMinutes and NearestVehicle
// are null when no active vehicle is close enough to the stop.
type NearbyStop struct {
	ID             string            `json:"id"`
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Type           entities.StopType `json:"type"`
	Zone           string            `json:"zone,omitempty"`
	Lat            float64           `json:"lat"`
	Lng            float64           `json:"lng"`
	DistanceKm     float64           `json:"distance_km"`
	ETAMinutes     *float64          `json:"eta_minutes"`
	NearestVehicle *ArrivingVehicle  `json:"nearest_vehicle"`
}

// StopETAResult lists stops sorted by distance from the center, then code.
type StopETAResult struct {
	Stops     []NearbyStop      `json:"stops"`
	Count     int               `json:"count"`
	Center    entities.Location `json:"center"`
	RadiusKm  float64           `json:"radius_km"`
	StopType  string            `json:"stop_type,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// StopETADependencies groups the collaborators of StopETAService.
type StopETADependencies struct {
	Stops    repository.StopReader
	Vehicles repository.VehicleReader
	ETA      *utils.ETAEstimator
	Clock    timeutil.Clock
	Logger   zerolog.Logger

	Query  config.QueryConfig
	Config config.StopsConfig
}

// StopETAService answers "which stops are near me and when does something
// arrive at each of them".
type StopETAService struct {
	stops    repository.StopReader
	vehicles repository.VehicleReader
	eta      *utils.ETAEstimator
	clock    timeutil.Clock
	log      zerolog.Logger

	maxRadiusKm     float64
	defaultRadiusKm float64
	vehicleRadiusKm float64
	maxResults      int
	storeTimeout    time.Duration
}

func NewStopETAService(deps StopETADependencies) *StopETAService {
	defaults := config.NewDefaultConfig()
	s := &StopETAService{
		stops:           deps.Stops,
		vehicles:        deps.Vehicles,
		eta:             deps.ETA,
		clock:           deps.Clock,
		log:             deps.Logger,
		maxRadiusKm:     deps.Query.MaxRadiusKm,
		defaultRadiusKm: deps.Config.DefaultRadiusKm,
		vehicleRadiusKm: deps.Config.VehicleRadiusKm,
		maxResults:      deps.Query.MaxResults,
		storeTimeout:    deps.Query.StoreTimeout,
	}
	if s.eta == nil {
		s.eta = utils.NewETAEstimator(nil, 0, 1)
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.maxRadiusKm <= 0 {
		s.maxRadiusKm = defaults.Query.MaxRadiusKm
	}
	if s.defaultRadiusKm <= 0 {
		s.defaultRadiusKm = defaults.Stops.DefaultRadiusKm
	}
	if s.vehicleRadiusKm <= 0 {
		s.vehicleRadiusKm = defaults.Stops.VehicleRadiusKm
	}
	if s.maxResults <= 0 {
		s.maxResults = defaults.Query.MaxResults
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaults.Query.StoreTimeout
	}
	return s
}

// ParseQuery converts client parameters into a StopQuery. Failures are
// *geo.ValidationError values.
func (s *StopETAService) ParseQuery(raw StopRawQuery) (StopQuery, error) {
	q := StopQuery{RadiusKm: s.defaultRadiusKm}

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

	if raw.StopType != "" {
		t, ok := entities.ParseStopType(strings.ToLower(strings.TrimSpace(raw.StopType)))
		if !ok {
			return q, geo.NewValidationError("stop_type", "stop_type must be one of bus, taxi, moto, combined, got %q", raw.StopType)
		}
		q.StopType = t
	}
	return q, nil
}

type stopMatch struct {
	stop       *entities.Stop
	distanceKm float64
}

// FindStops returns the stops within the query radius. Each stop carries the
// nearest active vehicle strictly closer than the vehicle radius, with its
// ETA to the stop.
func (s *StopETAService) FindStops(ctx context.Context, q StopQuery) (*StopETAResult, error) {
	if err := geo.ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return nil, err
	}
	if q.StopType != "" {
		if _, ok := entities.ParseStopType(string(q.StopType)); !ok {
			return nil, geo.NewValidationError("stop_type", "unknown stop type %q", q.StopType)
		}
	}

	radius := clampRadius(q.RadiusKm, s.defaultRadiusKm, s.maxRadiusKm)

	matches, err := s.nearbyStops(ctx, q, radius)
	if err != nil {
		return nil, err
	}

	result := &StopETAResult{
		Stops:     make([]NearbyStop, 0, len(matches)),
		Center:    entities.NewLocation(q.Lat, q.Lng),
		RadiusKm:  radius,
		StopType:  string(q.StopType),
		Timestamp: s.clock.Now(),
	}
	if len(matches) == 0 {
		return result, nil
	}

	// A vehicle that counts for any stop is within radius+vehicleRadius of
	// the center, so one fetch covers every stop.
	vehicles, err := s.fetchVehicles(ctx, geo.ComputeBoundingBox(q.Lat, q.Lng, radius+s.vehicleRadiusKm))
	if err != nil {
		return nil, err
	}

	withVehicle := 0
	for _, m := range matches {
		row := NearbyStop{
			ID:         m.stop.ID,
			Code:       m.stop.Code,
			Name:       m.stop.Name,
			Type:       m.stop.Type,
			Zone:       m.stop.Zone,
			Lat:        m.stop.Location.Latitude,
			Lng:        m.stop.Location.Longitude,
			DistanceKm: m.distanceKm,
		}
		if v := s.nearestVehicle(m.stop, vehicles); v != nil {
			eta := v.ETAMinutes
			row.ETAMinutes = &eta
			row.NearestVehicle = v
			withVehicle++
		}
		result.Stops = append(result.Stops, row)
	}
	result.Count = len(result.Stops)

	s.log.Debug().
		Float64("lat", q.Lat).
		Float64("lng", q.Lng).
		Float64("radius_km", radius).
		Str("stop_type", string(q.StopType)).
		Int("stops", result.Count).
		Int("with_vehicle", withVehicle).
		Int("vehicle_candidates", len(vehicles)).
		Msg("Computed stop ETAs")

	return result, nil
}

func (s *StopETAService) nearbyStops(ctx context.Context, q StopQuery, radius float64) ([]stopMatch, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stops, err := s.stops.FetchStops(fetchCtx, geo.ComputeBoundingBox(q.Lat, q.Lng, radius), q.StopType)
	if err != nil {
		s.log.Error().Err(err).
			Float64("lat", q.Lat).
			Float64("lng", q.Lng).
			Float64("radius_km", radius).
			Msg("Stop store fetch failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var matches []stopMatch
	for _, stop := range stops {
		if !stop.Active || !stop.Type.Serves(q.StopType) {
			continue
		}
		d := geo.HaversineKm(q.Lat, q.Lng, stop.Location.Latitude, stop.Location.Longitude)
		if d > radius {
			continue
		}
		matches = append(matches, stopMatch{stop: stop, distanceKm: d})
	}

	slices.SortFunc(matches, func(a, b stopMatch) int {
		if c := cmp.Compare(a.distanceKm, b.distanceKm); c != 0 {
			return c
		}
		return strings.Compare(a.stop.Code, b.stop.Code)
	})
	if len(matches) > s.maxResults {
		matches = matches[:s.maxResults]
	}
	return matches, nil
}

func (s *StopETAService) fetchVehicles(ctx context.Context, box geo.BoundingBox) ([]*entities.Vehicle, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	vehicles, err := s.vehicles.FetchActive(fetchCtx, box, "")
	if err != nil {
		s.log.Error().Err(err).Interface("bbox", box).Msg("Vehicle store fetch failed")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return vehicles, nil
}

// nearestVehicle returns nil when no vehicle is strictly within the vehicle
// radius of the stop. Equal distances go to the lower id.
func (s *StopETAService) nearestVehicle(stop *entities.Stop, vehicles []*entities.Vehicle) *ArrivingVehicle {
	var (
		best     *entities.Vehicle
		bestDist float64
	)
	for _, v := range vehicles {
		if !v.Active || v.Position == nil {
			continue
		}
		d := geo.HaversineKm(stop.Location.Latitude, stop.Location.Longitude, v.Position.Latitude, v.Position.Longitude)
		if d >= s.vehicleRadiusKm {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && v.ID < best.ID) {
			best, bestDist = v, d
		}
	}
	if best == nil {
		return nil
	}
	return &ArrivingVehicle{
		ID:           best.ID,
		Registration: best.Registration,
		Type:         best.Type,
		DistanceKm:   bestDist,
		ETAMinutes:   s.eta.Minutes(bestDist, string(best.Type)),
	}
}
