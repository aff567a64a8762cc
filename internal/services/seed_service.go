package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/timeutil"
	"kigaligo/pkg/utils"
)

// Seeder populates an area with demo vehicles. The proximity service calls
// it at most once per query, when an auto_seed query comes back empty.
type Seeder interface {
	Seed(ctx context.Context, center entities.Location, radiusKm float64, totalHint int) (SeedResult, error)
}

// SeedResult counts what a seed run did. Reused counts anchor vehicles that
// already existed and were only repositioned.
type SeedResult struct {
	Created     int `json:"created"`
	Reused      int `json:"reused"`
	TotalActive int `json:"total_active"`
}

// AnchorSpot is a fixed, always-visible demo bus position.
type AnchorSpot struct {
	Name string
	Lat  float64
	Lng  float64
}

// DefaultAnchors are the Kigali landmarks that always carry a demo bus.
var DefaultAnchors = []AnchorSpot{
	{"City Center", -1.9500, 30.0580},
	{"Nyabugogo", -1.9441, 30.0619},
	{"Remera", -1.9300, 30.1100},
	{"Kimironko", -1.9200, 30.0900},
	{"Kicukiro", -1.9700, 30.0900},
}

// baseMix is the fleet mix for a run of defaultSeedTotal vehicles.
var baseMix = map[entities.VehicleType]int{
	entities.VehicleTypeBus:  8,
	entities.VehicleTypeTaxi: 6,
	entities.VehicleTypeMoto: 6,
}

const defaultSeedTotal = 20

type speedRange struct{ low, high float64 }

var seedSpeeds = map[entities.VehicleType]speedRange{
	entities.VehicleTypeBus:  {25, 40},
	entities.VehicleTypeTaxi: {30, 55},
	entities.VehicleTypeMoto: {35, 65},
}

var registrationPrefixes = map[entities.VehicleType]string{
	entities.VehicleTypeBus:  "KB",
	entities.VehicleTypeTaxi: "KT",
	entities.VehicleTypeMoto: "KM",
}

var routeNames = map[entities.VehicleType]string{
	entities.VehicleTypeBus:  "Bus Loop",
	entities.VehicleTypeTaxi: "Taxi Loop",
	entities.VehicleTypeMoto: "Moto Loop",
}

const registrationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// VehicleSeeder creates demo vehicles at random positions around a center.
type VehicleSeeder struct {
	repo    repository.VehicleWriter
	clock   timeutil.Clock
	anchors []AnchorSpot
	log     zerolog.Logger

	// rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewVehicleSeeder creates a seeder. A nil anchors slice disables the fixed
// anchor buses; pass DefaultAnchors to enable them. rng may be nil.
func NewVehicleSeeder(repo repository.VehicleWriter, clock timeutil.Clock, anchors []AnchorSpot, rng *rand.Rand, log zerolog.Logger) *VehicleSeeder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &VehicleSeeder{
		repo:    repo,
		clock:   clock,
		anchors: anchors,
		rng:     rng,
		log:     log,
	}
}

// SeedCounts scales the base fleet mix to totalHint, keeping at least one
// vehicle of each type. A non-positive hint uses the base mix.
func SeedCounts(totalHint int) map[entities.VehicleType]int {
	counts := make(map[entities.VehicleType]int, len(baseMix))
	if totalHint <= 0 || totalHint == defaultSeedTotal {
		for t, n := range baseMix {
			counts[t] = n
		}
		return counts
	}
	scale := float64(totalHint) / defaultSeedTotal
	for t, n := range baseMix {
		counts[t] = max(1, int(float64(n)*scale))
	}
	return counts
}

// Seed implements Seeder.
func (s *VehicleSeeder) Seed(ctx context.Context, center entities.Location, radiusKm float64, totalHint int) (SeedResult, error) {
	var result SeedResult
	if err := geo.ValidateCoordinates(center.Latitude, center.Longitude); err != nil {
		return result, err
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		radiusKm = 0
	}

	counts := SeedCounts(totalHint)
	for _, vehicleType := range entities.VehicleTypes {
		for i := 0; i < counts[vehicleType]; i++ {
			if err := s.createRandom(ctx, vehicleType, center, radiusKm); err != nil {
				return result, err
			}
			result.Created++
		}
	}

	for _, spot := range s.anchors {
		created, err := s.ensureAnchor(ctx, spot)
		if err != nil {
			return result, err
		}
		if created {
			result.Created++
		} else {
			result.Reused++
		}
	}

	total, err := s.repo.CountActive(ctx)
	if err != nil {
		return result, fmt.Errorf("count active vehicles: %w", err)
	}
	result.TotalActive = total

	s.log.Info().
		Float64("lat", center.Latitude).
		Float64("lng", center.Longitude).
		Float64("radius_km", radiusKm).
		Int("created", result.Created).
		Int("reused", result.Reused).
		Int("total_active", result.TotalActive).
		Msg("Seeded demo vehicles")
	return result, nil
}

func (s *VehicleSeeder) createRandom(ctx context.Context, vehicleType entities.VehicleType, center entities.Location, radiusKm float64) error {
	now := s.clock.Now()
	lat, lng := s.randomPointInDisc(center, radiusKm)

	v := entities.NewVehicle(utils.GenerateID(), s.randomRegistration(vehicleType), vehicleType, now)
	v.RouteName = routeNames[vehicleType]
	v.MoveTo(lat, lng, s.float64n(360), s.randomSpeed(vehicleType), now)

	if err := s.repo.Create(ctx, v); err != nil {
		return fmt.Errorf("create seeded %s: %w", vehicleType, err)
	}
	return nil
}

// ensureAnchor repositions the anchor bus for spot, creating it when absent.
func (s *VehicleSeeder) ensureAnchor(ctx context.Context, spot AnchorSpot) (bool, error) {
	now := s.clock.Now()
	existing, err := s.repo.FindByRouteName(ctx, entities.VehicleTypeBus, spot.Name)
	if err != nil {
		return false, fmt.Errorf("look up anchor %q: %w", spot.Name, err)
	}

	if existing != nil {
		update := repository.PositionUpdate{
			Lat:     spot.Lat,
			Lng:     spot.Lng,
			Heading: s.float64n(360),
			Speed:   s.randomSpeed(entities.VehicleTypeBus),
			At:      now,
		}
		if _, err := s.repo.UpdatePosition(ctx, existing.ID, update); err != nil {
			return false, fmt.Errorf("reposition anchor %q: %w", spot.Name, err)
		}
		if !existing.Active {
			if err := s.repo.SetActive(ctx, existing.ID, true, now); err != nil {
				return false, fmt.Errorf("reactivate anchor %q: %w", spot.Name, err)
			}
		}
		return false, nil
	}

	v := entities.NewVehicle(utils.GenerateID(), s.randomRegistration(entities.VehicleTypeBus), entities.VehicleTypeBus, now)
	v.RouteName = spot.Name
	v.AlwaysVisible = true
	v.MoveTo(spot.Lat, spot.Lng, s.float64n(360), s.randomSpeed(entities.VehicleTypeBus), now)
	if err := s.repo.Create(ctx, v); err != nil {
		return false, fmt.Errorf("create anchor %q: %w", spot.Name, err)
	}
	return true, nil
}

// randomPointInDisc samples uniformly by area (sqrt of a uniform radius
// fraction). The flat degree conversion can overshoot the great-circle
// radius near the rim, so such points are pulled back onto the circle.
func (s *VehicleSeeder) randomPointInDisc(center entities.Location, radiusKm float64) (float64, float64) {
	s.mu.Lock()
	u, v := s.rng.Float64(), s.rng.Float64()
	s.mu.Unlock()

	radiusDeg := radiusKm / geo.KmPerDegreeLat
	w := radiusDeg * math.Sqrt(u)
	theta := 2 * math.Pi * v
	cosLat := math.Max(0.01, math.Cos(center.Latitude*math.Pi/180))

	dLat := w * math.Cos(theta)
	dLng := w * math.Sin(theta) / cosLat

	lat, lng := center.Latitude+dLat, center.Longitude+dLng
	if d := geo.HaversineKm(center.Latitude, center.Longitude, lat, lng); d > radiusKm && d > 0 {
		f := radiusKm / d * 0.999
		lat, lng = center.Latitude+dLat*f, center.Longitude+dLng*f
	}
	return clampLat(lat), clampLng(lng)
}

func (s *VehicleSeeder) randomRegistration(vehicleType entities.VehicleType) string {
	prefix, ok := registrationPrefixes[vehicleType]
	if !ok {
		prefix = "KG"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = registrationAlphabet[s.rng.IntN(len(registrationAlphabet))]
	}
	return prefix + "-" + string(suffix)
}

// randomSpeed is rounded to one decimal place.
func (s *VehicleSeeder) randomSpeed(vehicleType entities.VehicleType) float64 {
	r, ok := seedSpeeds[vehicleType]
	if !ok {
		r = speedRange{25, 45}
	}
	speed := r.low + s.float64n(r.high-r.low)
	return math.Round(speed*10) / 10
}

func (s *VehicleSeeder) float64n(n float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() * n
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

func clampLng(lng float64) float64 {
	return math.Max(-180, math.Min(180, lng))
}
