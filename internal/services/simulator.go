package services

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kigaligo/internal/config"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/timeutil"
)

const (
	headingJitterChance = 0.10
	headingJitterDeg    = 45.0
	speedChangeChance   = 0.05
	// Offset range, in degrees, for vehicles placed before their first report.
	initialSpread = 0.05
)

var simulationSpeeds = map[entities.VehicleType]speedRange{
	entities.VehicleTypeBus:  {20, 40},
	entities.VehicleTypeTaxi: {30, 50},
	entities.VehicleTypeMoto: {40, 60},
}

// StepResult summarizes one simulation tick.
type StepResult struct {
	Moved     int       `json:"moved_count"`
	Timestamp time.Time `json:"timestamp"`
}

// Simulator moves every active vehicle along its heading at its speed,
// reversing direction at the edges of the configured bounds.
//
// Go Learning Note — Background Goroutines:
// Run owns a ticker and exits when its context is cancelled, the same
// shape as any long-lived worker. Step does the actual work and is safe to
// call directly, which keeps the movement math testable without timers.
type Simulator struct {
	repo  repository.VehicleWriter
	clock timeutil.Clock
	cfg   config.SimulationConfig
	log   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(repo repository.VehicleWriter, clock timeutil.Clock, cfg config.SimulationConfig, rng *rand.Rand, log zerolog.Logger) *Simulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		repo:  repo,
		clock: clock,
		cfg:   cfg,
		rng:   rng,
		log:   log,
	}
}

// Step advances every active vehicle by one StepInterval.
func (s *Simulator) Step(ctx context.Context) (StepResult, error) {
	now := s.clock.Now()
	result := StepResult{Timestamp: now}

	vehicles, err := s.repo.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("list active vehicles: %w", err)
	}

	for _, v := range vehicles {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		update := s.next(v, now)
		if _, err := s.repo.UpdatePosition(ctx, v.ID, update); err != nil {
			return result, fmt.Errorf("move vehicle %s: %w", v.ID, err)
		}
		result.Moved++
	}

	s.log.Debug().Int("moved", result.Moved).Msg("Simulation step")
	return result, nil
}

// Run calls Step every StepInterval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StepInterval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.StepInterval).Msg("Vehicle simulation started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Vehicle simulation stopped")
			return
		case <-ticker.C:
			if _, err := s.Step(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Simulation step failed")
			}
		}
	}
}

func (s *Simulator) next(v *entities.Vehicle, now time.Time) repository.PositionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Position == nil {
		centerLat := (s.cfg.MinLat + s.cfg.MaxLat) / 2
		centerLng := (s.cfg.MinLng + s.cfg.MaxLng) / 2
		return repository.PositionUpdate{
			Lat:     centerLat + s.uniform(-initialSpread, initialSpread),
			Lng:     centerLng + s.uniform(-initialSpread, initialSpread),
			Heading: s.uniform(0, 360),
			Speed:   s.uniform(20, 50),
			At:      now,
		}
	}

	lat, lng := v.Position.Latitude, v.Position.Longitude
	heading, speed := v.Heading, v.Speed

	distanceKm := speed * s.cfg.StepInterval.Hours()
	rad := heading * math.Pi / 180
	cosLat := math.Max(0.01, math.Cos(lat*math.Pi/180))
	newLat := lat + distanceKm/geo.KmPerDegreeLat*math.Cos(rad)
	newLng := lng + distanceKm/geo.KmPerDegreeLat*math.Sin(rad)/cosLat

	// Leaving the bounds turns the vehicle around and it holds that axis
	// for this step.
	if newLat < s.cfg.MinLat || newLat > s.cfg.MaxLat {
		heading += 180
		newLat = lat
	}
	if newLng < s.cfg.MinLng || newLng > s.cfg.MaxLng {
		heading += 180
		newLng = lng
	}

	if s.rng.Float64() < headingJitterChance {
		heading += s.uniform(-headingJitterDeg, headingJitterDeg)
	}
	if s.rng.Float64() < speedChangeChance {
		if r, ok := simulationSpeeds[v.Type]; ok {
			speed = s.uniform(r.low, r.high)
		}
	}

	return repository.PositionUpdate{
		Lat:     newLat,
		Lng:     newLng,
		Heading: entities.NormalizeHeading(heading),
		Speed:   speed,
		At:      now,
	}
}

// uniform must be called with mu held.
func (s *Simulator) uniform(low, high float64) float64 {
	return low + s.rng.Float64()*(high-low)
}
