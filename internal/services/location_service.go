package services

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/timeutil"
	"kigaligo/pkg/utils"
)

// LocationService is the write path for device position reports.
type LocationService struct {
	repo  repository.VehicleWriter
	clock timeutil.Clock
	log   zerolog.Logger
}

func NewLocationService(repo repository.VehicleWriter, clock timeutil.Clock, log zerolog.Logger) *LocationService {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &LocationService{
		repo:  repo,
		clock: clock,
		log:   log,
	}
}

// RegisterVehicle creates an active vehicle with no position yet.
func (s *LocationService) RegisterVehicle(ctx context.Context, registration string, vehicleType entities.VehicleType, routeName string) (*entities.Vehicle, error) {
	if _, ok := entities.ParseVehicleType(string(vehicleType)); !ok {
		return nil, geo.NewValidationError("type", "type must be one of bus, taxi, moto, got %q", vehicleType)
	}
	if registration == "" {
		return nil, geo.NewValidationError("registration", "registration is required")
	}

	v := entities.NewVehicle(utils.GenerateID(), registration, vehicleType, s.clock.Now())
	v.RouteName = routeName
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	s.log.Info().Str("vehicle_id", v.ID).Str("type", string(vehicleType)).Msg("Vehicle registered")
	return v, nil
}

// UpdateVehiclePosition records a position report. Position, heading, speed
// and the update time are written together.
func (s *LocationService) UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lng, heading, speed float64) (*entities.Vehicle, error) {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed < 0 {
		return nil, geo.NewValidationError("speed", "speed must be a non-negative number, got %v", speed)
	}

	return s.repo.UpdatePosition(ctx, vehicleID, repository.PositionUpdate{
		Lat:     lat,
		Lng:     lng,
		Heading: entities.NormalizeHeading(heading),
		Speed:   speed,
		At:      s.clock.Now(),
	})
}

// GetVehicle retrieves a vehicle by id.
func (s *LocationService) GetVehicle(ctx context.Context, vehicleID string) (*entities.Vehicle, error) {
	return s.repo.GetByID(ctx, vehicleID)
}

// DeactivateVehicle soft-deletes a vehicle; it disappears from every query.
func (s *LocationService) DeactivateVehicle(ctx context.Context, vehicleID string) error {
	if err := s.repo.SetActive(ctx, vehicleID, false, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info().Str("vehicle_id", vehicleID).Msg("Vehicle deactivated")
	return nil
}

// CountActive reports how many vehicles are active, for health checks.
func (s *LocationService) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}
