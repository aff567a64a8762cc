package repository

import (
	"context"
	"errors"
	"time"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrVehicleExists   = errors.New("vehicle already exists")
)

// PositionUpdate is one position report. Position, heading, speed and the
// update time are always written together.
type PositionUpdate struct {
	Lat     float64
	Lng     float64
	Heading float64
	Speed   float64
	At      time.Time
}

// VehicleReader is the read side used by the proximity query engine. Both
// fetch methods return only active vehicles with a known position. An empty
// vehicleType means "any type".
type VehicleReader interface {
	FetchActive(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType) ([]*entities.Vehicle, error)

	// FetchActiveSince additionally requires UpdatedAt >= since, unless
	// includeAlwaysVisible is set and the vehicle is flagged AlwaysVisible.
	FetchActiveSince(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType, since time.Time, includeAlwaysVisible bool) ([]*entities.Vehicle, error)
}

// VehicleWriter is the write side used by ingestion, seeding and simulation.
type VehicleWriter interface {
	Create(ctx context.Context, vehicle *entities.Vehicle) error
	GetByID(ctx context.Context, id string) (*entities.Vehicle, error)
	UpdatePosition(ctx context.Context, id string, update PositionUpdate) (*entities.Vehicle, error)
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	ListActive(ctx context.Context) ([]*entities.Vehicle, error)
	CountActive(ctx context.Context) (int, error)
	FindByRouteName(ctx context.Context, vehicleType entities.VehicleType, routeName string) (*entities.Vehicle, error)
}

// VehicleRepository is implemented by every vehicle store.
type VehicleRepository interface {
	VehicleReader
	VehicleWriter
}

// StopReader is the read side of the stop ETA query. FetchStops returns only
// active stops inside bbox that serve stopType; an empty stopType means "any".
type StopReader interface {
	FetchStops(ctx context.Context, bbox geo.BoundingBox, stopType entities.StopType) ([]*entities.Stop, error)
}

// StopRepository is implemented by every stop store. AddStops inserts the
// stops whose Code is not stored yet and reports how many were inserted.
type StopRepository interface {
	StopReader
	AddStops(ctx context.Context, stops []*entities.Stop) (int, error)
	CountStops(ctx context.Context) (int, error)
}
