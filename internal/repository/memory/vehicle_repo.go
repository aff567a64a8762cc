package memory

import (
	"context"
	"sync"
	"time"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
)

// VehicleRepository stores vehicles in memory. Proximity reads scan every
// vehicle against the bounding box; there is no spatial index.
//
// Every method hands out clones, so a caller holding a *Vehicle never sees a
// concurrent position update half-applied.
type VehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*entities.Vehicle
}

func NewVehicleRepository() *VehicleRepository {
	return &VehicleRepository{
		vehicles: make(map[string]*entities.Vehicle),
	}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *entities.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.vehicles[vehicle.ID]; exists {
		return repository.ErrVehicleExists
	}
	r.vehicles[vehicle.ID] = vehicle.Clone()
	return nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*entities.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vehicle, exists := r.vehicles[id]
	if !exists {
		return nil, repository.ErrVehicleNotFound
	}
	return vehicle.Clone(), nil
}

// UpdatePosition applies a position report atomically under the write lock.
func (r *VehicleRepository) UpdatePosition(ctx context.Context, id string, update repository.PositionUpdate) (*entities.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	vehicle, exists := r.vehicles[id]
	if !exists {
		return nil, repository.ErrVehicleNotFound
	}
	vehicle.MoveTo(update.Lat, update.Lng, update.Heading, update.Speed, update.At)
	return vehicle.Clone(), nil
}

func (r *VehicleRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vehicle, exists := r.vehicles[id]
	if !exists {
		return repository.ErrVehicleNotFound
	}
	vehicle.Active = active
	vehicle.UpdatedAt = at
	return nil
}

func (r *VehicleRepository) ListActive(ctx context.Context) ([]*entities.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*entities.Vehicle
	for _, vehicle := range r.vehicles {
		if vehicle.Active {
			active = append(active, vehicle.Clone())
		}
	}
	return active, nil
}

func (r *VehicleRepository) CountActive(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, vehicle := range r.vehicles {
		if vehicle.Active {
			count++
		}
	}
	return count, nil
}

// FindByRouteName returns (nil, nil) when no vehicle matches.
func (r *VehicleRepository) FindByRouteName(ctx context.Context, vehicleType entities.VehicleType, routeName string) (*entities.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, vehicle := range r.vehicles {
		if vehicle.Type == vehicleType && vehicle.RouteName == routeName {
			return vehicle.Clone(), nil
		}
	}
	return nil, nil
}

func (r *VehicleRepository) FetchActive(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType) ([]*entities.Vehicle, error) {
	return r.fetch(ctx, bbox, vehicleType, func(*entities.Vehicle) bool { return true })
}

func (r *VehicleRepository) FetchActiveSince(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType, since time.Time, includeAlwaysVisible bool) ([]*entities.Vehicle, error) {
	return r.fetch(ctx, bbox, vehicleType, func(v *entities.Vehicle) bool {
		return !v.UpdatedAt.Before(since) || (includeAlwaysVisible && v.AlwaysVisible)
	})
}

// fetch is an O(n) scan over all vehicles. It checks ctx once up front so a
// request that was already cancelled does not pay for the scan.
func (r *VehicleRepository) fetch(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType, keep func(*entities.Vehicle) bool) ([]*entities.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*entities.Vehicle
	for _, vehicle := range r.vehicles {
		if !vehicle.Active || vehicle.Position == nil {
			continue
		}
		if vehicleType != "" && vehicle.Type != vehicleType {
			continue
		}
		if !bbox.Contains(vehicle.Position.Latitude, vehicle.Position.Longitude) {
			continue
		}
		if !keep(vehicle) {
			continue
		}
		candidates = append(candidates, vehicle.Clone())
	}
	return candidates, nil
}
