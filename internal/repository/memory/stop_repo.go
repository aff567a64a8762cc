package memory

import (
	"context"
	"sync"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
)

// StopRepository keeps stops in memory, keyed by Code.
type StopRepository struct {
	mu    sync.RWMutex
	stops map[string]*entities.Stop
}

func NewStopRepository() *StopRepository {
	return &StopRepository{
		stops: make(map[string]*entities.Stop),
	}
}

// AddStops skips stops whose code is already stored.
func (r *StopRepository) AddStops(ctx context.Context, stops []*entities.Stop) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := 0
	for _, stop := range stops {
		if _, exists := r.stops[stop.Code]; exists {
			continue
		}
		r.stops[stop.Code] = stop.Clone()
		created++
	}
	return created, nil
}

func (r *StopRepository) CountStops(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stops), nil
}

func (r *StopRepository) FetchStops(ctx context.Context, bbox geo.BoundingBox, stopType entities.StopType) ([]*entities.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Stop
	for _, stop := range r.stops {
		if !stop.Active || !stop.Type.Serves(stopType) {
			continue
		}
		if !bbox.Contains(stop.Location.Latitude, stop.Location.Longitude) {
			continue
		}
		out = append(out, stop.Clone())
	}
	return out, nil
}
