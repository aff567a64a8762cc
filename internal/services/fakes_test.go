package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
)

// fakeStore is a scripted VehicleReader that records every call.
type fakeStore struct {
	mu sync.Mutex

	// responses are returned in order; the last one repeats.
	responses [][]*entities.Vehicle
	err       error
	block     bool // wait for ctx cancellation instead of answering

	activeCalls int
	sinceCalls  int
	lastSince   time.Time
	lastInclude bool
	lastBox     geo.BoundingBox
}

func (f *fakeStore) FetchActive(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType) ([]*entities.Vehicle, error) {
	f.mu.Lock()
	f.activeCalls++
	f.lastBox = bbox
	f.mu.Unlock()
	return f.answer(ctx)
}

func (f *fakeStore) FetchActiveSince(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType, since time.Time, includeAlwaysVisible bool) ([]*entities.Vehicle, error) {
	f.mu.Lock()
	f.sinceCalls++
	f.lastBox = bbox
	f.lastSince = since
	f.lastInclude = includeAlwaysVisible
	f.mu.Unlock()
	return f.answer(ctx)
}

func (f *fakeStore) answer(ctx context.Context) ([]*entities.Vehicle, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.activeCalls + f.sinceCalls
	if len(f.responses) == 0 {
		return nil, nil
	}
	idx := min(calls-1, len(f.responses)-1)
	out := make([]*entities.Vehicle, 0, len(f.responses[idx]))
	for _, v := range f.responses[idx] {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCalls + f.sinceCalls
}

// fakeSeeder counts invocations.
type fakeSeeder struct {
	mu     sync.Mutex
	calls  int
	center entities.Location
	radius float64
	hint   int
	err    error
	onSeed func()
	result SeedResult
}

func (f *fakeSeeder) Seed(ctx context.Context, center entities.Location, radiusKm float64, totalHint int) (SeedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.center, f.radius, f.hint = center, radiusKm, totalHint
	if f.onSeed != nil {
		f.onSeed()
	}
	return f.result, f.err
}

var errBackend = errors.New("backend down")

// failingCache fails every operation it is told to.
type failingCache struct {
	failGet bool
	failSet bool
	inner   map[string][]byte
	gets    int
	sets    int
}

func newFailingCache(failGet, failSet bool) *failingCache {
	return &failingCache{failGet: failGet, failSet: failSet, inner: make(map[string][]byte)}
}

func (c *failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.failGet {
		return nil, false, errBackend
	}
	v, ok := c.inner[key]
	return v, ok, nil
}

func (c *failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	if c.failSet {
		return errBackend
	}
	c.inner[key] = value
	return nil
}

// vehicleAt builds an active positioned vehicle.
func vehicleAt(id string, vt entities.VehicleType, lat, lng float64, updated time.Time) *entities.Vehicle {
	v := entities.NewVehicle(id, "REG-"+id, vt, updated)
	v.MoveTo(lat, lng, 0, 30, updated)
	return v
}

// pointNorth returns the point distanceKm due north of (lat, lng) on the
// haversine sphere.
func pointNorth(lat, lng, distanceKm float64) (float64, float64) {
	return lat + distanceKm/(geo.EarthRadiusKm*3.141592653589793/180), lng
}

// failingStopStore fails every fetch with err.
type failingStopStore struct {
	err error
}

func (f failingStopStore) FetchStops(ctx context.Context, bbox geo.BoundingBox, stopType entities.StopType) ([]*entities.Stop, error) {
	return nil, f.err
}

// stopAt builds an active stop.
func stopAt(code string, st entities.StopType, lat, lng float64) *entities.Stop {
	return &entities.Stop{
		ID:       "stop-" + code,
		Code:     code,
		Name:     code,
		Type:     st,
		Location: entities.NewLocation(lat, lng),
		Active:   true,
	}
}
