package services

import (
	"context"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository/memory"
	"kigaligo/internal/timeutil"
)

func newTestSeeder(anchors []AnchorSpot) (*VehicleSeeder, *memory.VehicleRepository, *timeutil.FakeClock) {
	repo := memory.NewVehicleRepository()
	clock := timeutil.NewFakeClock(queryNow)
	rng := rand.New(rand.NewPCG(1, 2))
	return NewVehicleSeeder(repo, clock, anchors, rng, zerolog.Nop()), repo, clock
}

func TestSeedCounts(t *testing.T) {
	tests := []struct {
		hint int
		want map[entities.VehicleType]int
	}{
		{20, map[entities.VehicleType]int{"bus": 8, "taxi": 6, "moto": 6}},
		{0, map[entities.VehicleType]int{"bus": 8, "taxi": 6, "moto": 6}},
		{40, map[entities.VehicleType]int{"bus": 16, "taxi": 12, "moto": 12}},
		{10, map[entities.VehicleType]int{"bus": 4, "taxi": 3, "moto": 3}},
		{1, map[entities.VehicleType]int{"bus": 1, "taxi": 1, "moto": 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeedCounts(tt.hint), "hint %d", tt.hint)
	}
}

func TestVehicleSeeder_Seed(t *testing.T) {
	seeder, repo, _ := newTestSeeder(nil)
	ctx := context.Background()
	center := entities.NewLocation(originLat, originLng)

	res, err := seeder.Seed(ctx, center, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Created)
	assert.Zero(t, res.Reused)
	assert.Equal(t, 20, res.TotalActive)

	vehicles, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, vehicles, 20)

	registration := regexp.MustCompile(`^K[BTM]-[A-Z0-9]{4}$`)
	perType := map[entities.VehicleType]int{}
	for _, v := range vehicles {
		perType[v.Type]++
		require.NotNil(t, v.Position)
		d := geo.HaversineKm(center.Latitude, center.Longitude, v.Position.Latitude, v.Position.Longitude)
		assert.LessOrEqual(t, d, 3.0, "seeded vehicle %s outside the requested radius", v.ID)
		assert.Regexp(t, registration, v.Registration)
		assert.False(t, v.AlwaysVisible)
		assert.True(t, v.UpdatedAt.Equal(queryNow))
		assert.GreaterOrEqual(t, v.Heading, 0.0)
		assert.Less(t, v.Heading, 360.0)

		r := seedSpeeds[v.Type]
		assert.GreaterOrEqual(t, v.Speed, r.low)
		assert.LessOrEqual(t, v.Speed, r.high)
	}
	assert.Equal(t, map[entities.VehicleType]int{"bus": 8, "taxi": 6, "moto": 6}, perType)
}

func TestVehicleSeeder_AnchorsAreReused(t *testing.T) {
	seeder, repo, clock := newTestSeeder(DefaultAnchors)
	ctx := context.Background()
	center := entities.NewLocation(-1.9441, 30.0619)

	first, err := seeder.Seed(ctx, center, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, 20+len(DefaultAnchors), first.Created)
	assert.Zero(t, first.Reused)

	for _, spot := range DefaultAnchors {
		v, err := repo.FindByRouteName(ctx, entities.VehicleTypeBus, spot.Name)
		require.NoError(t, err)
		require.NotNil(t, v, "anchor %q", spot.Name)
		assert.True(t, v.AlwaysVisible)
		assert.Equal(t, spot.Lat, v.Position.Latitude)
		assert.Equal(t, spot.Lng, v.Position.Longitude)
	}

	// Move an anchor away and deactivate it; the next run puts it back.
	remera, _ := repo.FindByRouteName(ctx, entities.VehicleTypeBus, "Remera")
	require.NoError(t, repo.SetActive(ctx, remera.ID, false, queryNow))

	clock.Advance(time.Minute)
	second, err := seeder.Seed(ctx, center, 5, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, second.Created)
	assert.Equal(t, len(DefaultAnchors), second.Reused)
	assert.Equal(t, 40+len(DefaultAnchors), second.TotalActive)

	again, err := repo.GetByID(ctx, remera.ID)
	require.NoError(t, err)
	assert.True(t, again.Active)
	assert.True(t, again.UpdatedAt.Equal(clock.Now()))
}

func TestVehicleSeeder_RejectsInvalidCenter(t *testing.T) {
	seeder, _, _ := newTestSeeder(nil)
	_, err := seeder.Seed(context.Background(), entities.NewLocation(95, 0), 5, 20)
	var verr *geo.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestVehicleSeeder_ZeroRadius(t *testing.T) {
	seeder, repo, _ := newTestSeeder(nil)
	ctx := context.Background()
	center := entities.NewLocation(originLat, originLng)

	_, err := seeder.Seed(ctx, center, 0, 3)
	require.NoError(t, err)

	vehicles, _ := repo.ListActive(ctx)
	for _, v := range vehicles {
		assert.Equal(t, center.Latitude, v.Position.Latitude)
		assert.Equal(t, center.Longitude, v.Position.Longitude)
	}
}
