package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/repository/memory"
	"kigaligo/internal/timeutil"
)

func newTestLocationService() (*LocationService, *memory.VehicleRepository, *timeutil.FakeClock) {
	repo := memory.NewVehicleRepository()
	clock := timeutil.NewFakeClock(queryNow)
	return NewLocationService(repo, clock, zerolog.Nop()), repo, clock
}

func TestLocationService_RegisterVehicle(t *testing.T) {
	svc, _, _ := newTestLocationService()
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, "RAB 123A", entities.VehicleTypeBus, "Downtown - Kimironko")
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.True(t, v.Active)
	assert.False(t, v.HasPosition())
	assert.Equal(t, "Downtown - Kimironko", v.RouteName)

	stored, err := svc.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, stored)
}

func TestLocationService_RegisterVehicleValidation(t *testing.T) {
	svc, _, _ := newTestLocationService()
	ctx := context.Background()

	tests := []struct {
		name         string
		registration string
		vehicleType  entities.VehicleType
		field        string
	}{
		{"unknown type", "RAB 1", "truck", "type"},
		{"empty type", "RAB 1", "", "type"},
		{"missing registration", "", entities.VehicleTypeTaxi, "registration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterVehicle(ctx, tt.registration, tt.vehicleType, "")
			var verr *geo.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLocationService_UpdateVehiclePosition(t *testing.T) {
	svc, _, clock := newTestLocationService()
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, "RAC 500B", entities.VehicleTypeMoto, "")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	updated, err := svc.UpdateVehiclePosition(ctx, v.ID, -1.95, 30.06, -90, 42)
	require.NoError(t, err)
	require.NotNil(t, updated.Position)
	assert.Equal(t, -1.95, updated.Position.Latitude)
	assert.Equal(t, 30.06, updated.Position.Longitude)
	assert.Equal(t, 270.0, updated.Heading)
	assert.Equal(t, 42.0, updated.Speed)
	assert.True(t, updated.UpdatedAt.Equal(clock.Now()))
}

func TestLocationService_UpdateVehiclePositionRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestLocationService()
	ctx := context.Background()
	v, err := svc.RegisterVehicle(ctx, "RAD 1", entities.VehicleTypeTaxi, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lng float64
		speed    float64
		field    string
	}{
		{"latitude too large", 91, 30, 10, "lat"},
		{"longitude too small", -1.9, -181, 10, "lng"},
		{"nan latitude", math.NaN(), 30, 10, "lat"},
		{"negative speed", -1.9, 30, -5, "speed"},
		{"infinite speed", -1.9, 30, math.Inf(1), "speed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateVehiclePosition(ctx, v.ID, tt.lat, tt.lng, 0, tt.speed)
			var verr *geo.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	stored, _ := svc.GetVehicle(ctx, v.ID)
	assert.False(t, stored.HasPosition(), "rejected reports must not be stored")
}

func TestLocationService_UnknownVehicle(t *testing.T) {
	svc, _, _ := newTestLocationService()
	ctx := context.Background()

	_, err := svc.UpdateVehiclePosition(ctx, "ghost", -1.95, 30.06, 0, 10)
	assert.ErrorIs(t, err, repository.ErrVehicleNotFound)

	_, err = svc.GetVehicle(ctx, "ghost")
	assert.ErrorIs(t, err, repository.ErrVehicleNotFound)

	assert.ErrorIs(t, svc.DeactivateVehicle(ctx, "ghost"), repository.ErrVehicleNotFound)
}

func TestLocationService_DeactivatedVehicleLeavesQueries(t *testing.T) {
	svc, repo, _ := newTestLocationService()
	ctx := context.Background()

	v, err := svc.RegisterVehicle(ctx, "RAE 77", entities.VehicleTypeBus, "")
	require.NoError(t, err)
	_, err = svc.UpdateVehiclePosition(ctx, v.ID, originLat, originLng, 0, 30)
	require.NoError(t, err)

	count, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	f := newProximityFixture(t, repo)
	f.svc.cache = nil
	res, err := f.svc.FindNearby(ctx, baseQuery())
	require.NoError(t, err)
	require.Len(t, res.Vehicles, 1)

	require.NoError(t, svc.DeactivateVehicle(ctx, v.ID))

	res, err = f.svc.FindNearby(ctx, baseQuery())
	require.NoError(t, err)
	assert.Empty(t, res.Vehicles)

	count, _ = svc.CountActive(ctx)
	assert.Zero(t, count)

	stored, err := svc.GetVehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "deactivation is a soft delete")
}
