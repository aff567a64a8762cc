package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kigaligo/internal/config"
	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *VehicleRepository {
	t.Helper()
	db, err := Open(config.StoreConfig{Driver: "sqlite", AutoMigrate: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewVehicleRepository(db)
}

func seedVehicle(t *testing.T, repo *VehicleRepository, id string, vt entities.VehicleType, lat, lng float64, updated time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entities.NewVehicle(id, "REG-"+id, vt, updated)))
	_, err := repo.UpdatePosition(ctx, id, repository.PositionUpdate{Lat: lat, Lng: lng, Speed: 30, At: updated})
	require.NoError(t, err)
}

func ids(vehicles []*entities.Vehicle) []string {
	out := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, v.ID)
	}
	return out
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestVehicleRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	v := entities.NewVehicle("v-1", "KB-AB12", entities.VehicleTypeBus, testNow)
	v.RouteName = "Nyabugogo"
	v.AlwaysVisible = true
	require.NoError(t, repo.Create(ctx, v))

	got, err := repo.GetByID(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, "KB-AB12", got.Registration)
	assert.Equal(t, entities.VehicleTypeBus, got.Type)
	assert.True(t, got.Active)
	assert.True(t, got.AlwaysVisible)
	assert.Nil(t, got.Position, "a new vehicle has no position")
	assert.True(t, got.UpdatedAt.Equal(testNow))

	assert.ErrorIs(t, repo.Create(ctx, v), repository.ErrVehicleExists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrVehicleNotFound)
}

func TestVehicleRepository_UpdatePosition(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entities.NewVehicle("v-1", "KT-0001", entities.VehicleTypeTaxi, testNow)))

	later := testNow.Add(time.Minute)
	got, err := repo.UpdatePosition(ctx, "v-1", repository.PositionUpdate{
		Lat: -1.95, Lng: 30.06, Heading: -90, Speed: 42, At: later,
	})
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	assert.Equal(t, -1.95, got.Position.Latitude)
	assert.Equal(t, 30.06, got.Position.Longitude)
	assert.Equal(t, 270.0, got.Heading)
	assert.Equal(t, 42.0, got.Speed)
	assert.True(t, got.UpdatedAt.Equal(later), "updated_at must come from the report, got %v", got.UpdatedAt)
	assert.True(t, got.CreatedAt.Equal(testNow), "created_at must not change")

	_, err = repo.UpdatePosition(ctx, "missing", repository.PositionUpdate{At: later})
	assert.ErrorIs(t, err, repository.ErrVehicleNotFound)
}

func TestVehicleRepository_FetchActive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedVehicle(t, repo, "inside-bus", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	seedVehicle(t, repo, "inside-moto", entities.VehicleTypeMoto, -1.96, 30.10, testNow)
	seedVehicle(t, repo, "outside", entities.VehicleTypeBus, -2.50, 30.09, testNow)
	seedVehicle(t, repo, "inactive", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	require.NoError(t, repo.SetActive(ctx, "inactive", false, testNow))
	require.NoError(t, repo.Create(ctx, entities.NewVehicle("unpositioned", "R", entities.VehicleTypeBus, testNow)))

	box := geo.ComputeBoundingBox(-1.9595, 30.0941, 5)

	all, err := repo.FetchActive(ctx, box, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inside-bus", "inside-moto"}, ids(all))

	motos, err := repo.FetchActive(ctx, box, entities.VehicleTypeMoto)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside-moto"}, ids(motos))

	n, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 4)
}

func TestVehicleRepository_FetchActiveSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	since := testNow.Add(-time.Minute)

	seedVehicle(t, repo, "fresh", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	seedVehicle(t, repo, "boundary", entities.VehicleTypeBus, -1.95, 30.09, since)
	seedVehicle(t, repo, "stale", entities.VehicleTypeBus, -1.95, 30.09, testNow.Add(-time.Hour))

	anchor := entities.NewVehicle("anchor", "KB-STAT", entities.VehicleTypeBus, testNow)
	anchor.AlwaysVisible = true
	require.NoError(t, repo.Create(ctx, anchor))
	_, err := repo.UpdatePosition(ctx, "anchor", repository.PositionUpdate{Lat: -1.95, Lng: 30.09, At: testNow.Add(-2 * time.Hour)})
	require.NoError(t, err)

	box := geo.ComputeBoundingBox(-1.95, 30.09, 5)

	got, err := repo.FetchActiveSince(ctx, box, "", since, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "boundary", "anchor"}, ids(got))

	got, err = repo.FetchActiveSince(ctx, box, "", since, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "boundary"}, ids(got))
}

func TestVehicleRepository_FindByRouteName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.FindByRouteName(ctx, entities.VehicleTypeBus, "Remera")
	require.NoError(t, err)
	assert.Nil(t, got)

	v := entities.NewVehicle("remera", "KB-REM1", entities.VehicleTypeBus, testNow)
	v.RouteName = "Remera"
	require.NoError(t, repo.Create(ctx, v))

	got, err = repo.FindByRouteName(ctx, entities.VehicleTypeBus, "Remera")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "remera", got.ID)

	got, err = repo.FindByRouteName(ctx, entities.VehicleTypeTaxi, "Remera")
	require.NoError(t, err)
	assert.Nil(t, got, "route lookup is scoped to the vehicle type")
}

func TestVehicleRepository_CancelledContext(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FetchActive(ctx, geo.ComputeBoundingBox(0, 0, 1), "")
	assert.Error(t, err)
}
