package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func addVehicle(t *testing.T, repo *VehicleRepository, id string, vt entities.VehicleType, lat, lng float64, updated time.Time) {
	t.Helper()
	ctx := context.Background()
	v := entities.NewVehicle(id, "REG-"+id, vt, updated)
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	if _, err := repo.UpdatePosition(ctx, id, repository.PositionUpdate{Lat: lat, Lng: lng, Speed: 20, At: updated}); err != nil {
		t.Fatalf("position %s: %v", id, err)
	}
}

func idsOf(vehicles []*entities.Vehicle) map[string]bool {
	ids := make(map[string]bool, len(vehicles))
	for _, v := range vehicles {
		ids[v.ID] = true
	}
	return ids
}

func TestVehicleRepository_FetchActive(t *testing.T) {
	repo := NewVehicleRepository()
	ctx := context.Background()

	addVehicle(t, repo, "inside-bus", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	addVehicle(t, repo, "inside-taxi", entities.VehicleTypeTaxi, -1.96, 30.10, testNow)
	addVehicle(t, repo, "outside", entities.VehicleTypeBus, -2.50, 30.09, testNow)
	addVehicle(t, repo, "inactive", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	if err := repo.SetActive(ctx, "inactive", false, testNow); err != nil {
		t.Fatal(err)
	}
	// Never reported a position.
	if err := repo.Create(ctx, entities.NewVehicle("no-position", "REG", entities.VehicleTypeBus, testNow)); err != nil {
		t.Fatal(err)
	}

	box := geo.ComputeBoundingBox(-1.9595, 30.0941, 5)

	all, err := repo.FetchActive(ctx, box, "")
	if err != nil {
		t.Fatal(err)
	}
	ids := idsOf(all)
	if len(ids) != 2 || !ids["inside-bus"] || !ids["inside-taxi"] {
		t.Errorf("unexpected candidates: %v", ids)
	}

	buses, err := repo.FetchActive(ctx, box, entities.VehicleTypeBus)
	if err != nil {
		t.Fatal(err)
	}
	if len(buses) != 1 || buses[0].ID != "inside-bus" {
		t.Errorf("expected only inside-bus, got %v", idsOf(buses))
	}
}

func TestVehicleRepository_FetchActiveSince(t *testing.T) {
	repo := NewVehicleRepository()
	ctx := context.Background()
	since := testNow.Add(-time.Minute)

	addVehicle(t, repo, "fresh", entities.VehicleTypeBus, -1.95, 30.09, testNow)
	addVehicle(t, repo, "boundary", entities.VehicleTypeBus, -1.95, 30.09, since)
	addVehicle(t, repo, "stale", entities.VehicleTypeBus, -1.95, 30.09, testNow.Add(-time.Hour))

	anchor := entities.NewVehicle("anchor", "STATIC-1", entities.VehicleTypeBus, testNow)
	anchor.AlwaysVisible = true
	if err := repo.Create(ctx, anchor); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.UpdatePosition(ctx, "anchor", repository.PositionUpdate{Lat: -1.95, Lng: 30.09, At: testNow.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	box := geo.ComputeBoundingBox(-1.95, 30.09, 5)

	got, err := repo.FetchActiveSince(ctx, box, "", since, true)
	if err != nil {
		t.Fatal(err)
	}
	ids := idsOf(got)
	if len(ids) != 3 || !ids["fresh"] || !ids["boundary"] || !ids["anchor"] {
		t.Errorf("unexpected incremental set: %v", ids)
	}

	got, err = repo.FetchActiveSince(ctx, box, "", since, false)
	if err != nil {
		t.Fatal(err)
	}
	if ids := idsOf(got); ids["anchor"] {
		t.Error("anchor must be filtered when always-visible vehicles are not requested")
	}
}

func TestVehicleRepository_ReturnsCopies(t *testing.T) {
	repo := NewVehicleRepository()
	ctx := context.Background()
	addVehicle(t, repo, "v1", entities.VehicleTypeTaxi, -1.95, 30.09, testNow)

	v, err := repo.GetByID(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	v.Position.Latitude = 45

	again, _ := repo.GetByID(ctx, "v1")
	if again.Position.Latitude != -1.95 {
		t.Errorf("stored vehicle mutated through returned pointer: %v", again.Position.Latitude)
	}
}

func TestVehicleRepository_Errors(t *testing.T) {
	repo := NewVehicleRepository()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrVehicleNotFound) {
		t.Errorf("expected ErrVehicleNotFound, got %v", err)
	}
	if _, err := repo.UpdatePosition(ctx, "missing", repository.PositionUpdate{}); !errors.Is(err, repository.ErrVehicleNotFound) {
		t.Errorf("expected ErrVehicleNotFound, got %v", err)
	}

	v := entities.NewVehicle("dup", "R", entities.VehicleTypeBus, testNow)
	if err := repo.Create(ctx, v); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, v); !errors.Is(err, repository.ErrVehicleExists) {
		t.Errorf("expected ErrVehicleExists, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.FetchActive(cancelled, geo.BoundingBox{}, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestVehicleRepository_HeadingNormalized(t *testing.T) {
	repo := NewVehicleRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, entities.NewVehicle("v", "R", entities.VehicleTypeMoto, testNow)); err != nil {
		t.Fatal(err)
	}

	v, err := repo.UpdatePosition(ctx, "v", repository.PositionUpdate{Lat: 0, Lng: 0, Heading: 360, At: testNow})
	if err != nil {
		t.Fatal(err)
	}
	if v.Heading != 0 {
		t.Errorf("expected heading 360 to normalize to 0, got %v", v.Heading)
	}

	v, _ = repo.UpdatePosition(ctx, "v", repository.PositionUpdate{Lat: 0, Lng: 0, Heading: -90, At: testNow})
	if v.Heading != 270 {
		t.Errorf("expected heading -90 to normalize to 270, got %v", v.Heading)
	}

	count, _ := repo.CountActive(ctx)
	if count != 1 {
		t.Errorf("expected 1 active vehicle, got %d", count)
	}
}
