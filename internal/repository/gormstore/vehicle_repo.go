package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
)

// VehicleRepository implements repository.VehicleRepository on a gorm DB.
type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *entities.Vehicle) error {
	err := r.db.WithContext(ctx).Create(fromEntity(vehicle)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrVehicleExists
	}
	if err != nil {
		return fmt.Errorf("create vehicle %s: %w", vehicle.ID, err)
	}
	return nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*entities.Vehicle, error) {
	var rec vehicleRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return rec.toEntity(), nil
}

// UpdatePosition writes position, heading, speed and updated_at in a single
// UPDATE statement and reads the row back inside the same transaction.
func (r *VehicleRepository) UpdatePosition(ctx context.Context, id string, update repository.PositionUpdate) (*entities.Vehicle, error) {
	var rec vehicleRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&vehicleRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"lat":        update.Lat,
				"lng":        update.Lng,
				"heading":    entities.NormalizeHeading(update.Heading),
				"speed":      update.Speed,
				"updated_at": update.At.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrVehicleNotFound
		}
		return tx.First(&rec, "id = ?", id).Error
	})
	if errors.Is(err, repository.ErrVehicleNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update position of %s: %w", id, err)
	}
	return rec.toEntity(), nil
}

func (r *VehicleRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&vehicleRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": at.UTC()})
	if res.Error != nil {
		return fmt.Errorf("set active on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrVehicleNotFound
	}
	return nil
}

func (r *VehicleRepository) ListActive(ctx context.Context) ([]*entities.Vehicle, error) {
	var records []vehicleRecord
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list active vehicles: %w", err)
	}
	return toEntities(records), nil
}

func (r *VehicleRepository) CountActive(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&vehicleRecord{}).Where("active = ?", true).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count active vehicles: %w", err)
	}
	return int(n), nil
}

// FindByRouteName returns (nil, nil) when no vehicle matches.
func (r *VehicleRepository) FindByRouteName(ctx context.Context, vehicleType entities.VehicleType, routeName string) (*entities.Vehicle, error) {
	var records []vehicleRecord
	err := r.db.WithContext(ctx).
		Where("type = ? AND route_name = ?", string(vehicleType), routeName).
		Order("id").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find %s on route %q: %w", vehicleType, routeName, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0].toEntity(), nil
}

func (r *VehicleRepository) FetchActive(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType) ([]*entities.Vehicle, error) {
	var records []vehicleRecord
	if err := r.candidates(ctx, bbox, vehicleType).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("fetch active vehicles: %w", err)
	}
	return toEntities(records), nil
}

func (r *VehicleRepository) FetchActiveSince(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType, since time.Time, includeAlwaysVisible bool) ([]*entities.Vehicle, error) {
	q := r.candidates(ctx, bbox, vehicleType)
	if includeAlwaysVisible {
		q = q.Where("(updated_at >= ? OR always_visible = ?)", since.UTC(), true)
	} else {
		q = q.Where("updated_at >= ?", since.UTC())
	}

	var records []vehicleRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("fetch active vehicles since %s: %w", since.Format(time.RFC3339), err)
	}
	return toEntities(records), nil
}

// candidates scopes a query to active, positioned vehicles inside bbox. The
// box predicates hit idx_vehicles_lat_lng.
func (r *VehicleRepository) candidates(ctx context.Context, bbox geo.BoundingBox, vehicleType entities.VehicleType) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&vehicleRecord{}).
		Where("active = ?", true).
		Where("lat IS NOT NULL AND lng IS NOT NULL").
		Where("lat BETWEEN ? AND ?", bbox.MinLat, bbox.MaxLat).
		Where("lng BETWEEN ? AND ?", bbox.MinLng, bbox.MaxLng)
	if vehicleType != "" {
		q = q.Where("type = ?", string(vehicleType))
	}
	return q
}
