package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
)

// StopRepository implements repository.StopRepository on a gorm DB.
type StopRepository struct {
	db *gorm.DB
}

func NewStopRepository(db *gorm.DB) *StopRepository {
	return &StopRepository{db: db}
}

// AddStops inserts with ON CONFLICT (code) DO NOTHING, so rows already
// present are skipped and not counted.
func (r *StopRepository) AddStops(ctx context.Context, stops []*entities.Stop) (int, error) {
	if len(stops) == 0 {
		return 0, nil
	}
	records := make([]stopRecord, 0, len(stops))
	for _, s := range stops {
		records = append(records, stopFromEntity(s))
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&records)
	if res.Error != nil {
		return 0, fmt.Errorf("add stops: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *StopRepository) CountStops(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&stopRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count stops: %w", err)
	}
	return int(n), nil
}

// FetchStops uses idx_stops_lat_lng for the box and matches combined stops
// for every type filter.
func (r *StopRepository) FetchStops(ctx context.Context, bbox geo.BoundingBox, stopType entities.StopType) ([]*entities.Stop, error) {
	q := r.db.WithContext(ctx).
		Model(&stopRecord{}).
		Where("active = ?", true).
		Where("lat BETWEEN ? AND ?", bbox.MinLat, bbox.MaxLat).
		Where("lng BETWEEN ? AND ?", bbox.MinLng, bbox.MaxLng)
	if stopType != "" {
		q = q.Where("type IN ?", []string{string(stopType), string(entities.StopTypeCombined)})
	}

	var records []stopRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("fetch stops: %w", err)
	}
	out := make([]*entities.Stop, 0, len(records))
	for i := range records {
		out = append(out, records[i].toEntity())
	}
	return out, nil
}
