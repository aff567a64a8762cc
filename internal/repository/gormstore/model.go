package gormstore

import (
	"time"

	"kigaligo/internal/domain/entities"
)

// vehicleRecord is the table row for a vehicle. Lat and Lng are NULL until
// the first position report. Timestamps are owned by the domain, so gorm's
// automatic create/update stamping is turned off.
type vehicleRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Registration  string    `gorm:"size:32;index:idx_vehicles_registration"`
	Type          string    `gorm:"size:16;not null;index:idx_vehicles_active_type,priority:2;index:idx_vehicles_type_route,priority:1"`
	RouteName     string    `gorm:"size:127;index:idx_vehicles_type_route,priority:2"`
	Lat           *float64  `gorm:"index:idx_vehicles_lat_lng,priority:1"`
	Lng           *float64  `gorm:"index:idx_vehicles_lat_lng,priority:2"`
	Heading       float64   `gorm:"not null;default:0"`
	Speed         float64   `gorm:"not null;default:0"`
	Active        bool      `gorm:"not null;index:idx_vehicles_active_type,priority:1"`
	AlwaysVisible bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false;index:idx_vehicles_updated_at"`
}

func (vehicleRecord) TableName() string {
	return "vehicles"
}

func fromEntity(v *entities.Vehicle) *vehicleRecord {
	rec := &vehicleRecord{
		ID:            v.ID,
		Registration:  v.Registration,
		Type:          string(v.Type),
		RouteName:     v.RouteName,
		Heading:       v.Heading,
		Speed:         v.Speed,
		Active:        v.Active,
		AlwaysVisible: v.AlwaysVisible,
		CreatedAt:     v.CreatedAt.UTC(),
		UpdatedAt:     v.UpdatedAt.UTC(),
	}
	if v.Position != nil {
		lat, lng := v.Position.Latitude, v.Position.Longitude
		rec.Lat = &lat
		rec.Lng = &lng
	}
	return rec
}

func (r *vehicleRecord) toEntity() *entities.Vehicle {
	v := &entities.Vehicle{
		ID:            r.ID,
		Registration:  r.Registration,
		Type:          entities.VehicleType(r.Type),
		RouteName:     r.RouteName,
		Heading:       r.Heading,
		Speed:         r.Speed,
		Active:        r.Active,
		AlwaysVisible: r.AlwaysVisible,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.Lat != nil && r.Lng != nil {
		loc := entities.NewLocation(*r.Lat, *r.Lng)
		v.Position = &loc
	}
	return v
}

func toEntities(records []vehicleRecord) []*entities.Vehicle {
	out := make([]*entities.Vehicle, 0, len(records))
	for i := range records {
		out = append(out, records[i].toEntity())
	}
	return out
}

// stopRecord is the table row for a stop. Code carries the unique index that
// makes stop seeding idempotent.
type stopRecord struct {
	ID     string  `gorm:"primaryKey;size:36"`
	Code   string  `gorm:"size:16;not null;uniqueIndex:idx_stops_code"`
	Name   string  `gorm:"size:127;not null"`
	Type   string  `gorm:"size:16;not null;index:idx_stops_active_type,priority:2"`
	Zone   string  `gorm:"size:63"`
	Lat    float64 `gorm:"not null;index:idx_stops_lat_lng,priority:1"`
	Lng    float64 `gorm:"not null;index:idx_stops_lat_lng,priority:2"`
	Active bool    `gorm:"not null;index:idx_stops_active_type,priority:1"`
}

func (stopRecord) TableName() string {
	return "stops"
}

func stopFromEntity(s *entities.Stop) stopRecord {
	return stopRecord{
		ID:     s.ID,
		Code:   s.Code,
		Name:   s.Name,
		Type:   string(s.Type),
		Zone:   s.Zone,
		Lat:    s.Location.Latitude,
		Lng:    s.Location.Longitude,
		Active: s.Active,
	}
}

func (r *stopRecord) toEntity() *entities.Stop {
	return &entities.Stop{
		ID:       r.ID,
		Code:     r.Code,
		Name:     r.Name,
		Type:     entities.StopType(r.Type),
		Zone:     r.Zone,
		Location: entities.NewLocation(r.Lat, r.Lng),
		Active:   r.Active,
	}
}
