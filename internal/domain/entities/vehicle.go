// Package entities defines the core domain models for the vehicle tracking
// system. These structs represent the business concepts (Vehicle, Location)
// and live in the innermost layer of the architecture; they have no
// dependencies on databases, HTTP, or external services.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level. This is how Go provides encapsulation
// at the package level; it prevents external code from depending on your
// internal implementation details.
package entities

import (
	"math"
	"time"
)

// VehicleType is a typed string enum for the kinds of vehicles we track.
//
// Go Learning Note — Type Aliases for Enums:
// Go doesn't have a native enum keyword. The idiomatic pattern is to define a
// named type (usually based on string or int) and then declare constants of that
// type. String-based enums are preferred when the value will be serialized to
// JSON or stored in a database, because they're human-readable.
type VehicleType string

const (
	VehicleTypeBus  VehicleType = "bus"
	VehicleTypeTaxi VehicleType = "taxi"
	VehicleTypeMoto VehicleType = "moto"
)

// VehicleTypes lists every known vehicle type in a stable order.
var VehicleTypes = []VehicleType{VehicleTypeBus, VehicleTypeTaxi, VehicleTypeMoto}

// ParseVehicleType maps a raw string onto a VehicleType. The empty string is
// not a valid type; callers that treat "no filter" specially must check for it
// before calling.
func ParseVehicleType(s string) (VehicleType, bool) {
	for _, t := range VehicleTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Vehicle is a tracked bus, taxi or moto. Position is nil until the vehicle
// reports for the first time.
//
// AlwaysVisible marks anchor vehicles that must be part of every incremental
// result regardless of the client's cursor.
type Vehicle struct {
	ID            string      `json:"id"`
	Registration  string      `json:"registration"`
	Type          VehicleType `json:"type"`
	RouteName     string      `json:"route_name,omitempty"`
	Position      *Location   `json:"position,omitempty"`
	Heading       float64     `json:"heading"`
	Speed         float64     `json:"speed"`
	Active        bool        `json:"active"`
	AlwaysVisible bool        `json:"always_visible"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewVehicle creates an active Vehicle with no position.
func NewVehicle(id, registration string, vehicleType VehicleType, now time.Time) *Vehicle {
	return &Vehicle{
		ID:           id,
		Registration: registration,
		Type:         vehicleType,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasPosition reports whether the vehicle has reported a location yet.
func (v *Vehicle) HasPosition() bool {
	return v.Position != nil
}

// MoveTo sets position, heading and speed together and stamps UpdatedAt.
// Heading is normalized into [0, 360).
func (v *Vehicle) MoveTo(lat, lng, heading, speed float64, at time.Time) {
	v.Position = &Location{Latitude: lat, Longitude: lng}
	v.Heading = NormalizeHeading(heading)
	v.Speed = speed
	v.UpdatedAt = at
}

// Deactivate soft-deletes the vehicle. Vehicles are never hard-deleted.
func (v *Vehicle) Deactivate(at time.Time) {
	v.Active = false
	v.UpdatedAt = at
}

// Clone returns a deep copy, so callers outside the store cannot mutate the
// stored record through a shared Position pointer.
func (v *Vehicle) Clone() *Vehicle {
	c := *v
	if v.Position != nil {
		p := *v.Position
		c.Position = &p
	}
	return &c
}

// NormalizeHeading wraps any heading in degrees into [0, 360). NaN and
// infinities collapse to 0.
func NormalizeHeading(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0
	}
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}
