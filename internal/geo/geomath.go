// Package geo implements the coordinate math behind proximity queries:
// validation, a cheap bounding-box pre-filter and great-circle distance.
//
// Strategy: Coarse filter → Fine filter
//  1. Coarse: ComputeBoundingBox turns (point, radius) into a lat/lng
//     rectangle that a store can answer with plain range predicates.
//  2. Fine: HaversineKm gives the exact great-circle distance, which is the
//     only authoritative radius test. The box over-approximates the circle
//     near its corners, so it must never be used alone.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by HaversineKm.
	EarthRadiusKm = 6371.0

	// KmPerDegreeLat approximates the length of one degree of latitude.
	KmPerDegreeLat = 111.0

	// maxBoxLatitude caps the latitude used for the longitude delta; cos(lat)
	// goes to zero at the poles and the delta would diverge.
	maxBoxLatitude = 89.0
)

// ValidationError reports a rejected input value. It is returned for
// out-of-range coordinates here and reused by the query layer for bad vehicle
// types and cursors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateCoordinates fails unless -90 ≤ lat ≤ 90 and -180 ≤ lng ≤ 180.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewValidationError("lat", "latitude must be between -90 and 90, got %v", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return NewValidationError("lng", "longitude must be between -180 and 180, got %v", lng)
	}
	return nil
}

// HaversineKm calculates the great-circle distance between two points in
// kilometers. It is symmetric, non-negative and zero for identical points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := radians(lat1)
	lat2Rad := radians(lat2)
	deltaLat := radians(lat2 - lat1)
	deltaLng := radians(lng2 - lng1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	// Float rounding can leave a slightly outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox is an axis-aligned lat/lng rectangle, inclusive on all edges.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// ComputeBoundingBox returns the rectangle that encloses a circle of
// radiusKm around (lat, lng), using 111 km per degree of latitude and
// 111·cos(lat) km per degree of longitude. The result is clamped to the valid
// coordinate range; it does not wrap across the antimeridian. When the circle
// reaches a pole every longitude is inside it, so the box spans -180..180.
func ComputeBoundingBox(lat, lng, radiusKm float64) BoundingBox {
	if radiusKm < 0 {
		radiusKm = 0
	}

	latDelta := radiusKm / KmPerDegreeLat

	cosLat := math.Cos(radians(math.Min(math.Abs(lat), maxBoxLatitude)))
	lngDelta := radiusKm / (KmPerDegreeLat * cosLat)

	box := BoundingBox{
		MinLat: math.Max(-90, lat-latDelta),
		MaxLat: math.Min(90, lat+latDelta),
		MinLng: math.Max(-180, lng-lngDelta),
		MaxLng: math.Min(180, lng+lngDelta),
	}
	if lat+latDelta >= 90 || lat-latDelta <= -90 {
		box.MinLng, box.MaxLng = -180, 180
	}
	return box
}

// Contains reports whether the point lies inside the box (edges included).
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lng >= b.MinLng && lng <= b.MaxLng
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
