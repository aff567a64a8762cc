package utils

import (
	"math"
)

// DefaultSpeedKmH is the average speed assumed for vehicle types missing
// from the speed table.
const DefaultSpeedKmH = 35.0

// DefaultSpeeds holds average urban speeds per vehicle type in km/h.
var DefaultSpeeds = map[string]float64{
	"bus":  30,
	"taxi": 40,
	"moto": 50,
}

// ETAEstimator turns a straight-line distance into an arrival estimate using
// per-mode average speeds.
type ETAEstimator struct {
	speeds        map[string]float64
	defaultSpeed  float64
	trafficFactor float64
}

// NewETAEstimator creates an estimator. A nil speed table falls back to
// DefaultSpeeds; a non-positive default speed falls back to DefaultSpeedKmH.
// trafficFactor scales every speed and must be > 0; values ≤ 0 are replaced
// with 1.0.
func NewETAEstimator(speeds map[string]float64, defaultSpeed, trafficFactor float64) *ETAEstimator {
	table := make(map[string]float64, len(DefaultSpeeds))
	for k, v := range DefaultSpeeds {
		table[k] = v
	}
	for k, v := range speeds {
		if v > 0 {
			table[k] = v
		}
	}
	if defaultSpeed <= 0 {
		defaultSpeed = DefaultSpeedKmH
	}
	if trafficFactor <= 0 {
		trafficFactor = 1.0
	}
	return &ETAEstimator{
		speeds:        table,
		defaultSpeed:  defaultSpeed,
		trafficFactor: trafficFactor,
	}
}

// BaseSpeed returns the table speed for a vehicle type.
func (e *ETAEstimator) BaseSpeed(vehicleType string) float64 {
	if s, ok := e.speeds[vehicleType]; ok {
		return s
	}
	return e.defaultSpeed
}

// Minutes estimates the ETA for a vehicle of the given type using the
// estimator's configured traffic factor.
func (e *ETAEstimator) Minutes(distanceKm float64, vehicleType string) float64 {
	return e.MinutesWithTraffic(distanceKm, vehicleType, e.trafficFactor)
}

// MinutesWithTraffic estimates the ETA with an explicit traffic factor.
// The factor must be > 0; the result for other values is undefined.
func (e *ETAEstimator) MinutesWithTraffic(distanceKm float64, vehicleType string, trafficFactor float64) float64 {
	adjusted := e.BaseSpeed(vehicleType) * trafficFactor
	return roundTo(distanceKm/adjusted*60, 1)
}

var defaultEstimator = NewETAEstimator(nil, 0, 1)

// EstimateETA estimates travel time in minutes with the default speed table.
// Bus at 10 km → 20.0 minutes.
func EstimateETA(distanceKm float64, vehicleType string, trafficFactor float64) float64 {
	return defaultEstimator.MinutesWithTraffic(distanceKm, vehicleType, trafficFactor)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
