package services

import (
	"errors"

	"kigaligo/internal/geo"
)

var (
	// ErrStoreUnavailable wraps any failure or timeout of the vehicle store.
	ErrStoreUnavailable = errors.New("vehicle store unavailable")
	// ErrSeedFailed wraps a failed empty-area seed fallback.
	ErrSeedFailed = errors.New("seed fallback failed")
)

// Machine-readable error kinds returned to API clients.
const (
	KindValidation       = "validation_error"
	KindStoreUnavailable = "store_unavailable"
	KindInternal         = "internal_error"
)

// ErrorKind classifies err for the HTTP boundary.
func ErrorKind(err error) string {
	var verr *geo.ValidationError
	switch {
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}
