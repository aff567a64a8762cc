// Package utils holds small helpers shared by the services: ETA estimation
// and vehicle id generation.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is intended to be importable by external projects (unlike
// internal/ which is compiler-enforced private). It is a community
// convention, not a language feature.
package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new vehicle id. Ids are UUIDv7, so they sort by
// creation time and keep the store's primary-key index append-mostly. If the
// v7 generator fails, a random v4 id is returned instead.
//
// Go Learning Note — "github.com/google/uuid":
// uuid.NewV7 embeds a millisecond timestamp in the high bits; uuid.New is
// fully random. Both are RFC 9562 UUIDs and render as 36-char strings.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
