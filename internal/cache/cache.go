// Package cache holds the short-lived result cache that absorbs duplicate
// polling of the realtime vehicle endpoint.
//
// The cache is advisory: a miss or a backend failure only costs a recomputation,
// so implementations never need cross-key locking and last-writer-wins is fine.
package cache

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrClosed is returned by a cache that has been stopped.
var ErrClosed = errors.New("cache closed")

// ResultCache stores serialized query results under a normalized key.
//
// Get returns (nil, false, nil) on a miss; an error means the backend itself
// failed and the caller should fall back to computing the result.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeyParams are the query parameters that identify a cacheable result.
// Single-use cache-busting parameters are deliberately absent.
type KeyParams struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	Type     string
	AutoSeed bool
}

// CoordinatePrecision is the number of decimals coordinates are rounded to
// before keying (4 decimals ≈ 11 m).
const CoordinatePrecision = 4

// BuildKey returns a deterministic key: the parameters are normalized,
// sorted by name and joined as name=value pairs.
func BuildKey(prefix string, p KeyParams) string {
	fields := map[string]string{
		"lat":       strconv.FormatFloat(p.Lat, 'f', CoordinatePrecision, 64),
		"lng":       strconv.FormatFloat(p.Lng, 'f', CoordinatePrecision, 64),
		"radius":    strconv.FormatFloat(p.RadiusKm, 'f', 2, 64),
		"type":      strings.ToLower(p.Type),
		"auto_seed": strconv.FormatBool(p.AutoSeed),
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(prefix)
	for i, name := range names {
		if i > 0 || prefix != "" {
			b.WriteByte('|')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(fields[name])
	}
	return b.String()
}
