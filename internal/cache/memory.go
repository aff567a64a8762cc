package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kigaligo/internal/timeutil"
)

// entry is a cached value with an absolute expiry.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process ResultCache with per-key TTLs. Expired entries
// are invisible to Get immediately and are swept by a background goroutine.
//
// Go Learning Note — sync.Map:
// sync.Map is tuned for keys that are written once and read many times by
// many goroutines, which is exactly the polling pattern here. Reads never
// take a lock, so a burst of identical polls does not block the writer that
// refreshes the entry.
type MemoryCache struct {
	entries sync.Map // key → *entry
	clock   timeutil.Clock
	size    atomic.Int64
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a MemoryCache and starts the sweeper. A
// non-positive sweepInterval disables background sweeping.
func NewMemoryCache(clock timeutil.Clock, sweepInterval time.Duration) *MemoryCache {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	c := &MemoryCache{
		clock: clock,
		stop:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepExpired(sweepInterval)
	}
	return c
}

// Get returns the value for key if present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.closed() {
		return nil, false, ErrClosed
	}
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(*entry)
	if !c.clock.Now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl deletes the key.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed() {
		return ErrClosed
	}
	if ttl <= 0 {
		if _, loaded := c.entries.LoadAndDelete(key); loaded {
			c.size.Add(-1)
		}
		return nil
	}
	e := &entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
	if _, loaded := c.entries.Swap(key, e); !loaded {
		c.size.Add(1)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until the
// next sweep.
func (c *MemoryCache) Len() int {
	return int(c.size.Load())
}

// Sweep removes every expired entry.
//
// Go Learning Note — Safe Map Deletion During Iteration:
// sync.Map.Range tolerates concurrent Delete calls, including from inside the
// callback, so the sweep never needs to stop readers.
func (c *MemoryCache) Sweep() {
	now := c.clock.Now()
	c.entries.Range(func(k, v any) bool {
		if !now.Before(v.(*entry).expiresAt) {
			if c.entries.CompareAndDelete(k, v) {
				c.size.Add(-1)
			}
		}
		return true
	})
}

// sweepExpired runs in a background goroutine until Stop is called.
func (c *MemoryCache) sweepExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

// Stop signals the sweeper to exit. Further Get/Set calls return ErrClosed.
func (c *MemoryCache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) closed() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}
