// Package cache keeps loaded warehouse snapshots alive between requests.
// A snapshot is expensive to build (every parquet file is re-read), so the
// cache guarantees that concurrent requests for the same snapshot share one
// load, and that a loaded snapshot is reused until its TTL lapses or the
// underlying files change.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cairnlabs/storelens/internal/validate"
	"github.com/cairnlabs/storelens/internal/warehouse"
)

// DefaultTTL applies when the config gives no TTL.
const DefaultTTL = 15 * time.Minute

// Key identifies one snapshot: the same directory loaded under a different
// store allowlist is a different snapshot.
type Key struct {
	DataDir string
	Cities  []string
}

// String canonicalizes the key; city order does not matter.
func (k Key) String() string {
	cities := make([]string, len(k.Cities))
	for i, c := range k.Cities {
		cities[i] = strings.ToLower(c)
	}
	sort.Strings(cities)
	return k.DataDir + "|" + strings.Join(cities, ",")
}

// Snapshot is one loaded, validated warehouse. Snapshots are immutable;
// the ID changes whenever the data is reloaded, so callers can detect
// epoch boundaries.
//
// A snapshot handed out by Get stays queryable until the caller calls
// Release, even when the cache replaces or invalidates it in the meantime:
// the underlying warehouse closes only once the cache has retired the
// snapshot and the last holder has released it.
type Snapshot struct {
	ID        uuid.UUID
	Warehouse *warehouse.Warehouse
	Report    *validate.Report
	LoadedAt  time.Time

	mu      sync.Mutex
	refs    int
	retired bool
}

// acquire registers one more holder.
func (s *Snapshot) acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

// Release returns the snapshot after use. Extra releases are no-ops.
func (s *Snapshot) Release() {
	s.mu.Lock()
	if s.refs > 0 {
		s.refs--
	}
	last := s.retired && s.refs == 0
	s.mu.Unlock()
	if last {
		s.closeWarehouse()
	}
}

// retire drops the cache's own hold. The warehouse closes immediately when
// no request holds the snapshot, otherwise on the final Release.
func (s *Snapshot) retire() {
	s.mu.Lock()
	s.retired = true
	idle := s.refs == 0
	s.mu.Unlock()
	if idle {
		s.closeWarehouse()
	}
}

func (s *Snapshot) closeWarehouse() {
	if s.Warehouse != nil {
		_ = s.Warehouse.Close()
	}
}

// LoadFunc builds a fresh snapshot for a key.
type LoadFunc func(ctx context.Context, key Key) (*Snapshot, error)

// Open is the production LoadFunc: load the warehouse, validate it, stamp
// an epoch ID.
func Open(logger *slog.Logger) LoadFunc {
	return func(ctx context.Context, key Key) (*Snapshot, error) {
		w, err := warehouse.Open(ctx, warehouse.Config{
			DataDir:     key.DataDir,
			StoreCities: key.Cities,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		report, err := validate.Run(ctx, w, logger)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		return &Snapshot{
			ID:        uuid.New(),
			Warehouse: w,
			Report:    report,
			LoadedAt:  w.LoadedAt(),
		}, nil
	}
}

type entry struct {
	snap    *Snapshot
	expires time.Time
}

// Cache is a read-through snapshot cache with single-flight loads.
type Cache struct {
	load   LoadFunc
	ttl    time.Duration
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*entry
}

// New builds a cache around load. TTL <= 0 falls back to DefaultTTL.
func New(load LoadFunc, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		load:    load,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Get returns the cached snapshot for key, loading it if absent or expired.
// Concurrent callers for the same key share a single load; every caller of
// that flight receives the same snapshot or the same error. The caller must
// Release the snapshot when its request is done.
func (c *Cache) Get(ctx context.Context, key Key) (*Snapshot, error) {
	ks := key.String()

	c.mu.Lock()
	if e, ok := c.entries[ks]; ok && time.Now().Before(e.expires) {
		snap := e.snap
		snap.acquire()
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(ks, func() (any, error) {
		// Re-check: a previous flight may have refreshed the entry while
		// this caller was queued on the mutex.
		c.mu.Lock()
		if e, ok := c.entries[ks]; ok && time.Now().Before(e.expires) {
			snap := e.snap
			c.mu.Unlock()
			return snap, nil
		}
		c.mu.Unlock()

		snap, err := c.load(ctx, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		old := c.entries[ks]
		c.entries[ks] = &entry{snap: snap, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()

		if old != nil {
			// Requests that already hold the replaced snapshot keep it
			// alive; it closes on their final Release.
			old.snap.retire()
		}
		c.logger.Info("snapshot cached", "key", ks, "epoch", snap.ID, "ttl", c.ttl)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("snapshot load shared", "key", ks)
	}
	snap := v.(*Snapshot)
	snap.acquire()
	return snap, nil
}

// Invalidate drops one key's snapshot. In-flight requests holding it keep
// it until they Release.
func (c *Cache) Invalidate(key Key) {
	ks := key.String()

	c.mu.Lock()
	e := c.entries[ks]
	delete(c.entries, ks)
	c.mu.Unlock()

	if e != nil {
		e.snap.retire()
		c.logger.Info("snapshot invalidated", "key", ks)
	}
}

// InvalidateAll drops every cached snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	for ks, e := range entries {
		e.snap.retire()
		c.logger.Info("snapshot invalidated", "key", ks)
	}
}

// Len returns how many snapshots are currently cached (expired included).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
