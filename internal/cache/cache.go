// Package cache holds the latest known resource listings for one cluster
// context. Reads serve from an immutable snapshot and never touch the
// network; refreshes swap in a new snapshot wholesale, so readers never
// observe a half-updated structure.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/logging"
)

// ListFunc fetches the live entries for one (kind, parent) pair.
type ListFunc func(ctx context.Context, kind cluster.Kind, parent string) ([]cluster.Entry, error)

// Slice is one (kind, parent) listing inside a snapshot. Entries are
// ordered by name and must not be mutated by callers.
type Slice struct {
	Entries     []cluster.Entry
	RefreshedAt time.Time
	// Stale marks a slice whose last refresh attempt failed; the entries
	// are the previous successful listing, kept so partial cluster
	// unavailability does not erase known resources.
	Stale bool
}

// Age returns how long ago the slice was last successfully refreshed.
func (s Slice) Age() time.Duration {
	return time.Since(s.RefreshedAt)
}

type key struct {
	kind   cluster.Kind
	parent string
}

func (k key) String() string { return string(k.kind) + "|" + k.parent }

// snapshot is an immutable point-in-time view. Replaced wholesale on every
// refresh; never mutated in place.
type snapshot struct {
	slices     map[key]Slice
	generation uint64
}

// Cache is the per-context resource cache.
type Cache struct {
	list     ListFunc
	interval time.Duration
	log      *logging.Logger

	mu   sync.RWMutex
	snap *snapshot

	group singleflight.Group
}

// New creates a cache over the given fetcher. interval drives the
// background refresh loop started by Run.
func New(list ListFunc, interval time.Duration) *Cache {
	return &Cache{
		list:     list,
		interval: interval,
		log:      logging.Get().With("component", "cache"),
		snap:     &snapshot{slices: map[key]Slice{}},
	}
}

// Get returns the current slice for (kind, parent) without blocking on the
// network. ok is false when the pair has never been refreshed.
func (c *Cache) Get(kind cluster.Kind, parent string) (Slice, bool) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	slice, ok := snap.slices[key{kind, parent}]
	return slice, ok
}

// Generation returns the current snapshot generation; it advances on every
// swap.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.generation
}

// Refresh synchronously re-fetches one (kind, parent) pair and swaps the
// result into a new snapshot. Concurrent refreshes of the same pair are
// coalesced into a single network fetch; different pairs proceed
// independently. On failure the previous slice stays readable, marked
// stale.
func (c *Cache) Refresh(ctx context.Context, kind cluster.Kind, parent string) (Slice, error) {
	k := key{kind, parent}
	result, err, _ := c.group.Do(k.String(), func() (any, error) {
		entries, err := c.list(ctx, kind, parent)
		if err != nil {
			c.markStale(k)
			return nil, err
		}
		slice := Slice{Entries: entries, RefreshedAt: time.Now()}
		c.swap(k, slice)
		return slice, nil
	})
	if err != nil {
		prior, ok := c.Get(kind, parent)
		if ok {
			return prior, fmt.Errorf("refresh %s/%s: %w", kind, parent, err)
		}
		return Slice{}, fmt.Errorf("refresh %s/%s: %w", kind, parent, err)
	}
	return result.(Slice), nil
}

// Drop removes a (kind, parent) pair from tracking. Used when its parent
// disappears (e.g. a deleted pod's containers).
func (c *Cache) Drop(kind cluster.Kind, parent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key{kind, parent}
	if _, ok := c.snap.slices[k]; !ok {
		return
	}
	next := c.cloneLocked()
	delete(next.slices, k)
	c.snap = next
}

// Run drives the background refresh loop until ctx is cancelled. Every
// tracked pair is re-fetched each interval; tracking starts with a pair's
// first explicit Refresh.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, k := range c.trackedKeys() {
				if ctx.Err() != nil {
					return
				}
				if _, err := c.Refresh(ctx, k.kind, k.parent); err != nil {
					c.log.Warn("background refresh failed", "kind", k.kind, "parent", k.parent, "error", err)
				}
			}
		}
	}
}

func (c *Cache) trackedKeys() []key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]key, 0, len(c.snap.slices))
	for k := range c.snap.slices {
		keys = append(keys, k)
	}
	return keys
}

// cloneLocked copies the slice map for a copy-on-write swap. Slices
// themselves are immutable and shared.
func (c *Cache) cloneLocked() *snapshot {
	next := &snapshot{
		slices:     make(map[key]Slice, len(c.snap.slices)+1),
		generation: c.snap.generation + 1,
	}
	for k, v := range c.snap.slices {
		next.slices[k] = v
	}
	return next
}

func (c *Cache) swap(k key, slice Slice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cloneLocked()
	next.slices[k] = slice
	c.snap = next
}

func (c *Cache) markStale(k key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prior, ok := c.snap.slices[k]
	if !ok || prior.Stale {
		return
	}
	prior.Stale = true
	next := c.cloneLocked()
	next.slices[k] = prior
	c.snap = next
}
