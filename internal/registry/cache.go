// Package registry implements the persistent primitive registry and the
// process-wide mount cache. The cache is the only significant shared
// mutable state in the runtime: every mutation funnels through a single
// synchronized replace-or-evict path so concurrent readers never
// observe a half-updated entry, and store I/O never happens under the
// cache lock.
package registry

import (
	"sync"
	"time"

	"toolforge/internal/primitive"
)

// MountedTool is the runtime-visible wrapper around an enabled
// primitive. Invocation counters are advisory, in-memory statistics;
// under high concurrency they may diverge slightly from the persisted
// execution record count, which is acceptable eventual consistency.
type MountedTool struct {
	Primitive       *primitive.Primitive
	MountedAt       time.Time
	InvocationCount int64
	LastInvoked     *time.Time
}

// MountCache is the in-process index of currently enabled primitives,
// keyed by primitive id. It is rebuilt from the store at startup and on
// demand; it is never persisted itself.
type MountCache struct {
	mu    sync.RWMutex
	tools map[string]*MountedTool
}

// NewMountCache returns an empty mount cache.
func NewMountCache() *MountCache {
	return &MountCache{tools: make(map[string]*MountedTool)}
}

// Rebuild replaces the whole cache with fresh entries for the given
// primitives. Existing counters are discarded; a rebuild is a process
// (re)start from the cache's point of view.
func (c *MountCache) Rebuild(prims []*primitive.Primitive) {
	now := time.Now()
	tools := make(map[string]*MountedTool, len(prims))
	for _, p := range prims {
		tools[p.ID] = &MountedTool{Primitive: p, MountedAt: now}
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
}

// Put mounts or replaces a primitive's entry. Replacing an existing
// entry keeps its mount time and invocation counters; the entry is the
// same mount with a newer definition. Idempotent.
func (c *MountCache) Put(p *primitive.Primitive) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.tools[p.ID]; ok {
		c.tools[p.ID] = &MountedTool{
			Primitive:       p,
			MountedAt:       existing.MountedAt,
			InvocationCount: existing.InvocationCount,
			LastInvoked:     existing.LastInvoked,
		}
		return
	}
	c.tools[p.ID] = &MountedTool{Primitive: p, MountedAt: time.Now()}
}

// Evict removes a primitive's entry. Idempotent.
func (c *MountCache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tools, id)
}

// Get returns a snapshot of the entry for the given id.
func (c *MountCache) Get(id string) (MountedTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tools[id]
	if !ok {
		return MountedTool{}, false
	}
	return *t, true
}

// GetByName returns a snapshot of the entry whose primitive has the
// given name.
func (c *MountCache) GetByName(name string) (MountedTool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tools {
		if t.Primitive.Name == name {
			return *t, true
		}
	}
	return MountedTool{}, false
}

// All returns snapshots of every mounted entry.
func (c *MountCache) All() []MountedTool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]MountedTool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, *t)
	}
	return out
}

// Count returns the number of mounted entries.
func (c *MountCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// RecordInvocation bumps the advisory counters for a mounted entry.
// A miss is ignored; the primitive may have been dismounted while the
// invocation was in flight.
func (c *MountCache) RecordInvocation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tools[id]
	if !ok {
		return
	}
	now := time.Now()
	t.InvocationCount++
	t.LastInvoked = &now
}

// Clear empties the cache. Used at shutdown.
func (c *MountCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = make(map[string]*MountedTool)
}
