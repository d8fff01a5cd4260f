package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toolforge/internal/primitive"
	"toolforge/internal/store"
	"toolforge/internal/validation"
)

// Registry owns the primitive lifecycle: validate, persist, then apply
// the cache update as a short lock-protected step. Errors never leave
// partial state behind because validation always precedes persistence.
type Registry struct {
	store     *store.Store
	validator *validation.Validator
	cache     *MountCache
	log       *zap.Logger

	// writeMu serializes read-modify-write mutations (update, delete,
	// mount toggles) so concurrent writers cannot interleave version
	// bumps. It is never held across cache reads.
	writeMu sync.Mutex

	subMu       sync.Mutex
	subscribers []func()
}

// Stats aggregates registry and execution counts.
type Stats struct {
	Total             int            `json:"total"`
	Mounted           int            `json:"mounted"`
	ByCategory        map[string]int `json:"byCategory"`
	ByTier            map[string]int `json:"byTier"`
	ExecutionsLast24h int            `json:"executionsLast24h"`
}

// New builds a registry on top of the given store and rebuilds the
// mount cache from every enabled primitive.
func New(st *store.Store, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		store:     st,
		validator: validation.New(),
		cache:     NewMountCache(),
		log:       log.Named("registry"),
	}
	if err := r.RebuildCache(); err != nil {
		return nil, err
	}
	return r, nil
}

// Cache exposes the mount cache to the runtime and adapter.
func (r *Registry) Cache() *MountCache {
	return r.cache
}

// Store exposes the persistence layer to collaborators that need
// execution history or scoped data access.
func (r *Registry) Store() *store.Store {
	return r.store
}

// Subscribe registers a callback invoked after every change to the set
// of mounted primitives. The adapter uses this to refresh its exposed
// tools without polling.
func (r *Registry) Subscribe(fn func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) notify() {
	r.subMu.Lock()
	subs := make([]func(), len(r.subscribers))
	copy(subs, r.subscribers)
	r.subMu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// RebuildCache reloads every enabled primitive from the store and
// swaps the cache wholesale. Called at startup.
func (r *Registry) RebuildCache() error {
	prims, err := r.store.List(store.ListFilter{EnabledOnly: true})
	if err != nil {
		return fmt.Errorf("failed to load enabled primitives: %w", err)
	}
	r.cache.Rebuild(prims)
	r.log.Debug("mount cache rebuilt", zap.Int("mounted", len(prims)))
	return nil
}

// Create validates and persists a new primitive, then auto-mounts it.
// The handler must pass the static validator; a duplicate name is a
// conflict. Returns the stored primitive.
func (r *Registry) Create(def primitive.Definition) (*primitive.Primitive, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, primitive.NewValidationError("empty name", "primitive name is required")
	}
	if strings.TrimSpace(def.Handler) == "" {
		return nil, primitive.NewValidationError("empty handler", "handler source is required")
	}

	if _, err := r.validator.Validate(def.Handler); err != nil {
		return nil, err
	}

	sandboxed := true
	if def.Sandboxed != nil {
		sandboxed = *def.Sandboxed
	}

	now := time.Now().UTC()
	p := &primitive.Primitive{
		ID:          uuid.NewString(),
		Name:        name,
		Description: def.Description,
		Category:    def.Category,
		Tags:        def.Tags,
		Icon:        def.Icon,
		InputSchema: def.InputSchema,
		Handler:     def.Handler,
		TimeoutMs:   primitive.ClampTimeout(def.TimeoutMs),
		Sandboxed:   sandboxed,
		Enabled:     true,
		BuiltIn:     false,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.store.InsertPrimitive(p); err != nil {
		return nil, err
	}

	r.cache.Put(p)
	r.notify()

	r.log.Info("primitive created",
		zap.String("id", p.ID), zap.String("name", p.Name), zap.String("category", p.Category))
	return p, nil
}

// Update applies a partial mutation. Built-ins are immutable; a changed
// handler is re-validated; the version increments on every successful
// update; a mounted primitive's cache entry is replaced atomically.
func (r *Registry) Update(id string, upd primitive.Update) (*primitive.Primitive, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p.BuiltIn {
		return nil, fmt.Errorf("%w: %s", primitive.ErrImmutable, p.Name)
	}

	if upd.Handler != nil && *upd.Handler != p.Handler {
		if _, err := r.validator.Validate(*upd.Handler); err != nil {
			return nil, err
		}
		p.Handler = *upd.Handler
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Tags != nil {
		p.Tags = *upd.Tags
	}
	if upd.Icon != nil {
		p.Icon = *upd.Icon
	}
	if upd.InputSchema != nil {
		p.InputSchema = *upd.InputSchema
	}
	if upd.TimeoutMs != nil {
		p.TimeoutMs = primitive.ClampTimeout(*upd.TimeoutMs)
	}
	if upd.Sandboxed != nil {
		p.Sandboxed = *upd.Sandboxed
	}

	p.Version++
	p.UpdatedAt = time.Now().UTC()

	if err := r.store.UpdatePrimitive(p); err != nil {
		return nil, err
	}

	if p.Enabled {
		r.cache.Put(p)
	}
	r.notify()

	r.log.Info("primitive updated",
		zap.String("id", p.ID), zap.String("name", p.Name), zap.Int("version", p.Version))
	return p, nil
}

// Delete removes a primitive and evicts its mount. Built-ins cannot be
// deleted; an unknown id is reported as not found.
func (r *Registry) Delete(id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.store.GetByID(id)
	if err != nil {
		return err
	}
	if p.BuiltIn {
		return fmt.Errorf("%w: %s", primitive.ErrImmutable, p.Name)
	}

	if err := r.store.DeletePrimitive(id); err != nil {
		return err
	}

	r.cache.Evict(id)
	r.notify()

	r.log.Info("primitive deleted", zap.String("id", id), zap.String("name", p.Name))
	return nil
}

// Get resolves a primitive by id or, failing that, by name.
func (r *Registry) Get(idOrName string) (*primitive.Primitive, error) {
	p, err := r.store.GetByID(idOrName)
	if err == nil {
		return p, nil
	}
	return r.store.GetByName(idOrName)
}

// List returns primitives matching the filter.
func (r *Registry) List(filter store.ListFilter) ([]*primitive.Primitive, error) {
	return r.store.List(filter)
}

// Search matches name, description, and tags by substring.
func (r *Registry) Search(query string) ([]*primitive.Primitive, error) {
	return r.store.Search(query)
}

// Mount enables a primitive and adds it to the cache. Idempotent:
// mounting a mounted primitive leaves exactly one entry.
func (r *Registry) Mount(id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.store.GetByID(id)
	if err != nil {
		return err
	}

	if !p.Enabled {
		if err := r.store.SetEnabled(id, true); err != nil {
			return err
		}
		p.Enabled = true
	}

	r.cache.Put(p)
	r.notify()

	r.log.Debug("primitive mounted", zap.String("id", id), zap.String("name", p.Name))
	return nil
}

// Dismount disables a primitive and evicts it from the cache. The
// persisted definition remains. Idempotent.
func (r *Registry) Dismount(id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.store.GetByID(id)
	if err != nil {
		return err
	}

	if p.Enabled {
		if err := r.store.SetEnabled(id, false); err != nil {
			return err
		}
	}

	r.cache.Evict(id)
	r.notify()

	r.log.Debug("primitive dismounted", zap.String("id", id), zap.String("name", p.Name))
	return nil
}

// Stats returns aggregate counts plus the rolling execution count for
// the last 24 hours.
func (r *Registry) Stats() (*Stats, error) {
	counts, err := r.store.CountPrimitives()
	if err != nil {
		return nil, err
	}
	last24h, err := r.store.CountExecutionsSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}

	return &Stats{
		Total:      counts.Total,
		Mounted:    r.cache.Count(),
		ByCategory: counts.ByCategory,
		ByTier: map[string]int{
			"built_in": counts.BuiltIn,
			"custom":   counts.Custom,
		},
		ExecutionsLast24h: last24h,
	}, nil
}
