package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"toolforge/internal/gate"
	"toolforge/internal/primitive"
	"toolforge/internal/registry"
	"toolforge/internal/sandbox"
	"toolforge/internal/schema"
)

// Adapter is the agent-facing view of the tool runtime.
type Adapter struct {
	reg     *registry.Registry
	runtime *sandbox.Runtime
	gate    *gate.Gate
	log     *zap.Logger

	mu    sync.RWMutex
	tools map[string]*Tool
}

// New builds the adapter, advertises the current tool set, and
// subscribes to registry changes so the set stays current.
func New(reg *registry.Registry, rt *sandbox.Runtime, g *gate.Gate, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Adapter{
		reg:     reg,
		runtime: rt,
		gate:    g,
		log:     log.Named("adapter"),
		tools:   make(map[string]*Tool),
	}
	a.Refresh()
	reg.Subscribe(a.Refresh)
	return a
}

// Refresh rebuilds the advertised tool set from the fixed management
// operations plus every mounted primitive. Safe to call concurrently;
// the map is swapped wholesale.
func (a *Adapter) Refresh() {
	tools := make(map[string]*Tool)

	for _, t := range a.managementTools() {
		tools[t.Name] = t
	}

	for _, mounted := range a.reg.Cache().All() {
		p := mounted.Primitive
		if _, taken := tools[p.Name]; taken {
			a.log.Warn("mounted primitive shadows a management tool; skipping",
				zap.String("name", p.Name))
			continue
		}
		tools[p.Name] = a.primitiveTool(p)
	}

	a.mu.Lock()
	a.tools = tools
	a.mu.Unlock()

	a.log.Debug("tool set refreshed", zap.Int("tools", len(tools)))
}

// Tools returns the advertised set, sorted by name.
func (a *Adapter) Tools() []*Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*Tool, 0, len(a.tools))
	for _, t := range a.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the named tool, if advertised.
func (a *Adapter) Get(name string) (*Tool, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tools[name]
	return t, ok
}

// Invoke validates arguments against the advertised schema and
// dispatches the call.
func (a *Adapter) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := a.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: no tool named %s", primitive.ErrNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := t.validateArgs(args); err != nil {
		return nil, err
	}
	return t.Execute(ctx, args)
}

// primitiveTool wraps a mounted primitive as a callable tool. The
// execution path is gate first, runtime second: a declined approval
// short-circuits before the runtime and leaves no execution record.
func (a *Adapter) primitiveTool(p *primitive.Primitive) *Tool {
	doc := schema.JSONSchema(p.InputSchema)
	compiled, err := schema.Compile(p.InputSchema)
	if err != nil {
		// The schema was accepted at create time; a compile failure
		// here means it predates stricter checks. Advertise without
		// boundary validation and let the runtime's coercion decide.
		a.log.Warn("failed to compile input schema",
			zap.String("primitive", p.Name), zap.Error(err))
		compiled = nil
	}

	name := p.Name
	id := p.ID
	return &Tool{
		Name:        name,
		Description: p.Description,
		Schema:      doc,
		compiled:    compiled,
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			if err := a.gate.Authorize(ctx, gate.ApprovalRequest{
				PrimitiveID:   id,
				PrimitiveName: name,
				Input:         args,
			}); err != nil {
				return nil, err
			}
			return a.runtime.ExecuteByName(ctx, name, args)
		},
	}
}
