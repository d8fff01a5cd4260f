// Package gate implements the two-mode permission gate consulted before
// any unattended invocation: "ask" (default) requires an external
// approval decision, "autonomous" lets calls proceed directly. The
// active mode is persisted in the settings table so it survives process
// restarts; transitions are explicit administrative actions and never
// apply retroactively to in-flight calls.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"toolforge/internal/primitive"
)

// Mode selects the approval behavior.
type Mode string

const (
	// ModeAsk requires an external approval decision per invocation.
	ModeAsk Mode = "ask"

	// ModeAutonomous makes the gate a no-op.
	ModeAutonomous Mode = "autonomous"
)

const settingsKey = "permission_state"

// State is the persisted gate configuration.
type State struct {
	Mode Mode `json:"mode"`

	// ApprovalTimeoutMs bounds how long an ask-mode invocation waits
	// for a decision before being treated as declined.
	ApprovalTimeoutMs int `json:"approvalTimeoutMs"`
}

// DefaultState is the configuration used when nothing is persisted yet.
func DefaultState() State {
	return State{Mode: ModeAsk, ApprovalTimeoutMs: 60000}
}

// ApprovalRequest describes the invocation awaiting a decision.
type ApprovalRequest struct {
	PrimitiveID   string         `json:"primitiveId"`
	PrimitiveName string         `json:"primitiveName"`
	Input         map[string]any `json:"input"`
}

// ApprovalResponse is the external decision.
type ApprovalResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// ApprovalHandler obtains an approval decision from outside the
// runtime: an operator prompt, a chat surface, a queue. Implementations
// must honor the context deadline.
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// SettingsStore is the slice of the store the gate needs.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

// Gate is the process-wide permission state machine.
type Gate struct {
	mu      sync.RWMutex
	state   State
	store   SettingsStore
	handler ApprovalHandler
	log     *zap.Logger
}

// New loads the persisted permission state (defaulting to ask mode) and
// returns the gate. The handler may be nil; ask-mode invocations are
// then declined until one is set.
func New(store SettingsStore, handler ApprovalHandler, log *zap.Logger) (*Gate, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gate{
		state:   DefaultState(),
		store:   store,
		handler: handler,
		log:     log.Named("gate"),
	}

	raw, ok, err := store.GetSetting(settingsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission state: %w", err)
	}
	if ok {
		var st State
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("corrupt permission state: %w", err)
		}
		if st.Mode != ModeAutonomous {
			st.Mode = ModeAsk
		}
		if st.ApprovalTimeoutMs <= 0 {
			st.ApprovalTimeoutMs = DefaultState().ApprovalTimeoutMs
		}
		g.state = st
	}

	g.log.Debug("permission gate initialized", zap.String("mode", string(g.state.Mode)))
	return g, nil
}

// Mode returns the active mode. Read without blocking on approvals.
func (g *Gate) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Mode
}

// State returns a copy of the active configuration.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// SetHandler replaces the approval handler.
func (g *Gate) SetHandler(h ApprovalHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// EnableAutonomous switches to autonomous mode and persists it.
func (g *Gate) EnableAutonomous() error {
	st := g.State()
	st.Mode = ModeAutonomous
	return g.UpdateSettings(st)
}

// DisableAutonomous switches back to ask mode and persists it.
func (g *Gate) DisableAutonomous() error {
	st := g.State()
	st.Mode = ModeAsk
	return g.UpdateSettings(st)
}

// UpdateSettings persists a new state and makes it effective for all
// subsequent invocations. In-flight calls keep the decision they
// already received.
func (g *Gate) UpdateSettings(st State) error {
	if st.Mode != ModeAutonomous {
		st.Mode = ModeAsk
	}
	if st.ApprovalTimeoutMs <= 0 {
		st.ApprovalTimeoutMs = DefaultState().ApprovalTimeoutMs
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := g.store.SetSetting(settingsKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist permission state: %w", err)
	}

	g.mu.Lock()
	g.state = st
	g.mu.Unlock()

	g.log.Info("permission state updated", zap.String("mode", string(st.Mode)))
	return nil
}

// Authorize decides whether the invocation may proceed. In autonomous
// mode it returns nil immediately. In ask mode it consults the approval
// handler under the configured timeout; a declined, failed, or timed
// out approval returns primitive.ErrNotApproved and the invocation
// never reaches the runtime.
func (g *Gate) Authorize(ctx context.Context, req ApprovalRequest) error {
	g.mu.RLock()
	st := g.state
	handler := g.handler
	g.mu.RUnlock()

	if st.Mode == ModeAutonomous {
		return nil
	}

	if handler == nil {
		return fmt.Errorf("%w: no approval handler configured", primitive.ErrNotApproved)
	}

	timeout := time.Duration(st.ApprovalTimeoutMs) * time.Millisecond
	approvalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := handler.RequestApproval(approvalCtx, req)
	if err != nil {
		g.log.Warn("approval request failed",
			zap.String("primitive", req.PrimitiveName), zap.Error(err))
		return fmt.Errorf("%w: %v", primitive.ErrNotApproved, err)
	}
	if !resp.Approved {
		g.log.Info("approval declined",
			zap.String("primitive", req.PrimitiveName), zap.String("reason", resp.Reason))
		if resp.Reason != "" {
			return fmt.Errorf("%w: %s", primitive.ErrNotApproved, resp.Reason)
		}
		return primitive.ErrNotApproved
	}

	return nil
}
