package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolforge/internal/primitive"
)

// memSettings is an in-memory SettingsStore for gate tests.
type memSettings struct {
	values map[string]string
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]string)}
}

func (m *memSettings) GetSetting(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) SetSetting(key, value string) error {
	m.values[key] = value
	return nil
}

func testRequest() ApprovalRequest {
	return ApprovalRequest{
		PrimitiveID:   "id-1",
		PrimitiveName: "echo",
		Input:         map[string]any{"message": "hi"},
	}
}

func TestNewDefaultsToAskMode(t *testing.T) {
	g, err := New(newMemSettings(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAsk, g.Mode())
	assert.Equal(t, 60000, g.State().ApprovalTimeoutMs)
}

func TestAskModeWithoutHandlerDeclines(t *testing.T) {
	g, err := New(newMemSettings(), nil, nil)
	require.NoError(t, err)

	err = g.Authorize(context.Background(), testRequest())
	assert.ErrorIs(t, err, primitive.ErrNotApproved)
}

func TestAskModeApproved(t *testing.T) {
	g, err := New(newMemSettings(), AutoApproveHandler{}, nil)
	require.NoError(t, err)

	assert.NoError(t, g.Authorize(context.Background(), testRequest()))
}

func TestAskModeDeclined(t *testing.T) {
	g, err := New(newMemSettings(), DenyHandler{Reason: "not today"}, nil)
	require.NoError(t, err)

	err = g.Authorize(context.Background(), testRequest())
	require.ErrorIs(t, err, primitive.ErrNotApproved)
	assert.Contains(t, err.Error(), "not today")
}

func TestAskModeHandlerError(t *testing.T) {
	handler := FuncHandler(func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
		return ApprovalResponse{}, errors.New("channel closed")
	})
	g, err := New(newMemSettings(), handler, nil)
	require.NoError(t, err)

	err = g.Authorize(context.Background(), testRequest())
	assert.ErrorIs(t, err, primitive.ErrNotApproved)
}

func TestAskModeApprovalTimeout(t *testing.T) {
	handler := FuncHandler(func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
		select {
		case <-ctx.Done():
			return ApprovalResponse{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return ApprovalResponse{Approved: true}, nil
		}
	})
	g, err := New(newMemSettings(), handler, nil)
	require.NoError(t, err)
	require.NoError(t, g.UpdateSettings(State{Mode: ModeAsk, ApprovalTimeoutMs: 50}))

	start := time.Now()
	err = g.Authorize(context.Background(), testRequest())
	assert.ErrorIs(t, err, primitive.ErrNotApproved)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout not enforced")
}

func TestAutonomousModeSkipsHandler(t *testing.T) {
	called := false
	handler := FuncHandler(func(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error) {
		called = true
		return ApprovalResponse{}, nil
	})
	g, err := New(newMemSettings(), handler, nil)
	require.NoError(t, err)
	require.NoError(t, g.EnableAutonomous())

	assert.NoError(t, g.Authorize(context.Background(), testRequest()))
	assert.False(t, called, "handler consulted in autonomous mode")
}

func TestModePersistsAcrossRestarts(t *testing.T) {
	settings := newMemSettings()

	g, err := New(settings, nil, nil)
	require.NoError(t, err)
	require.NoError(t, g.EnableAutonomous())

	// A fresh gate on the same settings store sees the persisted mode.
	g2, err := New(settings, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAutonomous, g2.Mode())

	require.NoError(t, g2.DisableAutonomous())
	g3, err := New(settings, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAsk, g3.Mode())
}

func TestNewRejectsCorruptState(t *testing.T) {
	settings := newMemSettings()
	settings.values["permission_state"] = "{not json"

	_, err := New(settings, nil, nil)
	assert.Error(t, err)
}

func TestUpdateSettingsNormalizes(t *testing.T) {
	g, err := New(newMemSettings(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, g.UpdateSettings(State{Mode: "sideways", ApprovalTimeoutMs: -5}))
	st := g.State()
	assert.Equal(t, ModeAsk, st.Mode)
	assert.Equal(t, DefaultState().ApprovalTimeoutMs, st.ApprovalTimeoutMs)
}

func TestSetHandlerTakesEffect(t *testing.T) {
	g, err := New(newMemSettings(), DenyHandler{}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, g.Authorize(context.Background(), testRequest()), primitive.ErrNotApproved)

	g.SetHandler(AutoApproveHandler{})
	assert.NoError(t, g.Authorize(context.Background(), testRequest()))
}
