// Package primitive defines the data model for dynamically registered
// tools: the Primitive definition itself, its declarative input schema,
// and the ExecutionRecord audit trail. All other runtime packages build
// on these types.
package primitive

import "time"

// Timeout bounds enforced on every primitive, in milliseconds.
// Values outside the range are clamped, never rejected.
const (
	DefaultTimeoutMs = 30000
	MinTimeoutMs     = 1000
	MaxTimeoutMs     = 300000
)

// Primitive is a named, schema-described, persistently stored callable
// operation. The handler is stored as source text and interpreted at
// invocation time; it is never compiled into the host binary.
type Primitive struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
	Handler     string      `json:"handler"`

	// Execution policy
	TimeoutMs int  `json:"timeoutMs"`
	Sandboxed bool `json:"sandboxed"`

	// Lifecycle flags
	Enabled bool `json:"enabled"`
	BuiltIn bool `json:"builtIn"`
	Version int  `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClampTimeout returns ms forced into [MinTimeoutMs, MaxTimeoutMs],
// substituting DefaultTimeoutMs for zero or negative values.
func ClampTimeout(ms int) int {
	if ms <= 0 {
		return DefaultTimeoutMs
	}
	if ms < MinTimeoutMs {
		return MinTimeoutMs
	}
	if ms > MaxTimeoutMs {
		return MaxTimeoutMs
	}
	return ms
}

// Property describes a single parameter in an input schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// InputSchema is the declarative contract of a primitive: each parameter
// with its type tag, plus the list of required parameter names. The type
// tags are a closed set (string, number, integer, boolean, array,
// object); anything else is treated as an opaque passthrough value.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// IsRequired reports whether the named parameter appears in the
// required list.
func (s InputSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// ExecutionRecord is the immutable outcome of one invocation, persisted
// for auditing and history views regardless of success or failure.
type ExecutionRecord struct {
	ID              int64          `json:"id"`
	PrimitiveID     string         `json:"primitiveId"`
	PrimitiveName   string         `json:"primitiveName"`
	Input           map[string]any `json:"input"`
	Output          any            `json:"output,omitempty"`
	Error           string         `json:"error,omitempty"`
	Success         bool           `json:"success"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	StartedAt       time.Time      `json:"startedAt"`
}

// Definition is the caller-supplied payload for creating a primitive.
// System-managed fields (id, version, builtIn, timestamps) are absent;
// zero TimeoutMs means "use the default".
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Tags        []string    `json:"tags,omitempty"`
	Icon        string      `json:"icon,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
	Handler     string      `json:"handler"`
	TimeoutMs   int         `json:"timeoutMs,omitempty"`
	Sandboxed   *bool       `json:"sandboxed,omitempty"`
}

// Update is a partial mutation of an existing primitive. Nil fields are
// left untouched.
type Update struct {
	Description *string      `json:"description,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Tags        *[]string    `json:"tags,omitempty"`
	Icon        *string      `json:"icon,omitempty"`
	InputSchema *InputSchema `json:"inputSchema,omitempty"`
	Handler     *string      `json:"handler,omitempty"`
	TimeoutMs   *int         `json:"timeoutMs,omitempty"`
	Sandboxed   *bool        `json:"sandboxed,omitempty"`
}
