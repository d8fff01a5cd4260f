// Package adapter exposes the tool runtime to an agent's reasoning
// loop. Two families of callable tools: fixed registry-management
// operations, which let an agent extend its own tool set at runtime,
// and one tool per currently mounted primitive. The exposed set
// refreshes on every mount cache change, so a newly mounted primitive
// is callable without a process restart.
package adapter

import (
	"context"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ExecuteFunc runs a tool call with already-validated arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is one callable advertised to the agent.
type Tool struct {
	// Name is unique across the advertised set.
	Name string

	// Description is shown to the reasoning loop.
	Description string

	// Schema is the raw JSON-Schema document for the arguments.
	Schema map[string]any

	// Execute dispatches the call.
	Execute ExecuteFunc

	// compiled enforces Schema at the call boundary.
	compiled *gojsonschema.Schema
}

// validateArgs checks raw arguments against the advertised schema.
// Unknown properties pass; the schemas deliberately omit
// additionalProperties so callers stay forward-compatible.
func (t *Tool) validateArgs(args map[string]any) error {
	if t.compiled == nil {
		return nil
	}
	res, err := t.compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("argument validation failed: %w", err)
	}
	if !res.Valid() {
		errs := res.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid arguments for %s: %s", t.Name, errs[0].String())
		}
		return fmt.Errorf("invalid arguments for %s", t.Name)
	}
	return nil
}
