package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"toolforge/internal/primitive"
	"toolforge/internal/schema"
	"toolforge/internal/store"
)

// managementTools builds the fixed registry-management operations. They
// bypass the permission gate: they mutate the registry, not the outside
// world, and every mutation is still bounded by the validator and the
// built-in immutability rules.
func (a *Adapter) managementTools() []*Tool {
	return []*Tool{
		a.mgmtTool("create_tool",
			"Define and mount a new tool. The definition carries a name, description, input schema, and handler source.",
			primitive.InputSchema{
				Properties: map[string]primitive.Property{
					"definition": {Type: "object", Description: "Tool definition: name, description, category, tags, inputSchema, handler, timeoutMs."},
				},
				Required: []string{"definition"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				var def primitive.Definition
				if err := decodeInto(args["definition"], &def); err != nil {
					return nil, fmt.Errorf("invalid definition: %w", err)
				}
				return a.reg.Create(def)
			}),

		a.mgmtTool("update_tool",
			"Apply a partial update to an existing tool. Built-in tools cannot be changed.",
			primitive.InputSchema{
				Properties: map[string]primitive.Property{
					"id":      {Type: "string", Description: "Tool id or unique name."},
					"changes": {Type: "object", Description: "Fields to change: description, category, tags, inputSchema, handler, timeoutMs."},
				},
				Required: []string{"id", "changes"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				p, err := a.resolve(args)
				if err != nil {
					return nil, err
				}
				var upd primitive.Update
				if err := decodeInto(args["changes"], &upd); err != nil {
					return nil, fmt.Errorf("invalid changes: %w", err)
				}
				return a.reg.Update(p.ID, upd)
			}),

		a.mgmtTool("delete_tool",
			"Delete a tool definition permanently. Built-in tools cannot be deleted.",
			idOnlySchema,
			func(_ context.Context, args map[string]any) (any, error) {
				p, err := a.resolve(args)
				if err != nil {
					return nil, err
				}
				if err := a.reg.Delete(p.ID); err != nil {
					return nil, err
				}
				return map[string]any{"deleted": p.Name}, nil
			}),

		a.mgmtTool("mount_tool",
			"Enable a tool so it becomes callable. Idempotent.",
			idOnlySchema,
			func(_ context.Context, args map[string]any) (any, error) {
				p, err := a.resolve(args)
				if err != nil {
					return nil, err
				}
				if err := a.reg.Mount(p.ID); err != nil {
					return nil, err
				}
				return map[string]any{"mounted": p.Name}, nil
			}),

		a.mgmtTool("dismount_tool",
			"Disable a tool without deleting its definition. Idempotent.",
			idOnlySchema,
			func(_ context.Context, args map[string]any) (any, error) {
				p, err := a.resolve(args)
				if err != nil {
					return nil, err
				}
				if err := a.reg.Dismount(p.ID); err != nil {
					return nil, err
				}
				return map[string]any{"dismounted": p.Name}, nil
			}),

		a.mgmtTool("search_tools",
			"Search tools by name, description, or tag substring.",
			primitive.InputSchema{
				Properties: map[string]primitive.Property{
					"query": {Type: "string", Description: "Substring to search for."},
				},
				Required: []string{"query"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				query, _ := args["query"].(string)
				return a.reg.Search(query)
			}),

		a.mgmtTool("list_tools",
			"List registered tools, optionally filtered.",
			primitive.InputSchema{
				Properties: map[string]primitive.Property{
					"category":     {Type: "string", Description: "Only tools in this category."},
					"enabled_only": {Type: "boolean", Description: "Only mounted tools."},
					"limit":        {Type: "integer", Description: "Maximum number of results."},
				},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				filter := store.ListFilter{}
				if c, ok := args["category"].(string); ok {
					filter.Category = c
				}
				if e, ok := args["enabled_only"].(bool); ok {
					filter.EnabledOnly = e
				}
				if l, ok := args["limit"].(float64); ok {
					filter.Limit = int(l)
				}
				return a.reg.List(filter)
			}),

		a.mgmtTool("tool_stats",
			"Aggregate registry statistics, including executions in the last 24 hours.",
			primitive.InputSchema{},
			func(_ context.Context, args map[string]any) (any, error) {
				return a.reg.Stats()
			}),
	}
}

var idOnlySchema = primitive.InputSchema{
	Properties: map[string]primitive.Property{
		"id": {Type: "string", Description: "Tool id or unique name."},
	},
	Required: []string{"id"},
}

// mgmtTool assembles one management tool with a compiled schema.
func (a *Adapter) mgmtTool(name, desc string, in primitive.InputSchema, fn ExecuteFunc) *Tool {
	compiled, err := schema.Compile(in)
	if err != nil {
		a.log.Error("failed to compile management tool schema",
			zap.String("tool", name), zap.Error(err))
		compiled = nil
	}
	return &Tool{
		Name:        name,
		Description: desc,
		Schema:      schema.JSONSchema(in),
		Execute:     fn,
		compiled:    compiled,
	}
}

// resolve looks up the primitive referenced by the id argument, which
// may be a system id or a unique name.
func (a *Adapter) resolve(args map[string]any) (*primitive.Primitive, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", primitive.ErrNotFound)
	}
	return a.reg.Get(id)
}

// decodeInto round-trips an argument value through JSON into a typed
// struct.
func decodeInto(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
