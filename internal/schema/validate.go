package schema

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/xeipuuv/gojsonschema"

	"toolforge/internal/primitive"
)

// ValidateInput checks raw arguments against a primitive's schema and
// returns the validated, coerced argument set. Unknown top-level keys
// are dropped rather than rejected; optional parameters accept absence.
// On any violation the returned error list is non-empty and the
// returned map is nil.
func ValidateInput(in primitive.InputSchema, raw map[string]any) (map[string]any, []string) {
	params := Convert(in)
	var errs []string
	out := make(map[string]any, len(params))

	for _, p := range params {
		val, ok := raw[p.Name]
		if !ok || val == nil {
			if p.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter: %s", p.Name))
			}
			continue
		}

		coerced, err := coerce(p, val)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		out[p.Name] = coerced
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// coerce converts a raw value to the parameter's declared type. JSON
// decoding hands us float64 for every number, so integer parameters
// accept whole-valued floats.
func coerce(p ParamSpec, val any) (any, error) {
	switch p.Type {
	case TypeString:
		s, ok := val.(string)
		if !ok {
			return nil, typeError(p, "string", val)
		}
		return s, nil

	case TypeNumber:
		f, ok := asFloat(val)
		if !ok {
			return nil, typeError(p, "number", val)
		}
		return f, nil

	case TypeInteger:
		f, ok := asFloat(val)
		if !ok || f != math.Trunc(f) {
			return nil, typeError(p, "integer", val)
		}
		return int64(f), nil

	case TypeBoolean:
		b, ok := val.(bool)
		if !ok {
			return nil, typeError(p, "boolean", val)
		}
		return b, nil

	case TypeArray:
		a, ok := val.([]any)
		if !ok {
			return nil, typeError(p, "array", val)
		}
		return a, nil

	case TypeObject:
		m, ok := val.(map[string]any)
		if !ok {
			return nil, typeError(p, "object", val)
		}
		return m, nil

	default:
		// Opaque: passthrough untouched.
		return val, nil
	}
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeError(p ParamSpec, want string, got any) error {
	return fmt.Errorf("parameter %s: expected %s, got %T", p.Name, want, got)
}

// JSONSchema renders the declarative schema as a raw JSON-Schema
// document for callers that speak JSON Schema (LLM tool calling,
// adapter contracts). Opaque parameters are emitted without a type tag.
func JSONSchema(in primitive.InputSchema) map[string]any {
	props := make(map[string]any, len(in.Properties))
	for name, prop := range in.Properties {
		p := map[string]any{}
		if t := ParseParamType(prop.Type); t != TypeOpaque {
			p["type"] = t.String()
		}
		if prop.Description != "" {
			p["description"] = prop.Description
		}
		props[name] = p
	}

	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(in.Required) > 0 {
		doc["required"] = in.Required
	}
	return doc
}

// Compile builds a gojsonschema validator from the declarative schema.
// Used by the adapter to enforce the advertised contract at the call
// boundary; the runtime's own coercion stays the source of truth.
func Compile(in primitive.InputSchema) (*gojsonschema.Schema, error) {
	doc := JSONSchema(in)
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to compile input schema: %w", err)
	}
	return compiled, nil
}
