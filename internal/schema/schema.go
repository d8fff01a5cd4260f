// Package schema translates the declarative input schema of a primitive
// into a typed parameter set. It has two consumers: the agent-facing
// adapter, which needs a strongly-typed call signature, and the
// execution runtime, which needs to validate and coerce raw arguments
// before the handler ever runs.
package schema

import (
	"sort"

	"toolforge/internal/primitive"
)

// ParamType is the closed set of parameter types a primitive can
// declare. Unknown or missing type tags map to TypeOpaque, which passes
// values through untouched.
type ParamType int

const (
	TypeOpaque ParamType = iota
	TypeString
	TypeNumber
	TypeInteger
	TypeBoolean
	TypeArray
	TypeObject
)

// String returns the JSON-schema type tag for the parameter type.
func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "opaque"
	}
}

// ParseParamType maps a declarative type tag to a ParamType. Anything
// outside the closed set (including the empty string) is opaque.
func ParseParamType(tag string) ParamType {
	switch tag {
	case "string":
		return TypeString
	case "number":
		return TypeNumber
	case "integer":
		return TypeInteger
	case "boolean":
		return TypeBoolean
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	default:
		return TypeOpaque
	}
}

// ParamSpec is one typed parameter of a primitive's call signature.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ParamSet is the full typed signature, sorted by parameter name so the
// conversion is deterministic.
type ParamSet []ParamSpec

// Get returns the spec for the named parameter, if present.
func (ps ParamSet) Get(name string) (ParamSpec, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Required returns the names of all required parameters, in order.
func (ps ParamSet) Required() []string {
	var req []string
	for _, p := range ps {
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return req
}

// Convert translates a declarative input schema into a typed parameter
// set. Pure: no validation side effects, no I/O.
func Convert(in primitive.InputSchema) ParamSet {
	params := make(ParamSet, 0, len(in.Properties))
	for name, prop := range in.Properties {
		params = append(params, ParamSpec{
			Name:        name,
			Type:        ParseParamType(prop.Type),
			Description: prop.Description,
			Required:    in.IsRequired(name),
		})
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params
}
