package falcon

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// kind is the declared runtime type of a parameter.
type kind int

const (
	kindString kind = iota
	kindList
	kindInt
	kindBool
	kindActionParameters
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindList:
		return "list of strings"
	case kindInt:
		return "integer"
	case kindBool:
		return "boolean"
	case kindActionParameters:
		return "list of action parameters"
	default:
		return "unknown"
	}
}

func (k kind) matches(v any) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindList:
		_, ok := v.([]string)
		return ok
	case kindInt:
		_, ok := v.(int)
		return ok
	case kindBool:
		_, ok := v.(bool)
		return ok
	case kindActionParameters:
		_, ok := v.([]ActionParameter)
		return ok
	default:
		return false
	}
}

type field struct {
	name     string
	kind     kind
	required bool
}

func opt(name string, k kind) field { return field{name: name, kind: k} }
func req(name string, k kind) field { return field{name: name, kind: k, required: true} }

// schema is the allow-list of an endpoint.
type schema []field

// pagingSchema is shared by the FQL query endpoints.
var pagingSchema = schema{
	opt("filter", kindString),
	opt("offset", kindInt),
	opt("limit", kindInt),
	opt("sort", kindString),
}

func (s schema) with(fields ...field) schema {
	return append(slices.Clone(s), fields...)
}

func (s schema) lookup(name string) (field, bool) {
	for _, f := range s {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

// validate rejects unknown keys, type mismatches and missing required keys.
func (s schema) validate(p Params) error {
	for _, key := range slices.Sorted(maps.Keys(p)) {
		f, ok := s.lookup(key)
		if !ok {
			return invalidParam(key, "is not a valid argument")
		}
		if !f.kind.matches(p[key]) {
			return invalidParam(key, fmt.Sprintf("must be a %s, got %T", f.kind, p[key]))
		}
	}
	for _, f := range s {
		if _, ok := p[f.name]; f.required && !ok {
			return invalidParam(f.name, "is required")
		}
	}
	return nil
}

// checkPaging enforces 1 <= limit <= maxLimit and a non-negative offset.
func checkPaging(p Params, maxLimit int) error {
	if limit, ok := p["limit"].(int); ok && (limit < 1 || limit > maxLimit) {
		return invalidParam("limit", fmt.Sprintf("must be between 1 and %d", maxLimit))
	}
	if offset, ok := p["offset"].(int); ok && offset < 0 {
		return invalidParam("offset", "must not be negative")
	}
	return nil
}

// oneOf checks that an optional string parameter holds one of allowed.
func oneOf(p Params, key string, allowed ...string) error {
	v, ok := p[key].(string)
	if !ok || slices.Contains(allowed, v) {
		return nil
	}
	return invalidParam(key, fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), v))
}
