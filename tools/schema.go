// schema.go
//
// Declared argument schemas for tools and the validation/coercion step that
// runs before any tool body. Coercion is deliberately narrow: integers accept
// integral numbers and strictly numeric strings, never truncated floats.
//
// Exported:
//   - Type, Field, Schema, Args
//   - FieldError, ValidationError
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Type is the declared type of a tool argument.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypeAny     Type = "any"
)

// Field declares one named argument.
type Field struct {
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	// Default fills the argument when it is optional and absent.
	Default any `json:"default,omitempty"`
	// Items is the element type for arrays. Empty means any.
	Items Type `json:"items,omitempty"`
}

// Schema is the ordered list of argument fields of a tool.
type Schema struct {
	Fields []Field `json:"fields"`
}

// NewSchema is a small constructor that keeps static tool tables compact.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Required declares a required field.
func Required(name string, t Type, description string) Field {
	return Field{Name: name, Type: t, Description: description, Required: true}
}

// Optional declares an optional field with a default (nil for none).
func Optional(name string, t Type, description string, def any) Field {
	return Field{Name: name, Type: t, Description: description, Default: def}
}

// Field returns the declaration of name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldError describes why one argument was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field error found in one call.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// Validate checks raw against the schema and returns coerced arguments.
// Unknown fields are rejected so that a misspelled argument reaches the
// planner as feedback instead of being silently dropped.
func (s Schema) Validate(raw map[string]any) (Args, error) {
	out := make(Args, len(s.Fields))
	var errs []FieldError

	known := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = struct{}{}
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: "field required"})
				continue
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		coerced, err := coerce(f.Type, f.Items, v)
		if err != nil {
			errs = append(errs, FieldError{Field: f.Name, Message: err.Error()})
			continue
		}
		out[f.Name] = coerced
	}

	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, FieldError{Field: name, Message: "unexpected argument"})
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return out, nil
}

var integerString = regexp.MustCompile(`^[+-]?\d+$`)

func coerce(t Type, items Type, v any) (any, error) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", describe(v))
		}
		return s, nil

	case TypeInteger:
		return coerceInteger(v)

	case TypeNumber:
		return coerceNumber(v)

	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(b) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, fmt.Errorf("expected boolean, got %s", describe(v))

	case TypeArray:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected array, got %s", describe(v))
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if items == "" || items == TypeAny {
				out[i] = elem
				continue
			}
			c, err := coerce(items, "", elem)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil

	case TypeObject:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("expected object, got %s", describe(v))
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil

	case TypeAny, "":
		return v, nil
	}
	return nil, fmt.Errorf("unsupported declared type %q", t)
}

func coerceInteger(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8, int16, int32, int64:
		i := reflect.ValueOf(n).Int()
		if i > math.MaxInt || i < math.MinInt {
			return nil, fmt.Errorf("integer out of range: %d", i)
		}
		return int(i), nil
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(n).Uint()
		if u > math.MaxInt {
			return nil, fmt.Errorf("integer out of range: %d", u)
		}
		return int(u), nil
	case float32:
		return integralFloat(float64(n))
	case float64:
		return integralFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", n.String())
		}
		return integralFloat(f)
	case string:
		if !integerString.MatchString(n) {
			return nil, fmt.Errorf("expected integer, got string %q", n)
		}
		i, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("integer out of range: %q", n)
		}
		return i, nil
	}
	return nil, fmt.Errorf("expected integer, got %s", describe(v))
}

func integralFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected integer, got non-integral number %v", f)
	}
	// float64(MaxInt64) rounds up to 2^63, which does not fit.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("integer out of range: %v", f)
	}
	return int(f), nil
}

func coerceNumber(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(n).Convert(reflect.TypeOf(float64(0))).Float(), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected number, got string %q", n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("expected number, got %s", describe(v))
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// JSONSchema renders the schema as a JSON Schema object for MCP clients.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := []string{}
	for _, f := range s.Fields {
		p := map[string]any{}
		if f.Type != TypeAny && f.Type != "" {
			p["type"] = string(f.Type)
		}
		if f.Type == TypeArray && f.Items != "" && f.Items != TypeAny {
			p["items"] = map[string]any{"type": string(f.Items)}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Default != nil {
			p["default"] = f.Default
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Signature renders a compact one-line parameter list used in prompts,
// e.g. "source_path: string, overwrite?: boolean = false".
func (s Schema) Signature() string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		typ := string(f.Type)
		if f.Type == TypeArray && f.Items != "" {
			typ = "array<" + string(f.Items) + ">"
		}
		if f.Required {
			parts = append(parts, f.Name+": "+typ)
			continue
		}
		p := f.Name + "?: " + typ
		if f.Default != nil {
			p += fmt.Sprintf(" = %v", f.Default)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

// Args are validated and coerced tool arguments. Accessors return the zero
// value for absent fields; validation has already enforced required ones.
type Args map[string]any

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int {
	i, _ := a[name].(int)
	return i
}

func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Strings returns an array argument as strings, skipping non-string items.
func (a Args) Strings(name string) []string {
	items, _ := a[name].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
