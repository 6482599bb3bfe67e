// dynamic.go
//
// Runtime tool creation. A dynamic tool is the Go source of a single
// function; its parameters become the argument schema and its body runs in
// a sandboxed child process.
//
// Exported:
//   - ToolSource, Param, ParseToolSource
//   - DynamicManager, NewDynamicManager
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"regexp"
	"strconv"
	"strings"
	"sync"

	loggerv2 "jarvis/logger/v2"
)

// defaultDirective sets a literal default for a parameter:
//
//	//jarvis:default count=3
const defaultDirective = "//jarvis:default "

var (
	toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	packageClause   = regexp.MustCompile(`(?m)^package\s+[A-Za-z_][A-Za-z0-9_]*`)
)

// Param is one parameter of a dynamic tool function.
type Param struct {
	Name    string
	GoType  string
	Pointer bool
}

// ToolSource is a parsed and accepted dynamic tool.
type ToolSource struct {
	Name         string
	Doc          string
	Params       []Param
	Schema       Schema
	ReturnsError bool
	// File is the source as a compilable file of package main.
	File string
}

// ParseToolSource checks that source declares exactly one top level
// function named name and derives its schema. Imports are allowed; any
// other declaration is rejected.
func ParseToolSource(name, source string) (*ToolSource, error) {
	if !toolNamePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid tool name %q", name)
	}
	if name == "main" || name == "init" {
		return nil, fmt.Errorf("tool name %q is reserved", name)
	}

	src := source
	if !packageClause.MatchString(src) {
		src = "package main\n\n" + src
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "tool.go", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %w", err)
	}
	if file.Name.Name != "main" {
		start := fset.Position(file.Name.Pos()).Offset
		end := fset.Position(file.Name.End()).Offset
		src = src[:start] + "main" + src[end:]
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.IMPORT {
				return nil, fmt.Errorf("only imports and a single function are allowed, found %s declaration", d.Tok)
			}
		case *ast.FuncDecl:
			if fn != nil {
				return nil, errors.New("source must define exactly one function, found several")
			}
			fn = d
		}
	}
	if fn == nil {
		return nil, errors.New("source must define exactly one function, found none")
	}
	if fn.Name.Name != name {
		return nil, fmt.Errorf("function name %q does not match tool name %q", fn.Name.Name, name)
	}
	if fn.Recv != nil {
		return nil, errors.New("tool function must not be a method")
	}
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return nil, errors.New("tool function must not be generic")
	}
	if fn.Body == nil {
		return nil, errors.New("tool function has no body")
	}

	returnsError, err := checkResults(fn.Type.Results)
	if err != nil {
		return nil, err
	}

	defaults, err := parseDefaults(fn.Doc)
	if err != nil {
		return nil, err
	}

	ts := &ToolSource{Name: name, ReturnsError: returnsError, File: src}
	if fn.Doc != nil {
		ts.Doc = strings.TrimSpace(fn.Doc.Text())
	}

	seen := make(map[string]bool)
	for _, field := range fn.Type.Params.List {
		if len(field.Names) == 0 {
			return nil, errors.New("tool function parameters must be named")
		}
		if _, variadic := field.Type.(*ast.Ellipsis); variadic {
			return nil, errors.New("variadic parameters are not supported")
		}
		typ, items, pointer, err := schemaType(field.Type)
		if err != nil {
			return nil, err
		}
		goType := exprString(fset, field.Type)
		for _, ident := range field.Names {
			if ident.Name == "_" {
				return nil, errors.New("blank parameter names are not supported")
			}
			f := Field{Name: ident.Name, Type: typ, Items: items, Required: !pointer}
			if raw, ok := defaults[ident.Name]; ok {
				def, err := parseDefault(typ, raw)
				if err != nil {
					return nil, fmt.Errorf("default for %s: %w", ident.Name, err)
				}
				f.Default = def
				f.Required = false
			}
			seen[ident.Name] = true
			ts.Params = append(ts.Params, Param{Name: ident.Name, GoType: goType, Pointer: pointer})
			ts.Schema.Fields = append(ts.Schema.Fields, f)
		}
	}
	for p := range defaults {
		if !seen[p] {
			return nil, fmt.Errorf("default given for unknown parameter %q", p)
		}
	}
	return ts, nil
}

func checkResults(results *ast.FieldList) (bool, error) {
	if results == nil || len(results.List) == 0 {
		return false, errors.New("tool function must return a value")
	}
	var types []ast.Expr
	for _, f := range results.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			types = append(types, f.Type)
		}
	}
	switch len(types) {
	case 1:
		if isErrorType(types[0]) {
			return false, errors.New("tool function must return a value, not only an error")
		}
		return false, nil
	case 2:
		if !isErrorType(types[1]) {
			return false, errors.New("second result of a tool function must be error")
		}
		return true, nil
	}
	return false, errors.New("tool function must return (T) or (T, error)")
}

func isErrorType(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "error"
}

// schemaType maps a Go parameter type onto a schema Type.
func schemaType(e ast.Expr) (typ Type, items Type, pointer bool, err error) {
	if star, ok := e.(*ast.StarExpr); ok {
		t, it, p, err := schemaType(star.X)
		if err != nil {
			return "", "", false, err
		}
		if p {
			return "", "", false, errors.New("pointer to pointer parameters are not supported")
		}
		return t, it, true, nil
	}
	switch t := e.(type) {
	case *ast.Ident:
		if st, ok := scalarType(t.Name); ok {
			return st, "", false, nil
		}
		return "", "", false, fmt.Errorf("unsupported parameter type %s", t.Name)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return TypeAny, "", false, nil
		}
	case *ast.ArrayType:
		if t.Len != nil {
			return "", "", false, errors.New("fixed size arrays are not supported, use a slice")
		}
		elem, _, p, err := schemaType(t.Elt)
		if err != nil {
			return "", "", false, err
		}
		if p || elem == TypeArray {
			return "", "", false, errors.New("unsupported slice element type")
		}
		return TypeArray, elem, false, nil
	case *ast.MapType:
		if k, ok := t.Key.(*ast.Ident); !ok || k.Name != "string" {
			return "", "", false, errors.New("map parameters must have string keys")
		}
		return TypeObject, "", false, nil
	}
	return "", "", false, fmt.Errorf("unsupported parameter type %T", e)
}

func scalarType(name string) (Type, bool) {
	switch name {
	case "string":
		return TypeString, true
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return TypeInteger, true
	case "float32", "float64":
		return TypeNumber, true
	case "bool":
		return TypeBoolean, true
	case "any":
		return TypeAny, true
	}
	return "", false
}

func parseDefaults(doc *ast.CommentGroup) (map[string]string, error) {
	out := map[string]string{}
	if doc == nil {
		return out, nil
	}
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, defaultDirective) {
			continue
		}
		spec := strings.TrimSpace(strings.TrimPrefix(c.Text, defaultDirective))
		name, value, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("malformed default directive %q", c.Text)
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out, nil
}

func parseDefault(t Type, raw string) (any, error) {
	switch t {
	case TypeString:
		if s, err := strconv.Unquote(raw); err == nil {
			return s, nil
		}
		return raw, nil
	case TypeInteger:
		return strconv.Atoi(raw)
	case TypeNumber:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return strconv.ParseBool(raw)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("expected JSON literal: %w", err)
	}
	return v, nil
}

func exprString(fset *token.FileSet, e ast.Expr) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, fset, e)
	return buf.String()
}

// ToolRunner executes a parsed dynamic tool. Sandbox is the production
// implementation.
type ToolRunner interface {
	RunTool(ctx context.Context, tool *ToolSource, args Args) (any, error)
	Check(ctx context.Context, tool *ToolSource) error
}

// DynamicManager turns tool sources into registered definitions.
type DynamicManager struct {
	mu       sync.Mutex
	registry *Registry
	runner   ToolRunner
	logger   loggerv2.Logger
	check    bool
	sources  map[string]*ToolSource
}

type DynamicOption func(*DynamicManager)

func WithDynamicLogger(l loggerv2.Logger) DynamicOption {
	return func(m *DynamicManager) { m.logger = l }
}

// WithoutBuildCheck skips compiling the tool at registration time. The
// source is still parsed and its signature validated.
func WithoutBuildCheck() DynamicOption {
	return func(m *DynamicManager) { m.check = false }
}

func NewDynamicManager(registry *Registry, runner ToolRunner, opts ...DynamicOption) *DynamicManager {
	m := &DynamicManager{
		registry: registry,
		runner:   runner,
		logger:   loggerv2.NewNoop(),
		check:    true,
		sources:  make(map[string]*ToolSource),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register parses, checks and registers a dynamic tool. On any failure the
// session tool set is left unchanged.
func (m *DynamicManager) Register(ctx context.Context, name, source, description string) (*Definition, error) {
	ts, err := ParseToolSource(name, source)
	if err != nil {
		m.logger.Warn("Dynamic tool rejected", loggerv2.String("tool", name), loggerv2.Error(err))
		return nil, err
	}
	if m.check && m.runner != nil {
		if err := m.runner.Check(ctx, ts); err != nil {
			m.logger.Warn("Dynamic tool failed to build", loggerv2.String("tool", name), loggerv2.Error(err))
			return nil, err
		}
	}

	if description == "" {
		description = ts.Doc
	}
	runner := m.runner
	def := Definition{
		Name:        name,
		Description: description,
		Schema:      ts.Schema,
		Func: func(ctx context.Context, args Args) (any, error) {
			if runner == nil {
				return nil, errors.New("no sandbox configured for dynamic tools")
			}
			return runner.RunTool(ctx, ts, args)
		},
	}
	if err := m.registry.RegisterDynamic(def); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sources[name] = ts
	m.mu.Unlock()

	m.logger.Info("Dynamic tool registered",
		loggerv2.String("tool", name),
		loggerv2.String("signature", ts.Schema.Signature()))
	registered, _ := m.registry.Lookup(name)
	return registered, nil
}

// Source returns the accepted source of a dynamic tool.
func (m *DynamicManager) Source(name string) (*ToolSource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.sources[name]
	return ts, ok
}
