// Package template resolves {{ }} placeholders in user-authored strings.
//
// Two entry points share one renderer:
//
//   - Resolve works on an already flattened scope and never runs mock
//     directives or sandboxed code. Operator expressions go through the
//     bounded evaluator.
//   - Compile flattens the variable list itself, generates mock data and
//     sends anything that is not a plain path to the sandbox executor.
//
// A template that is exactly one tag (surrounding whitespace aside) yields
// the tag's native value; every other template yields a string. A tag that
// cannot be resolved is left in the output as written.
package template

import (
	"context"
	"strings"
	"sync"

	"github.com/LingHeChen/stencil/ast"
	"github.com/LingHeChen/stencil/eval"
	"github.com/LingHeChen/stencil/logger"
	"github.com/LingHeChen/stencil/mock"
	"github.com/LingHeChen/stencil/parser"
	"github.com/LingHeChen/stencil/sandbox"
	"github.com/LingHeChen/stencil/variable"
)

// LocalKey is the scope key the auxiliary context is merged under
const LocalKey = "_local"

// Engine resolves templates. It is safe for concurrent use.
type Engine struct {
	evaluator *eval.Evaluator
	generator *mock.Generator
	executor  sandbox.Executor
	flatten   variable.FlattenOptions
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithEvaluator sets the bounded evaluator used by Resolve
func WithEvaluator(ev *eval.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithGenerator sets the mock data generator used by Compile
func WithGenerator(g *mock.Generator) Option {
	return func(e *Engine) {
		e.generator = g
	}
}

// WithExecutor sets the sandbox used by Compile. A nil executor leaves
// sandbox-bound tags and any-typed variables unresolved.
func WithExecutor(exec sandbox.Executor) Option {
	return func(e *Engine) {
		e.executor = exec
	}
}

// WithFlattenOptions controls variable flattening in Compile
func WithFlattenOptions(opts variable.FlattenOptions) Option {
	return func(e *Engine) {
		e.flatten = opts
	}
}

// New creates an Engine. By default sandboxed code runs in an in-process
// VM; use WithExecutor to point it at a worker process.
func New(opts ...Option) *Engine {
	e := &Engine{
		evaluator: eval.NewEvaluator(),
		generator: mock.New(),
		executor:  sandbox.NewLocal(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve renders tpl against an already flattened scope. Mock directives
// are passed through untouched. It never fails: anything that cannot be
// resolved stays visible in the result.
func (e *Engine) Resolve(tpl string, scope eval.Scope) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Template resolution panicked", "template", tpl, "panic", r)
			result = tpl
		}
	}()

	if !hasSyntax(tpl) {
		return tpl
	}
	parsed, err := parser.ParseString(tpl)
	if err != nil {
		logger.Warn("Template not parsed", "template", tpl, "error", err)
		return tpl
	}

	result = e.render(context.Background(), parsed, scope, syncStrategy{e})
	logger.Interpolation(tpl, result)
	return result
}

// Compile flattens vars, merges local under LocalKey and renders tpl with
// mock generation and sandbox execution enabled. It never fails: on any
// internal failure the original template is returned.
func (e *Engine) Compile(ctx context.Context, tpl string, vars []variable.Variable, local map[string]interface{}) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Template compilation panicked", "template", tpl, "panic", r)
			result = tpl
		}
	}()

	scope, err := e.NewScope(ctx, vars, local)
	if err != nil {
		logger.Warn("Template left unresolved", "template", tpl, "error", err)
		return tpl
	}
	return e.CompileWith(ctx, tpl, scope)
}

// NewScope builds the scope Compile resolves against. Failing any-typed
// variables are skipped and logged; an error is returned only when strict
// flattening rejects the whole list.
func (e *Engine) NewScope(ctx context.Context, vars []variable.Variable, local map[string]interface{}) (eval.Scope, error) {
	scope, err := variable.Flatten(ctx, vars, e.executor, e.flatten)
	if err != nil {
		if scope == nil {
			return nil, err
		}
		logger.Warn("Some variables were skipped", "error", err)
	}
	if local != nil {
		scope[LocalKey] = local
	}
	return scope, nil
}

// CompileWith renders tpl like Compile, against a scope from NewScope
func (e *Engine) CompileWith(ctx context.Context, tpl string, scope eval.Scope) (result interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Template compilation panicked", "template", tpl, "panic", r)
			result = tpl
		}
	}()

	if !hasSyntax(tpl) {
		return tpl
	}
	parsed, err := parser.ParseString(tpl)
	if err != nil {
		logger.Warn("Template not parsed", "template", tpl, "error", err)
		return tpl
	}

	result = e.render(ctx, parsed, scope, asyncStrategy{e})
	logger.Interpolation(tpl, result)
	return result
}

// CompileAll compiles many templates concurrently against one flattened
// scope. Keys are preserved.
func (e *Engine) CompileAll(ctx context.Context, templates map[string]string, vars []variable.Variable, local map[string]interface{}) (result map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Template compilation panicked", "count", len(templates), "panic", r)
			result = unresolved(templates)
		}
	}()

	scope, err := e.NewScope(ctx, vars, local)
	if err != nil {
		logger.Warn("Templates left unresolved", "count", len(templates), "error", err)
		return unresolved(templates)
	}
	return e.CompileAllWith(ctx, templates, scope)
}

func unresolved(templates map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(templates))
	for k, tpl := range templates {
		out[k] = tpl
	}
	return out
}

// CompileAllWith is CompileAll against a scope from NewScope
func (e *Engine) CompileAllWith(ctx context.Context, templates map[string]string, scope eval.Scope) map[string]interface{} {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]interface{}, len(templates))
	)
	for key, tpl := range templates {
		wg.Add(1)
		go func(key, tpl string) {
			defer wg.Done()
			val := e.CompileWith(ctx, tpl, scope)
			mu.Lock()
			out[key] = val
			mu.Unlock()
		}(key, tpl)
	}
	wg.Wait()
	return out
}

// CompileValue compiles every string leaf of a decoded JSON/YAML value,
// so a leaf that is a single tag keeps its native type
func (e *Engine) CompileValue(ctx context.Context, value interface{}, scope eval.Scope) interface{} {
	switch v := value.(type) {
	case string:
		return e.CompileWith(ctx, v, scope)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = e.CompileValue(ctx, item, scope)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = e.CompileValue(ctx, item, scope)
		}
		return out
	default:
		return value
	}
}

// render is the shared core of both entry points
func (e *Engine) render(ctx context.Context, tpl *ast.Template, scope eval.Scope, strat strategy) interface{} {
	if tag, ok := tpl.SingleTag(); ok {
		if val, ok := strat.resolve(ctx, tag, scope); ok {
			return val
		}
		return tag.Raw
	}

	var sb strings.Builder
	for _, seg := range tpl.Segments {
		switch s := seg.(type) {
		case *ast.Text:
			sb.WriteString(s.Value)
		case *ast.Tag:
			if val, ok := strat.resolve(ctx, s, scope); ok {
				sb.WriteString(Stringify(val))
			} else {
				sb.WriteString(s.Raw)
			}
		case *ast.Directive:
			sb.WriteString(s.Raw)
		case *ast.Escaped:
			sb.WriteString(s.Literal())
		}
	}
	return sb.String()
}

// hasSyntax reports whether tpl could contain anything but plain text
func hasSyntax(tpl string) bool {
	return strings.Contains(tpl, ast.OpenDelim) ||
		strings.Contains(tpl, ast.Marker) ||
		strings.Contains(tpl, ast.EscapeMarker)
}
