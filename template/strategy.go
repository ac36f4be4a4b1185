package template

import (
	"context"
	"errors"

	"github.com/LingHeChen/stencil/ast"
	"github.com/LingHeChen/stencil/eval"
	"github.com/LingHeChen/stencil/logger"
	"github.com/LingHeChen/stencil/sandbox"
)

// strategy resolves one tag. ok is false when the tag must stay as written.
type strategy interface {
	resolve(ctx context.Context, tag *ast.Tag, scope eval.Scope) (val interface{}, ok bool)
}

// syncStrategy never generates data and never leaves the process
type syncStrategy struct {
	e *Engine
}

func (s syncStrategy) resolve(_ context.Context, tag *ast.Tag, scope eval.Scope) (interface{}, bool) {
	kind := eval.Classify(tag.Expr)
	if kind == eval.KindMock {
		logger.TokenUnresolved(tag.Raw, "mock directives are not generated here", nil)
		return nil, false
	}

	// an exact key wins, even when the name looks like an expression
	if val, ok := scope[tag.Expr]; ok {
		return val, true
	}

	switch kind {
	case eval.KindPath:
		if val, ok := scope.Lookup(tag.Expr); ok {
			return val, true
		}
		logger.TokenUnresolved(tag.Raw, "unknown variable", nil)
	case eval.KindExpression:
		val, err := s.e.evaluator.Evaluate(tag.Expr, scope)
		if err == nil {
			return val, true
		}
		logger.TokenUnresolved(tag.Raw, "evaluation failed", err)
	default:
		logger.TokenUnresolved(tag.Raw, "not a variable or expression", nil)
	}
	return nil, false
}

// asyncStrategy generates mock data and delegates code to the sandbox
type asyncStrategy struct {
	e *Engine
}

func (s asyncStrategy) resolve(ctx context.Context, tag *ast.Tag, scope eval.Scope) (interface{}, bool) {
	switch eval.Classify(tag.Expr) {
	case eval.KindMock:
		if val, ok := s.e.generator.Lookup(tag.Expr); ok {
			return val, true
		}
		logger.TokenUnresolved(tag.Raw, "unrecognized mock directive", nil)
		return nil, false

	case eval.KindPath:
		if val, ok := scope.Lookup(tag.Expr); ok {
			return val, true
		}
		logger.TokenUnresolved(tag.Raw, "unknown variable", nil)
		return nil, false

	default:
		if s.e.executor == nil {
			logger.TokenUnresolved(tag.Raw, "no sandbox configured", nil)
			return nil, false
		}
		val, err := s.e.executor.Execute(ctx, tag.Expr, scope)
		if err != nil {
			if errors.Is(err, sandbox.ErrUndefined) {
				logger.TokenUnresolved(tag.Raw, "sandbox returned undefined", nil)
			} else {
				logger.TokenUnresolved(tag.Raw, "sandbox failed", err)
			}
			return nil, false
		}
		return val, true
	}
}
