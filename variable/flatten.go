package variable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LingHeChen/stencil/eval"
	"github.com/LingHeChen/stencil/logger"
	"github.com/LingHeChen/stencil/sandbox"
)

// FlattenOptions controls how Flatten treats failing any-typed variables
type FlattenOptions struct {
	// Strict fails the whole call on the first failing variable. By
	// default the variable is left out of the scope and the failure is
	// logged and reported in the returned *FlattenError.
	Strict bool
}

// FlattenError reports the any-typed variables that could not be evaluated
type FlattenError struct {
	Names []string
	Err   error
}

func (e *FlattenError) Error() string {
	return fmt.Sprintf("flatten variables [%s]: %v", strings.Join(e.Names, ", "), e.Err)
}

func (e *FlattenError) Unwrap() error { return e.Err }

var errNoExecutor = errors.New("no sandbox executor configured")

// Flatten decodes vars into a scope. Disabled variables are skipped.
//
// Any-typed variables run through exec in list order, seeing the scope
// decoded so far. When one fails, the returned scope is still usable and
// the error is a *FlattenError, unless opts.Strict is set, in which case
// the scope is nil.
func Flatten(ctx context.Context, vars []Variable, exec sandbox.Executor, opts FlattenOptions) (eval.Scope, error) {
	scope := make(eval.Scope, len(vars))
	var (
		failed []string
		errs   []error
	)

	for _, v := range vars {
		if v.Disabled || v.Name == "" {
			continue
		}

		if v.Type != TypeAny {
			scope[v.Name] = decode(v)
			continue
		}

		val, err := runAny(ctx, v, scope, exec)
		if err != nil {
			err = fmt.Errorf("variable %q: %w", v.Name, err)
			if opts.Strict {
				return nil, &FlattenError{Names: []string{v.Name}, Err: err}
			}
			logger.Warn("Skipping variable", "name", v.Name, "error", err)
			failed = append(failed, v.Name)
			errs = append(errs, err)
			continue
		}
		scope[v.Name] = val
	}

	if len(errs) > 0 {
		return scope, &FlattenError{Names: failed, Err: errors.Join(errs...)}
	}
	return scope, nil
}

// decode converts the stored text of a non-any variable
func decode(v Variable) interface{} {
	switch v.Type {
	case TypeNumber:
		return eval.ParseNumber(v.Value)
	case TypeBoolean:
		return v.Value == "true"
	case TypeNull:
		return nil
	case TypeFile:
		if v.File != nil {
			return v.File.Path
		}
		return v.Value
	default:
		return v.Value
	}
}

func runAny(ctx context.Context, v Variable, scope eval.Scope, exec sandbox.Executor) (interface{}, error) {
	if exec == nil {
		return nil, errNoExecutor
	}
	val, err := exec.Execute(ctx, v.Value, scope.Clone())
	if errors.Is(err, sandbox.ErrUndefined) {
		return nil, nil
	}
	return val, err
}
