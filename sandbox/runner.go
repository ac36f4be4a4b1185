package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/LingHeChen/stencil/logger"
)

// DefaultTimeout bounds a single script run
const DefaultTimeout = 5 * time.Second

var errTimeout = errors.New("script timed out")

// Runner evaluates requests, one fresh VM per request
type Runner struct {
	timeout       time.Duration
	maxConcurrent int
	log           *log.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithTimeout sets the per-request time limit
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxConcurrent limits how many requests Serve runs at once
func WithMaxConcurrent(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithLogger sets the logger used by the worker
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner creates a Runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout:       DefaultTimeout,
		maxConcurrent: runtime.NumCPU(),
		log:           logger.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates req.Code and returns the completion value of the script.
// The VM has no module loader and no host bindings besides the scope.
func (r *Runner) Run(ctx context.Context, req Request) Response {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for name, val := range req.Scope {
		if err := vm.Set(name, val); err != nil {
			return failure(req.ID, CodeRuntime, fmt.Sprintf("bind %q: %v", name, err))
		}
	}

	timer := time.AfterFunc(r.timeout, func() { vm.Interrupt(errTimeout) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	val, err := vm.RunString(req.Code)
	if err != nil {
		return r.classify(req.ID, err)
	}

	if val == nil || goja.IsUndefined(val) {
		return Response{ID: req.ID, Status: StatusSuccess, Undefined: true}
	}
	if goja.IsNull(val) {
		return success(req.ID, nil)
	}

	out, err := plain(val.Export())
	if err != nil {
		return failure(req.ID, CodeRuntime, err.Error())
	}
	return success(req.ID, out)
}

func (r *Runner) classify(id string, err error) Response {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(error); ok && !errors.Is(v, errTimeout) {
			return failure(id, CodeRuntime, v.Error())
		}
		return failure(id, CodeTimeout, fmt.Sprintf("%v after %s", errTimeout, r.timeout))
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return failure(id, CodeRuntime, exception.Error())
	}

	return failure(id, CodeCompile, err.Error())
}

// plain converts an exported VM value into JSON-shaped Go data: float64
// numbers, map[string]interface{} objects and []interface{} arrays
func plain(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("result is not serializable: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("result is not serializable: %w", err)
	}
	return out, nil
}

// Local runs scripts in-process. Each call still gets its own VM, so calls
// share no state.
type Local struct {
	runner *Runner
}

// NewLocal creates an in-process Executor
func NewLocal(opts ...Option) *Local {
	return &Local{runner: NewRunner(opts...)}
}

// Execute implements Executor
func (l *Local) Execute(ctx context.Context, code string, scope map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.runner.Run(ctx, Request{Code: code, Scope: scope}).Result()
}
