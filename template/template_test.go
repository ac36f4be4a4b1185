package template

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LingHeChen/stencil/eval"
	"github.com/LingHeChen/stencil/mock"
	"github.com/LingHeChen/stencil/sandbox"
	"github.com/LingHeChen/stencil/variable"
)

func newTestEngine(opts ...Option) *Engine {
	base := []Option{WithGenerator(mock.New(mock.WithSeed(7)))}
	return New(append(base, opts...)...)
}

// stubExecutor records calls and answers with a fixed result
type stubExecutor struct {
	mu    sync.Mutex
	calls []string
	val   interface{}
	err   error
	panic bool
}

func (s *stubExecutor) Execute(_ context.Context, code string, _ map[string]interface{}) (interface{}, error) {
	s.mu.Lock()
	s.calls = append(s.calls, code)
	s.mu.Unlock()
	if s.panic {
		panic("executor exploded")
	}
	return s.val, s.err
}

// ---------------------------------------------------------
// Resolve
// ---------------------------------------------------------

func TestResolveSingleTagKeepsNativeType(t *testing.T) {
	e := newTestEngine()
	scope := eval.Scope{
		"name":  "ada",
		"count": 5.0,
		"on":    true,
		"none":  nil,
		"user":  map[string]interface{}{"id": 7.0},
	}

	tests := []struct {
		tpl  string
		want interface{}
	}{
		{"{{name}}", "ada"},
		{"{{count}}", 5.0},
		{"  {{ count }} ", 5.0},
		{"{{on}}", true},
		{"{{none}}", nil},
		{"{{user}}", map[string]interface{}{"id": 7.0}},
		{"{{user.id}}", 7.0},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Resolve(tt.tpl, scope))
		})
	}
}

func TestResolveMixedTextIsString(t *testing.T) {
	e := newTestEngine()
	scope := eval.Scope{
		"a":     "x",
		"b":     "y",
		"count": 5.0,
		"ratio": 2.5,
		"none":  nil,
		"obj":   map[string]interface{}{"k": "<v>"},
		"list":  []interface{}{1.0, "two"},
	}

	tests := []struct {
		tpl  string
		want string
	}{
		{"{{a}}-{{b}}", "x-y"},
		{"n={{count}}", "n=5"},
		{"r={{ratio}}", "r=2.5"},
		{"v={{none}}", "v=null"},
		{"o={{obj}}", `o={"k":"<v>"}`},
		{"l={{list}}", `l=[1,"two"]`},
		{"{{count}}{{count}}", "55"},
		{"sum={{ count * 2 }}", "sum=10"},
	}
	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Resolve(tt.tpl, scope))
		})
	}
}

func TestResolveWithoutTokensIsUnchanged(t *testing.T) {
	e := newTestEngine()
	for _, tpl := range []string{"", "plain text", "a { b } c", "mail me@example.com", "{{}}", "{ {x} }"} {
		assert.Equal(t, tpl, e.Resolve(tpl, eval.Scope{"x": 1.0}), tpl)
	}
}

func TestResolveUnknownIsStable(t *testing.T) {
	e := newTestEngine()

	for _, tpl := range []string{"{{doesNotExist}}", "Hi {{doesNotExist}}!", "{{ a.b.c }}", "{{ 'quoted' }}"} {
		first := e.Resolve(tpl, eval.Scope{})
		assert.Equal(t, tpl, first)
		assert.Equal(t, first, e.Resolve(first.(string), eval.Scope{}))
	}
}

func TestResolveEscapes(t *testing.T) {
	e := newTestEngine()
	scope := eval.Scope{"name": "ada"}

	assert.Equal(t, "{{name}}", e.Resolve(`\{{name}}`, scope))
	assert.Equal(t, "{{name}} is ada", e.Resolve(`\{{name}} is {{name}}`, scope))
	assert.Equal(t, "@integer(1,2)", e.Resolve(`\@integer(1,2)`, scope))
	assert.Equal(t, `a\b`, e.Resolve(`a\b`, scope))
}

func TestResolveArithmetic(t *testing.T) {
	e := newTestEngine()

	assert.Equal(t, 5.0, e.Resolve("{{ 2 + 3 }}", eval.Scope{}))
	assert.Equal(t, true, e.Resolve("{{ count > 3 }}", eval.Scope{"count": 5.0}))
	assert.Equal(t, 6.0, e.Resolve("{{ user-id * 2 }}", eval.Scope{"user-id": 3.0}))
}

func TestResolveFailedExpressionLeavesText(t *testing.T) {
	e := newTestEngine()

	assert.Equal(t, "{{ 1 + }}", e.Resolve("{{ 1 + }}", eval.Scope{}))
	assert.Equal(t, "x={{ missing * 2 }}", e.Resolve("x={{ missing * 2 }}", eval.Scope{}))
}

func TestResolveExactKeyBeatsExpression(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, "abc", e.Resolve("{{user-id}}", eval.Scope{"user-id": "abc"}))
}

func TestResolveNeverGeneratesMockData(t *testing.T) {
	e := newTestEngine()

	assert.Equal(t, "{{@integer(1,1)}}", e.Resolve("{{@integer(1,1)}}", eval.Scope{}))
	assert.Equal(t, "id={{@guid}} @name", e.Resolve("id={{@guid}} @name", eval.Scope{}))
}

// ---------------------------------------------------------
// Compile
// ---------------------------------------------------------

func TestCompileMockDirective(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	assert.Equal(t, 1.0, e.Compile(ctx, "{{@integer(1,1)}}", nil, nil))
	assert.Equal(t, "n=1", e.Compile(ctx, "n={{@integer(1,1)}}", nil, nil))
	assert.Equal(t, "{{@integr(1,1)}}", e.Compile(ctx, "{{@integr(1,1)}}", nil, nil))

	name, ok := e.Compile(ctx, "{{@person.fullName}}", nil, nil).(string)
	require.True(t, ok)
	assert.NotEmpty(t, name)
}

func TestSyncAndAsyncDivergeOnMock(t *testing.T) {
	e := newTestEngine()
	tpl := "{{@integer(1,1)}}"

	assert.Equal(t, tpl, e.Resolve(tpl, eval.Scope{}))
	assert.Equal(t, 1.0, e.Compile(context.Background(), tpl, nil, nil))
}

func TestCompileBareDirectivePassesThrough(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, "send @integer(1,1) now", e.Compile(context.Background(), "send @integer(1,1) now", nil, nil))
}

func TestCompileVariables(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	vars := []variable.Variable{
		variable.String("host", "api.example.com"),
		variable.Number("count", "5"),
		variable.Boolean("debug", "true"),
		{Name: "nothing", Type: variable.TypeNull},
	}

	assert.Equal(t, 5.0, e.Compile(ctx, "{{count}}", vars, nil))
	assert.Equal(t, true, e.Compile(ctx, "{{debug}}", vars, nil))
	assert.Nil(t, e.Compile(ctx, "{{nothing}}", vars, nil))
	assert.Equal(t, "https://api.example.com/items?n=5", e.Compile(ctx, "https://{{host}}/items?n={{count}}", vars, nil))
	assert.Equal(t, "{{host}}", e.Compile(ctx, `\{{host}}`, vars, nil))
}

func TestCompileLocalContextAndPaths(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	local := map[string]interface{}{
		"token": "t-1",
		"user":  map[string]interface{}{"tags": []interface{}{"a", "b"}},
	}

	assert.Equal(t, "t-1", e.Compile(ctx, "{{_local.token}}", nil, local))
	assert.Equal(t, "b", e.Compile(ctx, "{{_local.user.tags.1}}", nil, local))
	assert.Equal(t, "{{_local.user.missing.deep}}", e.Compile(ctx, "{{_local.user.missing.deep}}", nil, local))
}

func TestCompileExpressionUsesSandbox(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	vars := []variable.Variable{variable.Number("count", "5")}

	assert.Equal(t, 5.0, e.Compile(ctx, "{{ 2 + 3 }}", nil, nil))
	assert.Equal(t, "COUNT", e.Compile(ctx, `{{ "count".toUpperCase() }}`, vars, nil))
	assert.Equal(t, "x=10", e.Compile(ctx, "x={{ count * 2 }}", vars, nil))
	assert.Equal(t, "{{ nosuch() }}", e.Compile(ctx, "{{ nosuch() }}", nil, nil))
	assert.Equal(t, "{{ undefined }}", e.Compile(ctx, "{{ undefined }}", nil, nil))
}

func TestCompileWithoutSandbox(t *testing.T) {
	e := newTestEngine(WithExecutor(nil))
	ctx := context.Background()

	assert.Equal(t, "{{ 2 + 3 }}", e.Compile(ctx, "{{ 2 + 3 }}", nil, nil))
	// other tokens still resolve
	assert.Equal(t, "a-{{ 1 + 1 }}", e.Compile(ctx, "{{name}}-{{ 1 + 1 }}", []variable.Variable{variable.String("name", "a")}, nil))
}

func TestCompileSandboxFailureIsUnresolved(t *testing.T) {
	exec := &stubExecutor{err: &sandbox.ChannelError{Code: sandbox.CodeUnavailable, Message: "gone"}}
	e := newTestEngine(WithExecutor(exec))

	assert.Equal(t, "v={{ 1 + 1 }}", e.Compile(context.Background(), "v={{ 1 + 1 }}", nil, nil))
	assert.Equal(t, []string{"1 + 1"}, exec.calls)
}

func TestCompileSkipsFailingAnyVariable(t *testing.T) {
	exec := &stubExecutor{err: errors.New("boom")}
	e := newTestEngine(WithExecutor(exec))
	vars := []variable.Variable{
		variable.String("name", "ada"),
		variable.Any("broken", "throw 1"),
	}

	assert.Equal(t, "ada {{broken}}", e.Compile(context.Background(), "{{name}} {{broken}}", vars, nil))
}

func TestCompileStrictFlattenReturnsTemplate(t *testing.T) {
	exec := &stubExecutor{err: errors.New("boom")}
	e := newTestEngine(WithExecutor(exec), WithFlattenOptions(variable.FlattenOptions{Strict: true}))
	vars := []variable.Variable{
		variable.String("name", "ada"),
		variable.Any("broken", "throw 1"),
	}

	assert.Equal(t, "{{name}}", e.Compile(context.Background(), "{{name}}", vars, nil))
}

func TestCompileRecoversFromPanics(t *testing.T) {
	e := newTestEngine(WithExecutor(&stubExecutor{panic: true}))
	tpl := "a {{ 1 + 1 }} b"

	assert.Equal(t, tpl, e.Compile(context.Background(), tpl, nil, nil))
}

func TestCompileRecoversFromPanicsWhileFlattening(t *testing.T) {
	e := newTestEngine(WithExecutor(&stubExecutor{panic: true}))
	vars := []variable.Variable{
		variable.String("name", "ada"),
		variable.Any("x", "1"),
	}

	assert.Equal(t, "{{name}}", e.Compile(context.Background(), "{{name}}", vars, nil))

	templates := map[string]string{"a": "{{name}}", "b": "plain"}
	assert.Equal(t, map[string]interface{}{"a": "{{name}}", "b": "plain"},
		e.CompileAll(context.Background(), templates, vars, nil))
}

func TestResolveAndCompileAgreeOnMixedOperands(t *testing.T) {
	e := newTestEngine()
	vars := []variable.Variable{variable.Number("count", "5")}
	scope := eval.Scope{"count": 5.0}

	tests := []struct {
		tpl  string
		want interface{}
	}{
		{"{{ count % 2 }}", 1.0},
		{`{{ "id-" + count }}`, "id-5"},
		{`{{ count + "px" }}`, "5px"},
	}

	for _, tt := range tests {
		t.Run(tt.tpl, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Resolve(tt.tpl, scope))
			assert.Equal(t, tt.want, e.Compile(context.Background(), tt.tpl, vars, nil))
		})
	}
}

func TestResolveKeepsQuotedNames(t *testing.T) {
	e := newTestEngine()
	scope := eval.Scope{"user-id": 3.0, "name": "x"}

	assert.Equal(t, "user-idx", e.Resolve(`{{ "user-id" + name }}`, scope))
}

func TestCompileResolvesRepeatedTokensPerPosition(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, "1-3", e.Compile(context.Background(), "{{@increment}}-{{@increment(2)}}", nil, nil))
	assert.Equal(t, "4-5", e.Compile(context.Background(), "{{@increment}}-{{@increment}}", nil, nil))
}

func TestCompileAll(t *testing.T) {
	e := newTestEngine()
	vars := []variable.Variable{
		variable.String("host", "api.example.com"),
		variable.Number("page", "2"),
	}
	templates := map[string]string{
		"url":    "https://{{host}}/items",
		"page":   "{{page}}",
		"id":     "{{@integer(9,9)}}",
		"plain":  "text",
		"broken": "{{nope}}",
	}

	got := e.CompileAll(context.Background(), templates, vars, nil)
	assert.Equal(t, map[string]interface{}{
		"url":    "https://api.example.com/items",
		"page":   2.0,
		"id":     9.0,
		"plain":  "text",
		"broken": "{{nope}}",
	}, got)
}

func TestCompileValue(t *testing.T) {
	e := newTestEngine()
	scope, err := e.NewScope(context.Background(), []variable.Variable{variable.Number("count", "5")}, nil)
	require.NoError(t, err)

	body := map[string]interface{}{
		"count": "{{count}}",
		"label": "n={{count}}",
		"items": []interface{}{"{{count}}", 1.0, true},
	}
	got := e.CompileValue(context.Background(), body, scope)
	assert.Equal(t, map[string]interface{}{
		"count": 5.0,
		"label": "n=5",
		"items": []interface{}{5.0, 1.0, true},
	}, got)
}

func TestConcurrentResolution(t *testing.T) {
	e := newTestEngine()
	vars := []variable.Variable{variable.Number("n", "3")}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 3.0, e.Compile(context.Background(), "{{n}}", vars, nil))
			assert.Equal(t, 6.0, e.Resolve("{{ n * 2 }}", eval.Scope{"n": 3.0}))
		}()
	}
	wg.Wait()
}

// ---------------------------------------------------------
// Stringify
// ---------------------------------------------------------

func TestStringify(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "null"},
		{"s", "s"},
		{true, "true"},
		{5.0, "5"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{42, "42"},
		{map[string]interface{}{"a": 1.0}, `{"a":1}`},
		{[]interface{}{"x", nil}, `["x",null]`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stringify(tt.in))
	}
}
