package eval

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrNotExpression is returned for input that Classify does not consider an
// operator expression. Numbers are never re-evaluated and paths are
// resolved by scope lookup instead.
var ErrNotExpression = errors.New("not an expression")

// ExpressionError carries the original expression text of a failed evaluation
type ExpressionError struct {
	Expr string
	Err  error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("evaluate %q: %v", e.Expr, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// allowedBuiltins are the expr builtins re-enabled after disabling all of them
var allowedBuiltins = []string{
	"abs", "ceil", "floor", "round", "max", "min", "sum", "mean",
	"len", "upper", "lower", "trim", "trimPrefix", "trimSuffix",
	"split", "join", "replace", "repeat", "indexOf", "hasPrefix", "hasSuffix",
	"int", "float", "string", "toJSON", "fromJSON",
	"first", "last", "keys", "values", "reverse", "sort",
}

// helpers are extra functions bound next to the scope variables
var helpers = map[string]interface{}{
	"parseNumber": func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("parseNumber: want 1 argument, got %d", len(params))
		}
		return ParseNumber(fmt.Sprint(params[0])), nil
	},
	"toFixed": func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("toFixed: want 2 arguments, got %d", len(params))
		}
		x, ok := toFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("toFixed: %v is not a number", params[0])
		}
		digits, ok := toFloat(params[1])
		if !ok || digits < 0 {
			return nil, fmt.Errorf("toFixed: invalid digits %v", params[1])
		}
		return strconv.FormatFloat(x, 'f', int(digits), 64), nil
	},
}

// fmod backs the % operator: numbers of any kind, remainder with the sign
// of the dividend
func fmod(params ...interface{}) (interface{}, error) {
	x, okx := toFloat(params[0])
	y, oky := toFloat(params[1])
	if !okx || !oky {
		return nil, fmt.Errorf("invalid operation: %T %% %T", params[0], params[1])
	}
	return math.Mod(x, y), nil
}

// strcat backs + when one side is a string: the other side is joined in
// its text form
func strcat(params ...interface{}) (interface{}, error) {
	return text(params[0]) + text(params[1]), nil
}

func text(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := toFloat(v); ok {
		return FormatNumber(f)
	}
	return fmt.Sprint(v)
}

// Evaluator runs bounded arithmetic/boolean expressions against a scope.
// Only the allow-listed builtins, the helpers and the scope variables are
// reachable; there is no access to the process, files or network.
type Evaluator struct {
	options []expr.Option
}

// NewEvaluator creates a new Evaluator
func NewEvaluator() *Evaluator {
	opts := []expr.Option{expr.DisableAllBuiltins()}
	for _, name := range allowedBuiltins {
		opts = append(opts, expr.EnableBuiltin(name))
	}
	opts = append(opts,
		expr.Function("fmod", fmod, new(func(interface{}, interface{}) float64)),
		expr.Operator("%", "fmod"),
		expr.Function("strcat", strcat,
			new(func(string, interface{}) string),
			new(func(interface{}, string) string),
		),
		expr.Operator("+", "strcat"),
	)
	return &Evaluator{options: opts}
}

// Evaluate evaluates expression against scope. Any failure is returned as
// *ExpressionError holding the original text.
func (e *Evaluator) Evaluate(expression string, scope Scope) (interface{}, error) {
	expression = strings.TrimSpace(expression)
	if Classify(expression) != KindExpression {
		return nil, &ExpressionError{Expr: expression, Err: ErrNotExpression}
	}

	source, env := bindScope(expression, scope)

	opts := append([]expr.Option{expr.Env(env)}, e.options...)
	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, &ExpressionError{Expr: expression, Err: err}
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, &ExpressionError{Expr: expression, Err: err}
	}
	return normalize(result), nil
}

// bindScope builds the evaluation environment. Identifier-shaped names are
// bound directly; any other name (user-id, a.b) is substituted in the source
// by a generated alias, longest name first and only at word boundaries.
func bindScope(expression string, scope Scope) (string, map[string]interface{}) {
	env := make(map[string]interface{}, len(scope)+len(helpers))
	for name, fn := range helpers {
		env[name] = fn
	}

	var odd []string
	for name, val := range scope {
		if IsIdentifier(name) {
			env[name] = val
		} else if name != "" {
			odd = append(odd, name)
		}
	}
	if len(odd) == 0 {
		return expression, env
	}

	sort.Slice(odd, func(i, j int) bool {
		if len(odd[i]) != len(odd[j]) {
			return len(odd[i]) > len(odd[j])
		}
		return odd[i] < odd[j]
	})
	for i, name := range odd {
		alias := fmt.Sprintf("__v%d", i)
		replaced, n := replaceWord(expression, name, alias)
		if n > 0 {
			expression = replaced
			env[alias] = scope[name]
		}
	}
	return expression, env
}

// replaceWord replaces occurrences of word not embedded in a longer
// identifier. Quoted string literals are copied unchanged.
func replaceWord(s, word, repl string) (string, int) {
	var sb strings.Builder
	count := 0
	var quote byte
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' && i+1 < len(s) {
				sb.WriteString(s[i : i+2])
				i += 2
				continue
			}
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case strings.HasPrefix(s[i:], word) &&
			(i == 0 || !isWordChar(s[i-1])) &&
			(i+len(word) == len(s) || !isWordChar(s[i+len(word)])):
			sb.WriteString(repl)
			count++
			i += len(word)
			continue
		}
		sb.WriteByte(ch)
		i++
	}
	return sb.String(), count
}

func isWordChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '_' || ch == '$' || ch == '.'
}

// normalize folds Go integer kinds into float64 so evaluated numbers compare
// equal to number-typed variables
func normalize(v interface{}) interface{} {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// FormatNumber renders f the way it reads in text: integral values have no
// fraction, NaN and infinities are spelled out, very large or small
// magnitudes use exponent form.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	s = strings.Replace(s, "e+0", "e+", 1)
	s = strings.Replace(s, "e-0", "e-", 1)
	return s
}

// ParseNumber converts text the way a number-typed variable is decoded:
// blank text is 0, anything unparsable is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(i)
	}
	return math.NaN()
}
