package eval

import (
	"regexp"
	"strings"
)

// Kind is the shape of a token's inner expression
type Kind int

const (
	// KindLiteral is neither a path nor an operator expression, e.g. 42 or 'x'
	KindLiteral Kind = iota
	// KindMock asks the mock generator for data, e.g. @integer(1,10)
	KindMock
	// KindPath is a bare identifier or a dotted property path
	KindPath
	// KindExpression contains operators and needs evaluation
	KindExpression
)

var kindNames = map[Kind]string{
	KindLiteral:    "literal",
	KindMock:       "mock",
	KindPath:       "path",
	KindExpression: "expression",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MockMarker prefixes mock directives
const MockMarker = "@"

var (
	numberRegex = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	pathRegex   = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:\.[\w$]+)*$`)
	identRegex  = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

const operatorChars = "+-*/()%<>=!&|"

// Classify sorts an expression into exactly one Kind
func Classify(expr string) Kind {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, MockMarker):
		return KindMock
	case numberRegex.MatchString(expr):
		return KindLiteral
	case pathRegex.MatchString(expr):
		return KindPath
	case strings.ContainsAny(expr, operatorChars):
		return KindExpression
	default:
		return KindLiteral
	}
}

// IsIdentifier reports whether name can be used verbatim in an expression
func IsIdentifier(name string) bool {
	return identRegex.MatchString(name)
}
