// Package variable holds typed variable declarations and decodes them into
// the flat scope the template engine resolves against.
package variable

// Type is the declared type of a variable
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
	TypeAny     Type = "any"
	TypeFile    Type = "file"
)

// Scope is where a variable was declared
type Scope string

const (
	ScopeSession     Scope = "session"
	ScopeProject     Scope = "project"
	ScopeEnvironment Scope = "environment"
	ScopeGlobal      Scope = "global"
)

// Rank orders scopes by precedence: a higher rank overrides a lower one.
// Unknown scopes rank below global.
func (s Scope) Rank() int {
	switch s {
	case ScopeSession:
		return 4
	case ScopeProject:
		return 3
	case ScopeEnvironment:
		return 2
	case ScopeGlobal:
		return 1
	default:
		return 0
	}
}

// FileRef points at a file on disk. Only the path reaches the scope.
type FileRef struct {
	Path string `yaml:"path" json:"path"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Variable is one declaration
type Variable struct {
	Name     string   `yaml:"name" json:"name"`
	Type     Type     `yaml:"type,omitempty" json:"type,omitempty"`
	Value    string   `yaml:"value,omitempty" json:"value,omitempty"`
	File     *FileRef `yaml:"file,omitempty" json:"file,omitempty"`
	Scope    Scope    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// String creates a string-typed variable
func String(name, value string) Variable {
	return Variable{Name: name, Type: TypeString, Value: value}
}

// Number creates a number-typed variable from its stored text
func Number(name, value string) Variable {
	return Variable{Name: name, Type: TypeNumber, Value: value}
}

// Boolean creates a boolean-typed variable from its stored text
func Boolean(name, value string) Variable {
	return Variable{Name: name, Type: TypeBoolean, Value: value}
}

// Any creates a variable whose value is computed by running code
func Any(name, code string) Variable {
	return Variable{Name: name, Type: TypeAny, Value: code}
}
