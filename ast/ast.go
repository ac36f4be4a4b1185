// Package ast defines the syntax tree of a Stencil template
package ast

import "strings"

// Node is the base interface for all AST nodes
type Node interface {
	nodeType() string
	Pos() Position
}

// Position represents a location in the template source
type Position struct {
	Offset int
	Line   int
	Column int
}

// ---------------------------------------------------------
// Template (root node)
// ---------------------------------------------------------

// Template is a parsed template string
type Template struct {
	Source   string
	Segments []Segment
}

func (t *Template) nodeType() string { return "Template" }
func (t *Template) Pos() Position {
	if len(t.Segments) > 0 {
		return t.Segments[0].Pos()
	}
	return Position{Line: 1, Column: 1}
}

// SingleTag reports whether the template is exactly one {{ }} tag once
// surrounding whitespace is ignored. Only such templates may resolve to a
// non-string value.
func (t *Template) SingleTag() (*Tag, bool) {
	var tag *Tag
	for _, seg := range t.Segments {
		switch s := seg.(type) {
		case *Tag:
			if tag != nil {
				return nil, false
			}
			tag = s
		case *Text:
			if strings.TrimSpace(s.Value) != "" {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return tag, tag != nil
}

// Tags returns every {{ }} tag in source order
func (t *Template) Tags() []*Tag {
	var tags []*Tag
	for _, seg := range t.Segments {
		if tag, ok := seg.(*Tag); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ---------------------------------------------------------
// Segments
// ---------------------------------------------------------

// Segment is the interface for all top-level pieces of a template
type Segment interface {
	Node
	segmentNode()
}

// Text: plain characters copied to the output
type Text struct {
	Position Position
	Value    string
}

func (s *Text) nodeType() string { return "Text" }
func (s *Text) Pos() Position    { return s.Position }
func (s *Text) segmentNode()     {}

// Tag: {{ expression }}
type Tag struct {
	Position Position
	Raw      string // full matched text including delimiters
	Expr     string // inner text, trimmed
}

func (s *Tag) nodeType() string { return "Tag" }
func (s *Tag) Pos() Position    { return s.Position }
func (s *Tag) segmentNode()     {}

// Directive: a bare @name(...) outside of a tag
type Directive struct {
	Position Position
	Raw      string
}

func (s *Directive) nodeType() string { return "Directive" }
func (s *Directive) Pos() Position    { return s.Position }
func (s *Directive) segmentNode()     {}

// Name returns the directive name without marker and arguments
func (s *Directive) Name() string {
	name := strings.TrimPrefix(s.Raw, Marker)
	if idx := strings.Index(name, "("); idx != -1 {
		name = name[:idx]
	}
	return name
}

// Escaped: \{{ or \@, rendered without the escape marker
type Escaped struct {
	Position Position
	Raw      string // e.g. `\{{`
}

func (s *Escaped) nodeType() string { return "Escaped" }
func (s *Escaped) Pos() Position    { return s.Position }
func (s *Escaped) segmentNode()     {}

// Literal returns the escaped trigger with the escape marker stripped
func (s *Escaped) Literal() string {
	return strings.TrimPrefix(s.Raw, EscapeMarker)
}

// ---------------------------------------------------------
// Syntax constants
// ---------------------------------------------------------

const (
	OpenDelim    = "{{"
	CloseDelim   = "}}"
	Marker       = "@"
	EscapeMarker = `\`
)

// NewTag builds a Tag from its raw matched text
func NewTag(pos Position, raw string) *Tag {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, OpenDelim), CloseDelim)
	return &Tag{Position: pos, Raw: raw, Expr: strings.TrimSpace(inner)}
}

// IsMock reports whether the tag asks for generated data
func (s *Tag) IsMock() bool {
	return strings.HasPrefix(s.Expr, Marker)
}
