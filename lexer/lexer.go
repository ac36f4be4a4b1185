// Package lexer provides tokenization for Stencil templates
package lexer

import (
	"fmt"

	plexer "github.com/alecthomas/participle/v2/lexer"
)

// Token type names, in match priority order
const (
	Escape    = "Escape"    // \{{ or \@
	Tag       = "Tag"       // {{ ... }}
	Directive = "Directive" // @name or @name(args)
	Text      = "Text"      // anything without a trigger character
	Char      = "Char"      // a lone \, { or @ that starts nothing
)

// Definition is the participle lexer for templates. Every input lexes:
// characters that do not start a token fall through to Char.
var Definition = plexer.MustSimple([]plexer.SimpleRule{
	{Name: Escape, Pattern: `\\(?:\{\{|@)`},
	{Name: Tag, Pattern: `\{\{.+?\}\}`},
	{Name: Directive, Pattern: `@[A-Za-z_][\w.]*(?:\([^()]*\))?`},
	{Name: Text, Pattern: `[^\\{@]+`},
	{Name: Char, Pattern: `[\\{@]`},
})

// Token is a lexed template token with its type name resolved
type Token struct {
	Type    string
	Literal string
	Offset  int
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%s, %q, L%d:C%d}", t.Type, t.Literal, t.Line, t.Column)
}

var typeNames = func() map[plexer.TokenType]string {
	names := make(map[plexer.TokenType]string)
	for name, typ := range Definition.Symbols() {
		names[typ] = name
	}
	return names
}()

// Tokenize returns all tokens from input, without the trailing EOF
func Tokenize(input string) ([]Token, error) {
	lex, err := Definition.LexString("", input)
	if err != nil {
		return nil, err
	}
	raw, err := plexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(raw))
	for _, tok := range raw {
		if tok.EOF() {
			break
		}
		tokens = append(tokens, Token{
			Type:    typeNames[tok.Type],
			Literal: tok.Value,
			Offset:  tok.Pos.Offset,
			Line:    tok.Pos.Line,
			Column:  tok.Pos.Column,
		})
	}
	return tokens, nil
}
