package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain text", "hello world", []string{Text}},
		{"single tag", "{{name}}", []string{Tag}},
		{"mixed", "Bearer {{token}}!", []string{Text, Tag, Text}},
		{"escaped tag", `\{{name}}`, []string{Escape, Text}},
		{"escaped marker", `\@name`, []string{Escape, Text}},
		{"directive", "id=@guid", []string{Text, Directive}},
		{"directive with args", "@integer(1,10) items", []string{Directive, Text}},
		{"lone brace", "{a}", []string{Char, Text}},
		{"lone backslash", `a\b`, []string{Text, Char, Text}},
		{"unclosed tag", "{{name", []string{Char, Char, Text}},
		{"empty tag is text", "{{}}", []string{Char, Char, Text}},
		{"two tags", "{{a}}-{{b}}", []string{Tag, Text, Tag}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, types(tokens))
		})
	}
}

func TestTokenizeKeepsEverything(t *testing.T) {
	input := `user {{ user.name }} \{{raw}} mail@host {x} @pick(a,b)`
	tokens, err := Tokenize(input)
	require.NoError(t, err)

	var rebuilt string
	for _, tok := range tokens {
		rebuilt += tok.Literal
	}
	assert.Equal(t, input, rebuilt)
}

func TestTokenPositions(t *testing.T) {
	tokens, err := Tokenize("a\n{{b}}")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 1, tokens[1].Column)
	assert.Equal(t, 2, tokens[1].Offset)
}
