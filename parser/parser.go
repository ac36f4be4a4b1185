// Package parser 提供 Stencil 模板的解析功能
// 模板由普通文本、{{ }} 标签、@ 指令和转义序列组成
package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	plexer "github.com/alecthomas/participle/v2/lexer"

	"github.com/LingHeChen/stencil/ast"
	"github.com/LingHeChen/stencil/lexer"
)

// ---------------------------------------------------------
// 语法定义
// ---------------------------------------------------------

// document 表示模板的根结构
type document struct {
	Segments []*segment `parser:"@@*"`
}

// segment 表示一个模板片段
type segment struct {
	Pos plexer.Position

	Escape    *string `parser:"  @Escape"`
	Tag       *string `parser:"| @Tag"`
	Directive *string `parser:"| @Directive"`
	Text      *string `parser:"| @(Text | Char)"` // 孤立的 \ { @ 也作为文本
}

// ---------------------------------------------------------
// 公开 API
// ---------------------------------------------------------

// Parser 模板解析器
type Parser struct {
	parser *participle.Parser[document]
}

// 全局单例解析器（避免重复初始化）
var defaultParser *Parser
var defaultParserErr error

func init() {
	p, err := participle.Build[document](
		participle.Lexer(lexer.Definition),
	)
	if err != nil {
		defaultParserErr = err
		return
	}
	defaultParser = &Parser{parser: p}
}

// New 返回全局解析器实例（单例模式）
func New() (*Parser, error) {
	if defaultParserErr != nil {
		return nil, defaultParserErr
	}
	return defaultParser, nil
}

// MustNew 同 New，初始化失败时 panic
func MustNew() *Parser {
	p, err := New()
	if err != nil {
		panic(fmt.Sprintf("template parser: %v", err))
	}
	return p
}

// Parse 解析模板字符串，返回 AST
func (p *Parser) Parse(input string) (*ast.Template, error) {
	doc, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return toTemplate(input, doc), nil
}

// toTemplate 将语法树转换为 ast.Template，相邻文本合并为一个节点
func toTemplate(source string, doc *document) *ast.Template {
	tpl := &ast.Template{Source: source}

	var text *ast.Text
	var sb strings.Builder
	flush := func() {
		if text != nil {
			text.Value = sb.String()
			tpl.Segments = append(tpl.Segments, text)
			text = nil
			sb.Reset()
		}
	}

	for _, seg := range doc.Segments {
		pos := ast.Position{Offset: seg.Pos.Offset, Line: seg.Pos.Line, Column: seg.Pos.Column}
		switch {
		case seg.Text != nil:
			if text == nil {
				text = &ast.Text{Position: pos}
			}
			sb.WriteString(*seg.Text)
		case seg.Tag != nil:
			flush()
			tpl.Segments = append(tpl.Segments, ast.NewTag(pos, *seg.Tag))
		case seg.Directive != nil:
			flush()
			tpl.Segments = append(tpl.Segments, &ast.Directive{Position: pos, Raw: *seg.Directive})
		case seg.Escape != nil:
			flush()
			tpl.Segments = append(tpl.Segments, &ast.Escaped{Position: pos, Raw: *seg.Escape})
		}
	}
	flush()

	return tpl
}

// ParseString 使用全局解析器解析模板
func ParseString(input string) (*ast.Template, error) {
	p, err := New()
	if err != nil {
		return nil, err
	}
	return p.Parse(input)
}
