package parser

import (
	"fmt"
	"strings"

	"poly/pkg/ast"
	"poly/pkg/lexer"
)

func (p *Parser) parseFStringLiteral() ast.Expression {
	lit := &ast.FStringLiteral{Token: p.curToken}

	parts, err := splitFString(p.curToken.Literal)
	if err != nil {
		p.errorAt(p.curToken, "%s", err)
		return nil
	}

	lit.Parts = parts
	return lit
}

// splitFString cuts the raw body of an f-string into literal runs and
// embedded expressions. `{{` and `}}` are literal braces.
func splitFString(content string) ([]ast.FStringPart, error) {
	var parts []ast.FStringPart
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, ast.FStringPart{Literal: lexer.Unescape(literal.String())})
			literal.Reset()
		}
	}

	for i := 0; i < len(content); i++ {
		c := content[i]

		switch {
		case c == '{' && i+1 < len(content) && content[i+1] == '{':
			literal.WriteByte('{')
			i++
		case c == '}' && i+1 < len(content) && content[i+1] == '}':
			literal.WriteByte('}')
			i++
		case c == '{':
			depth := 1
			j := i + 1
			for ; j < len(content); j++ {
				if content[j] == '{' {
					depth++
				} else if content[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated expression in f-string")
			}

			expr, err := parseEmbedded(lexer.Unescape(content[i+1 : j]))
			if err != nil {
				return nil, err
			}
			flush()
			parts = append(parts, ast.FStringPart{Expr: expr})
			i = j
		default:
			literal.WriteByte(c)
		}
	}

	flush()
	return parts, nil
}

func parseEmbedded(src string) (ast.Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression in f-string")
	}

	p := New(lexer.New(src))
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid f-string expression %q: %s", src, errs[0])
	}
	return expr, nil
}
