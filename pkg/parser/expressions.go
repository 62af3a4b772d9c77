package parser

import (
	"strconv"

	"poly/pkg/ast"
	"poly/pkg/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	// A widget block leaves the parser on its DEDENT (or on a skipped
	// NEWLINE); nothing may continue the expression after that.
	for !p.peekTokenIs(token.NEWLINE) && !p.curTokenIs(token.NEWLINE) && !p.curTokenIs(token.DEDENT) &&
		precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.errorAt(p.curToken, "could not parse %q as integer", p.curToken.Literal)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}

	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorAt(p.curToken, "could not parse %q as float", p.curToken.Literal)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNone() ast.Expression {
	return &ast.NoneLiteral{Token: p.curToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}

	p.nextToken()

	expression.Right = p.parseExpression(PREFIX)
	if expression.Right == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)
	if expression.Right == nil {
		return nil
	}

	return expression
}

// parsePowerExpression binds to the right: 2 ** 3 ** 2 is 2 ** (3 ** 2).
func (p *Parser) parsePowerExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}

	p.nextToken()
	expression.Right = p.parseExpression(POWER - 1)
	if expression.Right == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseTernaryExpression(consequence ast.Expression) ast.Expression {
	expression := &ast.TernaryExpression{Token: p.curToken, Consequence: consequence}

	p.nextToken()
	expression.Condition = p.parseExpression(TERNARY)
	if expression.Condition == nil {
		return nil
	}

	if !p.expectPeek(token.ELSE) {
		return nil
	}

	p.nextToken()
	expression.Alternative = p.parseExpression(LOWEST)
	if expression.Alternative == nil {
		return nil
	}

	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nesting++
	defer func() { p.nesting-- }()

	p.nextToken()

	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	return exp
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curToken, Function: function}

	args, keywords, ok := p.parseCallArguments()
	if !ok {
		return nil
	}
	exp.Arguments = args
	exp.Keywords = keywords

	if ident, isIdent := function.(*ast.Identifier); isIdent && p.peekTokenIs(token.COLON) && !p.inHeader && p.nesting == 0 {
		return p.parseWidgetLiteral(ident, exp)
	}

	return exp
}

// parseCallArguments parses positional then keyword arguments up to the
// closing ')'. A trailing comma is allowed.
func (p *Parser) parseCallArguments() ([]ast.Expression, []*ast.KeywordArgument, bool) {
	p.nesting++
	defer func() { p.nesting-- }()

	args := []ast.Expression{}
	var keywords []*ast.KeywordArgument

	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()

		if p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN) {
			name := p.curToken.Literal
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(LOWEST)
			if value == nil {
				return nil, nil, false
			}
			keywords = append(keywords, &ast.KeywordArgument{Name: name, Value: value})
		} else {
			if len(keywords) > 0 {
				p.errorAt(p.curToken, "Positional argument after keyword argument")
				return nil, nil, false
			}
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil, nil, false
			}
			args = append(args, arg)
		}

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, nil, false
	}

	return args, keywords, true
}

// parseWidgetLiteral turns `Kind(args):` plus an indented block of child
// expressions into a widget node. A leading string argument becomes the
// "text" prop.
func (p *Parser) parseWidgetLiteral(name *ast.Identifier, call *ast.CallExpression) ast.Expression {
	widget := &ast.WidgetLiteral{Token: name.Token, Kind: name.Value}

	if len(call.Arguments) > 0 {
		if s, ok := call.Arguments[0].(*ast.StringLiteral); ok {
			widget.Props = append(widget.Props, &ast.KeywordArgument{Name: "text", Value: s})
		}
	}
	widget.Props = append(widget.Props, call.Keywords...)

	p.nextToken() // ':'

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	if !p.peekTokenIs(token.INDENT) {
		return widget
	}

	p.nextToken()
	p.nextToken() // consume INDENT

	for !p.curTokenIs(token.DEDENT) && !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) {
			p.nextToken()
			continue
		}
		child := p.parseExpression(LOWEST)
		if child == nil {
			return nil
		}
		widget.Children = append(widget.Children, child)
		p.nextToken()
	}

	return widget
}

func (p *Parser) parseMemberExpression(object ast.Expression) ast.Expression {
	expression := &ast.MemberExpression{Token: p.curToken, Object: object}

	if !isName(p.peekToken) {
		p.peekError(token.IDENT)
		return nil
	}
	p.nextToken()

	expression.Property = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return expression
}

// isName accepts identifiers and keywords, so `obj.from` and `obj.self`
// remain valid attribute names.
func isName(tok token.Token) bool {
	if tok.Type == token.IDENT {
		return true
	}
	return token.IsKeyword(tok.Literal) && token.LookupIdent(tok.Literal) == tok.Type
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	p.nesting++
	defer func() { p.nesting-- }()

	expression := &ast.IndexExpression{Token: p.curToken, Left: left}

	p.nextToken()
	expression.Index = p.parseExpression(LOWEST)
	if expression.Index == nil {
		return nil
	}

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}

	return expression
}

func (p *Parser) parseListLiteral() ast.Expression {
	p.nesting++
	defer func() { p.nesting-- }()

	list := &ast.ListLiteral{Token: p.curToken, Elements: []ast.Expression{}}

	if p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		return list
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	if p.peekTokenIs(token.FOR) {
		return p.parseListComprehension(list.Token, first)
	}

	list.Elements = append(list.Elements, first)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.RBRACKET) {
			break
		}
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		list.Elements = append(list.Elements, elem)
	}

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}

	return list
}

// parseListComprehension parses `for v in iterable [if cond]]` after the
// element. The iterable stops short of a ternary so the filter's `if` is
// not taken as one.
func (p *Parser) parseListComprehension(tok token.Token, element ast.Expression) ast.Expression {
	comp := &ast.ListComprehension{Token: tok, Element: element}

	p.nextToken() // 'for'
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	comp.Variable = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.IN) {
		return nil
	}

	p.nextToken()
	comp.Iterable = p.parseExpression(TERNARY)
	if comp.Iterable == nil {
		return nil
	}

	if p.peekTokenIs(token.IF) {
		p.nextToken()
		p.nextToken()
		comp.Condition = p.parseExpression(LOWEST)
		if comp.Condition == nil {
			return nil
		}
	}

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}

	return comp
}

func (p *Parser) parseDictLiteral() ast.Expression {
	p.nesting++
	defer func() { p.nesting-- }()

	dict := &ast.DictLiteral{Token: p.curToken, Pairs: []ast.DictPair{}}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(LOWEST)
		if key == nil {
			return nil
		}

		if !p.expectPeek(token.COLON) {
			return nil
		}

		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}

		dict.Pairs = append(dict.Pairs, ast.DictPair{Key: key, Value: value})

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}

	return dict
}

func (p *Parser) parseLambdaExpression() ast.Expression {
	lambda := &ast.LambdaExpression{Token: p.curToken}

	for !p.peekTokenIs(token.COLON) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		lambda.Parameters = append(lambda.Parameters, &ast.Parameter{
			Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal},
		})
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.COLON) {
		return nil
	}

	p.nextToken()
	lambda.Body = p.parseExpression(LOWEST)
	if lambda.Body == nil {
		return nil
	}

	return lambda
}
