package parser

import (
	"fmt"

	"poly/pkg/ast"
	"poly/pkg/lexer"
	"poly/pkg/token"
)

const (
	_ int = iota
	LOWEST
	TERNARY     // x if c else y
	OR          // or
	AND         // and
	EQUALS      // ==
	LESSGREATER // > or < or in
	SUM         // +
	PRODUCT     // *
	POWER       // **
	PREFIX      // -X or not X
	CALL        // myFunction(X), x[i], x.y
)

var precedences = map[token.TokenType]int{
	token.IF:        TERNARY,
	token.OR:        OR,
	token.AND:       AND,
	token.EQ:        EQUALS,
	token.NOT_EQ:    EQUALS,
	token.LT:        LESSGREATER,
	token.GT:        LESSGREATER,
	token.LTE:       LESSGREATER,
	token.GTE:       LESSGREATER,
	token.IN:        LESSGREATER,
	token.PLUS:      SUM,
	token.MINUS:     SUM,
	token.SLASH:     PRODUCT,
	token.ASTERISK:  PRODUCT,
	token.FLOOR_DIV: PRODUCT,
	token.PERCENT:   PRODUCT,
	token.POWER:     POWER,
	token.LPAREN:    CALL,
	token.LBRACKET:  CALL,
	token.DOT:       CALL,
}

var compoundOperators = map[token.TokenType]string{
	token.PLUS_ASSIGN:     "+",
	token.MINUS_ASSIGN:    "-",
	token.ASTERISK_ASSIGN: "*",
	token.SLASH_ASSIGN:    "/",
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	// A call followed by ':' is a widget only outside compound headers
	// and outside any bracket.
	inHeader bool
	nesting  int
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.SELF, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.FSTRING, p.parseFStringLiteral)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACE, p.parseDictLiteral)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)
	p.registerPrefix(token.LAMBDA, p.parseLambdaExpression)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NONE, p.parseNone)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, op := range []token.TokenType{
		token.PLUS, token.MINUS, token.SLASH, token.ASTERISK, token.FLOOR_DIV, token.PERCENT,
		token.EQ, token.NOT_EQ, token.LT, token.GT, token.LTE, token.GTE,
		token.AND, token.OR, token.IN,
	} {
		p.registerInfix(op, p.parseInfixExpression)
	}
	p.registerInfix(token.POWER, p.parsePowerExpression)
	p.registerInfix(token.IF, p.parseTernaryExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parseMemberExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseProgram parses statements until EOF. Parsing stops at the first
// error; callers must check Errors before using the program.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	program.Statements = []ast.Statement{}

	for p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			break
		}
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

// ParseExpression parses a single expression from the current position.
func (p *Parser) ParseExpression() ast.Expression {
	for p.curTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	exp := p.parseExpression(LOWEST)
	if len(p.errors) > 0 {
		return nil
	}
	if !p.peekTokenIs(token.EOF) && !p.peekTokenIs(token.NEWLINE) {
		p.errorAt(p.peekToken, "unexpected %s after expression", describe(p.peekToken))
		return nil
	}
	return exp
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.NEWLINE:
		return nil
	case token.LET:
		return p.parseLetStatement()
	case token.FN, token.DEF:
		return p.parseFunctionStatement()
	case token.CLASS:
		return p.parseClassStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.IMPORT:
		return p.parseImportStatement()
	case token.FROM:
		return p.parseFromImportStatement()
	case token.PASS:
		stmt := &ast.PassStatement{Token: p.curToken}
		p.skipTerminator()
		return stmt
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		p.skipTerminator()
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		p.skipTerminator()
		return stmt
	case token.TRY:
		return p.parseTryStatement()
	case token.RAISE:
		return p.parseRaiseStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) skipTerminator() {
	if p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.ASSIGN) {
		return nil
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}

	p.skipTerminator()
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.DEDENT) || p.peekTokenIs(token.EOF) {
		p.skipTerminator()
		return stmt
	}

	p.nextToken()
	stmt.ReturnValue = p.parseExpression(LOWEST)
	if stmt.ReturnValue == nil {
		return nil
	}

	p.skipTerminator()
	return stmt
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	prev := p.inHeader
	p.inHeader = true
	params, ok := p.parseFunctionParameters()
	p.inHeader = prev
	if !ok {
		return nil
	}
	stmt.Parameters = params

	// Optional return annotation, ignored: `-> Type`
	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		if !p.peekTokenIs(token.IDENT) && !p.peekTokenIs(token.NONE) {
			p.peekError(token.IDENT)
			return nil
		}
		p.nextToken()
	}

	if !p.expectPeek(token.COLON) {
		return nil
	}

	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}

	return stmt
}

// parseFunctionParameters parses `(a, b=1)` starting at '(' and leaves the
// parser on ')'.
func (p *Parser) parseFunctionParameters() ([]*ast.Parameter, bool) {
	params := []*ast.Parameter{}
	seenDefault := false

	for !p.peekTokenIs(token.RPAREN) {
		if !p.peekTokenIs(token.IDENT) && !p.peekTokenIs(token.SELF) {
			p.peekError(token.IDENT)
			return nil, false
		}
		p.nextToken()

		param := &ast.Parameter{Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}}

		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			param.Default = p.parseExpression(LOWEST)
			if param.Default == nil {
				return nil, false
			}
			seenDefault = true
		} else if seenDefault {
			p.errorAt(p.curToken, "Non-default parameter '%s' follows default parameter", param.Name.Value)
			return nil, false
		}

		params = append(params, param)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}

	return params, true
}

func (p *Parser) parseClassStatement() ast.Statement {
	stmt := &ast.ClassStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Parent = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	}

	if !p.expectPeek(token.COLON) {
		return nil
	}

	body := p.parseBlockStatement()
	if body == nil {
		return nil
	}

	// Only method definitions are kept from a class body.
	for _, s := range body.Statements {
		if fn, ok := s.(*ast.FunctionStatement); ok {
			stmt.Methods = append(stmt.Methods, fn)
		}
	}

	return stmt
}

// parseBlockStatement is called with the parser on the ':' that ends a
// header. An indented block leaves the parser on its DEDENT; a one-line
// body leaves it at the end of that statement.
func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	block.Statements = []ast.Statement{}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}

	switch p.peekToken.Type {
	case token.DEDENT, token.EOF:
		return block
	case token.INDENT:
		p.nextToken()
		block.Token = p.curToken
		p.nextToken() // consume INDENT

		for !p.curTokenIs(token.DEDENT) && !p.curTokenIs(token.EOF) {
			stmt := p.parseStatement()
			if len(p.errors) > 0 {
				return nil
			}
			if stmt != nil {
				block.Statements = append(block.Statements, stmt)
			}
			p.nextToken()
		}
		return block
	}

	p.nextToken()
	block.Token = p.curToken
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil
	}
	if stmt != nil {
		block.Statements = append(block.Statements, stmt)
	}
	return block
}

// parseHeaderExpression parses the condition of a compound statement.
func (p *Parser) parseHeaderExpression() ast.Expression {
	prev := p.inHeader
	p.inHeader = true
	defer func() { p.inHeader = prev }()
	return p.parseExpression(LOWEST)
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseHeaderExpression()
	if stmt.Condition == nil || !p.expectPeek(token.COLON) {
		return nil
	}

	stmt.Consequence = p.parseBlockStatement()
	if stmt.Consequence == nil {
		return nil
	}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}

	for p.peekTokenIs(token.ELIF) {
		p.nextToken()
		p.nextToken()
		elif := &ast.ElifClause{Condition: p.parseHeaderExpression()}
		if elif.Condition == nil || !p.expectPeek(token.COLON) {
			return nil
		}
		elif.Body = p.parseBlockStatement()
		if elif.Body == nil {
			return nil
		}
		stmt.Elifs = append(stmt.Elifs, elif)

		for p.peekTokenIs(token.NEWLINE) {
			p.nextToken()
		}
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Alternative = p.parseBlockStatement()
		if stmt.Alternative == nil {
			return nil
		}
	}

	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseHeaderExpression()
	if stmt.Condition == nil || !p.expectPeek(token.COLON) {
		return nil
	}

	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}

	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Variable = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.IN) {
		return nil
	}

	p.nextToken()
	stmt.Iterable = p.parseHeaderExpression()
	if stmt.Iterable == nil || !p.expectPeek(token.COLON) {
		return nil
	}

	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}

	return stmt
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Module = p.curToken.Literal

	p.skipTerminator()
	return stmt
}

func (p *Parser) parseFromImportStatement() ast.Statement {
	stmt := &ast.FromImportStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Module = p.curToken.Literal

	if !p.expectPeek(token.IMPORT) {
		return nil
	}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Names = append(stmt.Names, p.curToken.Literal)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Names = append(stmt.Names, p.curToken.Literal)
	}

	p.skipTerminator()
	return stmt
}

func (p *Parser) parseTryStatement() ast.Statement {
	stmt := &ast.TryStatement{Token: p.curToken}

	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	if stmt.Body == nil {
		return nil
	}

	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}

	if p.peekTokenIs(token.EXCEPT) {
		p.nextToken()

		if p.peekTokenIs(token.IDENT) {
			p.nextToken()
			stmt.ExceptType = p.curToken.Literal
		}
		if p.peekTokenIs(token.AS) {
			p.nextToken()
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.ExceptName = p.curToken.Literal
		}

		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Handler = p.parseBlockStatement()
		if stmt.Handler == nil {
			return nil
		}

		for p.peekTokenIs(token.NEWLINE) {
			p.nextToken()
		}
	}

	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Finally = p.parseBlockStatement()
		if stmt.Finally == nil {
			return nil
		}
	}

	if stmt.Handler == nil && stmt.Finally == nil {
		p.errorAt(p.peekToken, "expected except or finally after try block, got %s instead", describe(p.peekToken))
		return nil
	}

	return stmt
}

func (p *Parser) parseRaiseStatement() ast.Statement {
	stmt := &ast.RaiseStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.DEDENT) || p.peekTokenIs(token.EOF) {
		p.skipTerminator()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}

	p.skipTerminator()
	return stmt
}

// parseExpressionStatement also handles plain, indexed, attribute and
// compound assignment, which all start out looking like an expression.
func (p *Parser) parseExpressionStatement() ast.Statement {
	first := p.curToken

	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		assignTok := p.curToken
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		p.skipTerminator()

		switch target := expr.(type) {
		case *ast.Identifier:
			return &ast.AssignmentStatement{Token: first, Name: target, Value: value}
		case *ast.IndexExpression:
			return &ast.IndexAssignStatement{Token: assignTok, Target: target.Left, Index: target.Index, Value: value}
		case *ast.MemberExpression:
			return &ast.AttributeAssignStatement{Token: assignTok, Object: target.Object, Attribute: target.Property, Value: value}
		default:
			p.errorAt(first, "Invalid assignment target")
			return nil
		}
	}

	if op, ok := compoundOperators[p.peekToken.Type]; ok {
		p.nextToken()
		opTok := p.curToken
		p.nextToken()
		rhs := p.parseExpression(LOWEST)
		if rhs == nil {
			return nil
		}
		p.skipTerminator()

		ident, ok := expr.(*ast.Identifier)
		if !ok {
			p.errorAt(first, "Invalid compound assignment target")
			return nil
		}
		value := &ast.InfixExpression{
			Token:    token.Token{Type: token.TokenType(op), Literal: op, Line: opTok.Line, Column: opTok.Column},
			Left:     &ast.Identifier{Token: ident.Token, Value: ident.Value},
			Operator: op,
			Right:    rhs,
		}
		return &ast.AssignmentStatement{Token: first, Name: ident, Value: value}
	}

	stmt := &ast.ExpressionStatement{Token: first, Expression: expr}
	p.skipTerminator()
	return stmt
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) errorAt(tok token.Token, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("line %d, column %d: %s", tok.Line, tok.Column, msg))
}

func (p *Parser) peekError(t token.TokenType) {
	if len(p.errors) > 0 {
		return
	}
	p.errorAt(p.peekToken, "expected next token to be %s, got %s instead", t, describe(p.peekToken))
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	if len(p.errors) > 0 {
		return
	}
	p.errorAt(tok, "no prefix parse function for %s found", describe(tok))
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.IDENT, token.INT, token.FLOAT:
		return fmt.Sprintf("%s(%s)", tok.Type, tok.Literal)
	case token.STRING, token.FSTRING:
		return fmt.Sprintf("%s(%q)", tok.Type, tok.Literal)
	}
	return string(tok.Type)
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}
