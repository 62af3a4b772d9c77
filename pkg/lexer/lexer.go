package lexer

import (
	"strings"

	"poly/pkg/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int

	indentStack []int // Stack of indentation widths
	tokenQueue  []token.Token
	tokenized   bool
}

func New(input string) *Lexer {
	l := &Lexer{
		input:       preprocessTripleQuotes(input),
		line:        1,
		column:      0,
		indentStack: []int{0},
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition += 1
	l.column += 1
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

// Tokenize returns every token of the input, including the synthetic
// INDENT and DEDENT tokens but without a trailing EOF.
func (l *Lexer) Tokenize() []token.Token {
	if !l.tokenized {
		var raw []token.Token
		for {
			tok, ok := l.nextRawToken()
			if !ok {
				break
			}
			raw = append(raw, tok)
		}
		l.tokenQueue = l.addIndentation(raw)
		l.tokenized = true
	}
	out := make([]token.Token, len(l.tokenQueue))
	copy(out, l.tokenQueue)
	return out
}

// NextToken hands out the tokens produced by Tokenize one at a time and
// returns EOF forever once they are exhausted.
func (l *Lexer) NextToken() token.Token {
	if !l.tokenized {
		l.Tokenize()
	}
	if len(l.tokenQueue) > 0 {
		tok := l.tokenQueue[0]
		l.tokenQueue = l.tokenQueue[1:]
		return tok
	}
	return token.Token{Type: token.EOF, Literal: "", Line: l.line, Column: l.column, Start: len(l.input), End: len(l.input)}
}

func (l *Lexer) nextRawToken() (token.Token, bool) {
	for {
		// Skip whitespace but NOT newlines
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}

		if l.atEnd() {
			return token.Token{}, false
		}

		if l.ch == '#' {
			l.skipComment()
			continue
		}

		line, col, start := l.line, l.column, l.position

		switch l.ch {
		case '\n':
			tok := token.Token{Type: token.NEWLINE, Literal: "\n", Line: line, Column: col, Start: start, End: start + 1}
			l.readChar()
			return tok, true
		case '"', '\'':
			if lit, ok := l.readString(l.ch); ok {
				return token.Token{Type: token.STRING, Literal: unescape(lit), Line: line, Column: col, Start: start, End: l.position}, true
			}
			// Unterminated literal: drop the quote and keep going.
			l.readChar()
			continue
		}

		if l.ch == 'f' && (l.peekChar() == '"' || l.peekChar() == '\'') {
			l.readChar()
			if lit, ok := l.readString(l.ch); ok {
				return token.Token{Type: token.FSTRING, Literal: lit, Line: line, Column: col, Start: start, End: l.position}, true
			}
			// Not an f-string after all; lex "f" as an identifier.
			return token.Token{Type: token.IDENT, Literal: "f", Line: line, Column: col, Start: start, End: start + 1}, true
		}

		if isLetter(l.ch) {
			lit := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(lit), Literal: lit, Line: line, Column: col, Start: start, End: l.position}, true
		}

		if isDigit(l.ch) {
			lit, isFloat := l.readNumber()
			typ := token.TokenType(token.INT)
			if isFloat {
				typ = token.FLOAT
			}
			return token.Token{Type: typ, Literal: lit, Line: line, Column: col, Start: start, End: l.position}, true
		}

		if typ, lit, ok := l.readOperator(); ok {
			return token.Token{Type: typ, Literal: lit, Line: line, Column: col, Start: start, End: l.position}, true
		}

		// Unrecognized character, skipped.
		l.readChar()
	}
}

var twoCharOperators = map[string]token.TokenType{
	"**": token.POWER,
	"//": token.FLOOR_DIV,
	"==": token.EQ,
	"!=": token.NOT_EQ,
	"<=": token.LTE,
	">=": token.GTE,
	"+=": token.PLUS_ASSIGN,
	"-=": token.MINUS_ASSIGN,
	"*=": token.ASTERISK_ASSIGN,
	"/=": token.SLASH_ASSIGN,
	"->": token.ARROW,
}

var oneCharOperators = map[byte]token.TokenType{
	'=': token.ASSIGN,
	'+': token.PLUS,
	'-': token.MINUS,
	'*': token.ASTERISK,
	'/': token.SLASH,
	'%': token.PERCENT,
	'<': token.LT,
	'>': token.GT,
	',': token.COMMA,
	':': token.COLON,
	'.': token.DOT,
	'@': token.AT,
	'(': token.LPAREN,
	')': token.RPAREN,
	'[': token.LBRACKET,
	']': token.RBRACKET,
	'{': token.LBRACE,
	'}': token.RBRACE,
}

func (l *Lexer) readOperator() (token.TokenType, string, bool) {
	if l.peekChar() != 0 {
		pair := string([]byte{l.ch, l.peekChar()})
		if typ, ok := twoCharOperators[pair]; ok {
			l.readChar()
			l.readChar()
			return typ, pair, true
		}
	}
	if typ, ok := oneCharOperators[l.ch]; ok {
		ch := l.ch
		l.readChar()
		return typ, string(ch), true
	}
	return "", "", false
}

// addIndentation turns leading whitespace changes into INDENT and DEDENT
// tokens. Newlines inside brackets are dropped.
func (l *Lexer) addIndentation(raw []token.Token) []token.Token {
	lines := strings.Split(l.input, "\n")
	result := make([]token.Token, 0, len(raw)+8)
	bracketDepth := 0
	lastLine := 1

	for i := 0; i < len(raw); i++ {
		tok := raw[i]

		switch tok.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			bracketDepth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if bracketDepth > 0 {
				bracketDepth--
			}
		}

		if tok.Type != token.NEWLINE {
			result = append(result, tok)
			continue
		}

		if bracketDepth > 0 {
			continue
		}

		result = append(result, tok)
		lastLine = tok.Line

		if i+1 >= len(raw) || raw[i+1].Type == token.NEWLINE {
			continue
		}

		next := raw[i+1]
		if next.Line-1 >= len(lines) {
			continue
		}
		indent := indentWidth(lines[next.Line-1])
		current := l.indentStack[len(l.indentStack)-1]

		if indent > current {
			l.indentStack = append(l.indentStack, indent)
			result = append(result, token.Token{Type: token.INDENT, Line: next.Line, Column: 1, Start: next.Start, End: next.Start})
		} else if indent < current {
			for len(l.indentStack) > 1 && l.indentStack[len(l.indentStack)-1] > indent {
				l.indentStack = l.indentStack[:len(l.indentStack)-1]
				result = append(result, token.Token{Type: token.DEDENT, Line: next.Line, Column: 1, Start: next.Start, End: next.Start})
			}
		}
	}

	for len(l.indentStack) > 1 {
		l.indentStack = l.indentStack[:len(l.indentStack)-1]
		result = append(result, token.Token{Type: token.DEDENT, Line: lastLine + 1, Column: 1, Start: len(l.input), End: len(l.input)})
	}

	return result
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t\r\f\v"))
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func (l *Lexer) readNumber() (string, bool) {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	isFloat := false
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position], isFloat
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// readString consumes a quoted literal starting at the current quote and
// returns its raw body. Nothing is consumed when the literal is unterminated.
func (l *Lexer) readString(quote byte) (string, bool) {
	end := -1
	for i := l.position + 1; i < len(l.input); i++ {
		c := l.input[i]
		if c == '\\' {
			i++
			continue
		}
		if c == quote {
			end = i
			break
		}
	}
	if end < 0 {
		return "", false
	}

	body := l.input[l.position+1 : end]
	for l.position <= end {
		l.readChar()
	}
	return body, true
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// Unescape resolves backslash escapes in a literal body.
func Unescape(s string) string {
	return unescape(s)
}

func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var result strings.Builder
	result.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			result.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			result.WriteByte('\n')
		case 't':
			result.WriteByte('\t')
		case 'r':
			result.WriteByte('\r')
		case '\\':
			result.WriteByte('\\')
		case '"':
			result.WriteByte('"')
		case '\'':
			result.WriteByte('\'')
		case '0':
			result.WriteByte('\x00')
		default:
			// Unknown escape, keep it verbatim
			result.WriteByte('\\')
			result.WriteByte(s[i])
		}
	}
	return result.String()
}
