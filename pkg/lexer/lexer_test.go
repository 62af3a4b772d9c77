package lexer

import (
	"testing"

	"poly/pkg/token"
)

type expectedToken struct {
	expectedType    token.TokenType
	expectedLiteral string
}

func checkTokens(t *testing.T, input string, tests []expectedToken) {
	t.Helper()
	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q, literal=%q",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextToken(t *testing.T) {
	input := `fn add(x, y):
    return x + y
print(add(1, 2))
`

	checkTokens(t, input, []expectedToken{
		{token.FN, "fn"},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.COMMA, ","},
		{token.IDENT, "y"},
		{token.RPAREN, ")"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.RETURN, "return"},
		{token.IDENT, "x"},
		{token.PLUS, "+"},
		{token.IDENT, "y"},
		{token.NEWLINE, "\n"},
		{token.DEDENT, ""},
		{token.IDENT, "print"},
		{token.LPAREN, "("},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.INT, "1"},
		{token.COMMA, ","},
		{token.INT, "2"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.NEWLINE, "\n"},
		{token.EOF, ""},
	})
}

func TestOperators(t *testing.T) {
	input := `a ** b // c != d <= e >= f -> g == h < i > j % k @ l`

	checkTokens(t, input, []expectedToken{
		{token.IDENT, "a"},
		{token.POWER, "**"},
		{token.IDENT, "b"},
		{token.FLOOR_DIV, "//"},
		{token.IDENT, "c"},
		{token.NOT_EQ, "!="},
		{token.IDENT, "d"},
		{token.LTE, "<="},
		{token.IDENT, "e"},
		{token.GTE, ">="},
		{token.IDENT, "f"},
		{token.ARROW, "->"},
		{token.IDENT, "g"},
		{token.EQ, "=="},
		{token.IDENT, "h"},
		{token.LT, "<"},
		{token.IDENT, "i"},
		{token.GT, ">"},
		{token.IDENT, "j"},
		{token.PERCENT, "%"},
		{token.IDENT, "k"},
		{token.AT, "@"},
		{token.IDENT, "l"},
		{token.EOF, ""},
	})
}

func TestCompoundAssignment(t *testing.T) {
	input := `x += 1
x -= 2
x *= 3
x /= 4`

	checkTokens(t, input, []expectedToken{
		{token.IDENT, "x"},
		{token.PLUS_ASSIGN, "+="},
		{token.INT, "1"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "x"},
		{token.MINUS_ASSIGN, "-="},
		{token.INT, "2"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "x"},
		{token.ASTERISK_ASSIGN, "*="},
		{token.INT, "3"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "x"},
		{token.SLASH_ASSIGN, "/="},
		{token.INT, "4"},
		{token.EOF, ""},
	})
}

func TestNestedDedent(t *testing.T) {
	input := `if a:
    if b:
        x
y
`

	checkTokens(t, input, []expectedToken{
		{token.IF, "if"},
		{token.IDENT, "a"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.IF, "if"},
		{token.IDENT, "b"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.IDENT, "x"},
		{token.NEWLINE, "\n"},
		{token.DEDENT, ""},
		{token.DEDENT, ""},
		{token.IDENT, "y"},
		{token.NEWLINE, "\n"},
		{token.EOF, ""},
	})
}

func TestDedentAtEndOfInput(t *testing.T) {
	checkTokens(t, "if a:\n    b", []expectedToken{
		{token.IF, "if"},
		{token.IDENT, "a"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.IDENT, "b"},
		{token.DEDENT, ""},
		{token.EOF, ""},
	})
}

func TestBlankAndCommentLinesDoNotIndent(t *testing.T) {
	input := "if a:\n\n    b\n        # deep comment\n    c\n"

	checkTokens(t, input, []expectedToken{
		{token.IF, "if"},
		{token.IDENT, "a"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.IDENT, "b"},
		{token.NEWLINE, "\n"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "c"},
		{token.NEWLINE, "\n"},
		{token.DEDENT, ""},
		{token.EOF, ""},
	})
}

func TestNoIndentInsideBrackets(t *testing.T) {
	input := `let xs = [
    1,
        2,
    {"k": (3,
          4)},
]
print(xs)
`

	l := New(input)
	for _, tok := range l.Tokenize() {
		if tok.Type == token.INDENT || tok.Type == token.DEDENT {
			t.Fatalf("unexpected synthetic token %s inside brackets", tok)
		}
	}

	newlines := 0
	for _, tok := range New(input).Tokenize() {
		if tok.Type == token.NEWLINE {
			newlines++
		}
	}
	if newlines != 2 {
		t.Fatalf("expected 2 NEWLINE tokens, got=%d", newlines)
	}
}

func TestNumbers(t *testing.T) {
	checkTokens(t, "3.14 42 1.x 0.5", []expectedToken{
		{token.FLOAT, "3.14"},
		{token.INT, "42"},
		{token.INT, "1"},
		{token.DOT, "."},
		{token.IDENT, "x"},
		{token.FLOAT, "0.5"},
		{token.EOF, ""},
	})
}

func TestStrings(t *testing.T) {
	input := `"hello" 'single' "tab\there" "q\"uote" 'it\'s' "back\\slash"`

	checkTokens(t, input, []expectedToken{
		{token.STRING, "hello"},
		{token.STRING, "single"},
		{token.STRING, "tab\there"},
		{token.STRING, `q"uote`},
		{token.STRING, "it's"},
		{token.STRING, `back\slash`},
		{token.EOF, ""},
	})
}

func TestFString(t *testing.T) {
	input := `f"Hello, {name}!" f'{a} and {b}' fn`

	checkTokens(t, input, []expectedToken{
		{token.FSTRING, "Hello, {name}!"},
		{token.FSTRING, "{a} and {b}"},
		{token.FN, "fn"},
		{token.EOF, ""},
	})
}

func TestTripleQuotedStrings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newlines", "\"\"\"line one\nline two\n\"\"\"", "line one\nline two\n"},
		{"only newlines", "\"\"\"\n\n\n\"\"\"", "\n\n\n"},
		{"only backslashes", "\"\"\"\\\\\\\"\"\"", "\\\\\\"},
		{"embedded quotes", "\"\"\"say \"hi\" now\"\"\"", `say "hi" now`},
		{"single quote style", "'''a\tb'''", "a\tb"},
		{"escape-looking text", "\"\"\"a\\nb\"\"\"", `a\nb`},
	}

	for _, tt := range tests {
		tokens := New(tt.input).Tokenize()
		if len(tokens) != 1 {
			t.Fatalf("%s: expected 1 token, got=%d (%v)", tt.name, len(tokens), tokens)
		}
		if tokens[0].Type != token.STRING {
			t.Fatalf("%s: expected STRING, got=%q", tt.name, tokens[0].Type)
		}
		if tokens[0].Literal != tt.expected {
			t.Fatalf("%s: literal wrong. expected=%q, got=%q", tt.name, tt.expected, tokens[0].Literal)
		}
	}
}

func TestTripleQuotedStringKeepsLinesAfter(t *testing.T) {
	input := "let s = \"\"\"a\nb\"\"\"\nlet t = 1\n"
	tokens := New(input).Tokenize()

	for _, tok := range tokens {
		if tok.Type == token.INDENT || tok.Type == token.DEDENT {
			t.Fatalf("unexpected synthetic token %s", tok)
		}
	}
	last := tokens[len(tokens)-2]
	if last.Type != token.INT || last.Line != 2 {
		t.Fatalf("expected INT on line 2, got=%s", last)
	}
}

func TestUnterminatedTripleQuoteIsLeftAlone(t *testing.T) {
	if got := preprocessTripleQuotes(`x = """abc`); got != `x = """abc` {
		t.Fatalf("unterminated triple quote rewritten: %q", got)
	}
}

func TestSkipsUnknownCharacters(t *testing.T) {
	checkTokens(t, "a $ b ! c ? d", []expectedToken{
		{token.IDENT, "a"},
		{token.IDENT, "b"},
		{token.IDENT, "c"},
		{token.IDENT, "d"},
		{token.EOF, ""},
	})
}

func TestUnterminatedStringSkipsQuote(t *testing.T) {
	checkTokens(t, `"abc`, []expectedToken{
		{token.IDENT, "abc"},
		{token.EOF, ""},
	})
}

func TestComments(t *testing.T) {
	checkTokens(t, "x = 1 # trailing\n# whole line\ny", []expectedToken{
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.INT, "1"},
		{token.NEWLINE, "\n"},
		{token.NEWLINE, "\n"},
		{token.IDENT, "y"},
		{token.EOF, ""},
	})
}

func TestKeywords(t *testing.T) {
	for _, kw := range []string{"let", "fn", "def", "elif", "lambda", "none", "self", "await"} {
		tok := New(kw).NextToken()
		if tok.Type == token.IDENT {
			t.Fatalf("%q lexed as IDENT", kw)
		}
		if !token.IsKeyword(kw) {
			t.Fatalf("%q not reported as keyword", kw)
		}
	}
	if tok := New("True").NextToken(); tok.Type != token.IDENT {
		t.Fatalf("keywords are case sensitive, got=%q", tok.Type)
	}
}

func TestPositions(t *testing.T) {
	tokens := New("let x = 1\n  y").Tokenize()

	tests := []struct {
		idx    int
		line   int
		column int
	}{
		{0, 1, 1},
		{1, 1, 5},
		{3, 1, 9},
		{4, 1, 10},
		{6, 2, 3},
	}

	for _, tt := range tests {
		tok := tokens[tt.idx]
		if tok.Line != tt.line || tok.Column != tt.column {
			t.Fatalf("token %d (%s): expected %d:%d", tt.idx, tok, tt.line, tt.column)
		}
	}
	if tokens[1].Start != 4 || tokens[1].End != 5 {
		t.Fatalf("wrong span for x: %d..%d", tokens[1].Start, tokens[1].End)
	}
}

func TestTokenString(t *testing.T) {
	tok := token.Token{Type: token.IDENT, Literal: "x", Line: 1, Column: 2}
	if tok.String() != `Token(IDENT, "x", 1:2)` {
		t.Fatalf("unexpected token string %q", tok.String())
	}
}
