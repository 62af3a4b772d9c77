package token

import "fmt"

type TokenType string

const (
	// Special
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"
	INDENT  = "INDENT"
	DEDENT  = "DEDENT"
	NEWLINE = "NEWLINE"

	// Identifiers & Literals
	IDENT   = "IDENT"
	INT     = "INT"
	FLOAT   = "FLOAT"
	STRING  = "STRING"
	FSTRING = "FSTRING"

	// Operators
	ASSIGN          = "="
	PLUS_ASSIGN     = "+="
	MINUS_ASSIGN    = "-="
	ASTERISK_ASSIGN = "*="
	SLASH_ASSIGN    = "/="
	PLUS            = "+"
	MINUS           = "-"
	ASTERISK        = "*"
	POWER           = "**"
	SLASH           = "/"
	FLOOR_DIV       = "//"
	PERCENT         = "%"

	LT     = "<"
	GT     = ">"
	EQ     = "=="
	NOT_EQ = "!="
	LTE    = "<="
	GTE    = ">="

	// Delimiters
	COMMA    = ","
	COLON    = ":"
	LPAREN   = "("
	RPAREN   = ")"
	LBRACE   = "{"
	RBRACE   = "}"
	LBRACKET = "["
	RBRACKET = "]"
	ARROW    = "->"
	DOT      = "."
	AT       = "@"

	// Keywords
	LET      = "LET"
	FN       = "FN"
	DEF      = "DEF"
	IF       = "IF"
	ELIF     = "ELIF"
	ELSE     = "ELSE"
	WHILE    = "WHILE"
	FOR      = "FOR"
	IN       = "IN"
	RETURN   = "RETURN"
	TRUE     = "TRUE"
	FALSE    = "FALSE"
	NONE     = "NONE"
	AND      = "AND"
	OR       = "OR"
	NOT      = "NOT"
	IMPORT   = "IMPORT"
	FROM     = "FROM"
	CLASS    = "CLASS"
	SELF     = "SELF"
	PASS     = "PASS"
	BREAK    = "BREAK"
	CONTINUE = "CONTINUE"
	TRY      = "TRY"
	EXCEPT   = "EXCEPT"
	FINALLY  = "FINALLY"
	RAISE    = "RAISE"
	WITH     = "WITH"
	AS       = "AS"
	LAMBDA   = "LAMBDA"
	YIELD    = "YIELD"
	ASYNC    = "ASYNC"
	AWAIT    = "AWAIT"
)

// Token is a spanned token. Start and End are byte offsets into the
// preprocessed source.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
	Start   int
	End     int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, %d:%d)", t.Type, t.Literal, t.Line, t.Column)
}

var keywords = map[string]TokenType{
	"let":      LET,
	"fn":       FN,
	"def":      DEF,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"return":   RETURN,
	"true":     TRUE,
	"false":    FALSE,
	"none":     NONE,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"import":   IMPORT,
	"from":     FROM,
	"class":    CLASS,
	"self":     SELF,
	"pass":     PASS,
	"break":    BREAK,
	"continue": CONTINUE,
	"try":      TRY,
	"except":   EXCEPT,
	"finally":  FINALLY,
	"raise":    RAISE,
	"with":     WITH,
	"as":       AS,
	"lambda":   LAMBDA,
	"yield":    YIELD,
	"async":    ASYNC,
	"await":    AWAIT,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether ident is reserved.
func IsKeyword(ident string) bool {
	_, ok := keywords[ident]
	return ok
}
