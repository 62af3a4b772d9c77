package lexer

import "strings"

// preprocessTripleQuotes rewrites every """...""" and '''...''' literal into
// an ordinary double-quoted string on a single line. Newlines, tabs, carriage
// returns, double quotes and backslashes in the body are re-escaped so the
// string lexer restores the exact original text. An unterminated triple quote
// is copied through untouched.
func preprocessTripleQuotes(source string) string {
	if !strings.Contains(source, `"""`) && !strings.Contains(source, `'''`) {
		return source
	}

	var out strings.Builder
	out.Grow(len(source))

	for i := 0; i < len(source); {
		c := source[i]
		if (c == '"' || c == '\'') && strings.HasPrefix(source[i:], strings.Repeat(string(c), 3)) {
			delim := source[i : i+3]
			end := strings.Index(source[i+3:], delim)
			if end < 0 {
				out.WriteString(source[i:])
				break
			}
			body := source[i+3 : i+3+end]
			out.WriteByte('"')
			out.WriteString(escapeTripleBody(body))
			out.WriteByte('"')
			i += 3 + end + 3
			continue
		}
		out.WriteByte(c)
		i++
	}

	return out.String()
}

func escapeTripleBody(body string) string {
	var b strings.Builder
	b.Grow(len(body) + 8)
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
