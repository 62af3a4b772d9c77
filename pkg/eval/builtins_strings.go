package eval

import (
	"strconv"
	"strings"
	"unicode"
)

// stringMethods maps a method on str to the global built-in it forwards
// to, with the receiver as the first argument.
var stringMethods = map[string]string{
	"upper":      "upper",
	"lower":      "lower",
	"strip":      "strip",
	"lstrip":     "lstrip",
	"rstrip":     "rstrip",
	"title":      "title",
	"capitalize": "capitalize",
	"split":      "split",
	"join":       "join",
	"replace":    "replace",
	"startswith": "startswith",
	"endswith":   "endswith",
	"find":       "find",
	"index":      "find",
	"count":      "count",
	"isdigit":    "isdigit",
	"isalpha":    "isalpha",
	"isalnum":    "isalnum",
	"isspace":    "isspace",
	"isupper":    "isupper",
	"islower":    "islower",
	"format":     "format",
	"splitlines": "splitlines",
}

func init() {
	register("upper", stringTransform("upper", strings.ToUpper))
	register("lower", stringTransform("lower", strings.ToLower))
	register("title", stringTransform("title", titleCase))
	register("capitalize", stringTransform("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		r := []rune(strings.ToLower(s))
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}))
	register("strip", trimBuiltin("strip", strings.TrimSpace, strings.Trim))
	register("lstrip", trimBuiltin("lstrip", func(s string) string {
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	}, strings.TrimLeft))
	register("rstrip", trimBuiltin("rstrip", func(s string) string {
		return strings.TrimRightFunc(s, unicode.IsSpace)
	}, strings.TrimRight))
	register("split", builtinSplit, "s", "sep")
	register("splitlines", func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("splitlines() requires a string")
		}
		s = strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
		if s == "" {
			return NewList()
		}
		return stringList(strings.Split(s, "\n")...)
	})
	register("join", builtinJoin)
	register("replace", func(in *Interpreter, args ...Object) Object {
		s, ok1 := stringArg(args, 0)
		old, ok2 := stringArg(args, 1)
		repl, ok3 := stringArg(args, 2)
		if !ok1 || !ok2 || !ok3 {
			return newError("replace() requires three strings")
		}
		return NewString(strings.ReplaceAll(s, old, repl))
	})
	register("startswith", stringPredicate2("startswith", strings.HasPrefix))
	register("endswith", stringPredicate2("endswith", strings.HasSuffix))
	register("contains", stringPredicate2("contains", strings.Contains))
	register("find", func(in *Interpreter, args ...Object) Object {
		s, ok1 := stringArg(args, 0)
		sub, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return newError("find() requires two strings")
		}
		i := strings.Index(s, sub)
		if i < 0 {
			return NewInteger(-1)
		}
		return NewInteger(int64(len([]rune(s[:i]))))
	})
	register("count", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("count() requires two arguments")
		}
		switch c := args[0].(type) {
		case *String:
			sub, ok := args[1].(*String)
			if !ok {
				return newError("count() requires two strings")
			}
			return NewInteger(int64(strings.Count(c.Value, sub.Value)))
		case *List:
			n := 0
			for _, e := range c.Elements {
				if objectsEqual(e, args[1]) {
					n++
				}
			}
			return NewInteger(int64(n))
		}
		return newError("count() requires a string or list")
	})
	register("isdigit", runePredicate("isdigit", unicode.IsDigit))
	register("isalpha", runePredicate("isalpha", unicode.IsLetter))
	register("isalnum", runePredicate("isalnum", func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}))
	register("isspace", runePredicate("isspace", unicode.IsSpace))
	register("isupper", func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("isupper() requires a string")
		}
		return nativeBoolToBooleanObject(s != strings.ToLower(s) && s == strings.ToUpper(s))
	})
	register("islower", func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("islower() requires a string")
		}
		return nativeBoolToBooleanObject(s != strings.ToUpper(s) && s == strings.ToLower(s))
	})
	register("format", builtinFormat)
}

func stringTransform(name string, fn func(string) string) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("%s() requires a string", name)
		}
		return NewString(fn(s))
	}
}

func trimBuiltin(name string, space func(string) string, cutset func(string, string) string) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("%s() requires a string", name)
		}
		if chars, ok := stringArg(args, 1); ok {
			return NewString(cutset(s, chars))
		}
		return NewString(space(s))
	}
}

func stringPredicate2(name string, fn func(string, string) bool) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		s, ok1 := stringArg(args, 0)
		sub, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return newError("%s() requires two strings", name)
		}
		return nativeBoolToBooleanObject(fn(s, sub))
	}
}

func runePredicate(name string, fn func(rune) bool) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("%s() requires a string", name)
		}
		if s == "" {
			return FALSE
		}
		for _, r := range s {
			if !fn(r) {
				return FALSE
			}
		}
		return TRUE
	}
}

func titleCase(s string) string {
	var b strings.Builder
	start := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if start {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			start = false
			continue
		}
		start = true
		b.WriteRune(r)
	}
	return b.String()
}

func builtinSplit(in *Interpreter, args ...Object) Object {
	s, ok := stringArg(args, 0)
	if !ok {
		return newError("split() requires a string")
	}
	if sep, ok := stringArg(args, 1); ok {
		if sep == "" {
			return newError("split() separator must not be empty")
		}
		return stringList(strings.Split(s, sep)...)
	}
	return stringList(strings.Fields(s)...)
}

func builtinJoin(in *Interpreter, args ...Object) Object {
	sep, ok := stringArg(args, 0)
	if !ok || len(args) < 2 {
		return newError("join() requires a separator and a list")
	}
	items, ok := iterate(args[1])
	if !ok {
		return newError("join() requires a separator and a list")
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Inspect()
	}
	return NewString(strings.Join(parts, sep))
}

// builtinFormat fills "{}" placeholders positionally and "{name}"
// placeholders from a trailing dict of keyword arguments. "{{" and "}}"
// produce literal braces.
func builtinFormat(in *Interpreter, args ...Object) Object {
	tmpl, ok := stringArg(args, 0)
	if !ok {
		return newError("format() requires a template string")
	}
	positional := args[1:]
	var named *Dict
	if n := len(positional); n > 0 {
		if d, ok := positional[n-1].(*Dict); ok {
			named = d
		}
	}

	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}' {
			b.WriteByte('}')
			i++
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(tmpl) && tmpl[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			return newError("format() unmatched '{'")
		}
		field := tmpl[i+1 : i+end]
		i += end

		var val Object
		switch {
		case field == "":
			if next >= len(positional) {
				return newError("format() missing positional argument %d", next)
			}
			val = positional[next]
			next++
		default:
			if idx, err := strconv.Atoi(field); err == nil {
				if idx < 0 || idx >= len(positional) {
					return newError("format() missing positional argument %d", idx)
				}
				val = positional[idx]
			} else if named != nil {
				v, ok := named.GetString(field)
				if !ok {
					return newError("format() missing argument '%s'", field)
				}
				val = v
			} else {
				return newError("format() missing argument '%s'", field)
			}
		}
		b.WriteString(val.Inspect())
	}
	return NewString(b.String())
}
