package eval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

type builtinDef struct {
	fn     BuiltinFn
	params []string
}

func (d builtinDef) object(name string) *BuiltinFunction {
	return &BuiltinFunction{Name: name, Fn: d.fn, Params: d.params}
}

// builtins are installed into the globals of every fresh interpreter.
var builtins = map[string]builtinDef{}

// register adds a global built-in. params, when given, name the positional
// slots keyword arguments map onto.
func register(name string, fn BuiltinFn, params ...string) {
	builtins[name] = builtinDef{fn: fn, params: params}
}

// arg returns args[i], treating a None placeholder left by keyword
// placement as absent.
func arg(args []Object, i int) (Object, bool) {
	if i >= len(args) || args[i] == nil {
		return nil, false
	}
	if _, isNull := args[i].(*Null); isNull {
		return nil, false
	}
	return args[i], true
}

func stringArg(args []Object, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(*String)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func intArg(args []Object, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	n, ok := args[i].(*Integer)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

func numberArg(args []Object, i int) (float64, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch n := args[i].(type) {
	case *Integer:
		return float64(n.Value), true
	case *Float:
		return n.Value, true
	}
	return 0, false
}

func listArg(args []Object, i int) (*List, bool) {
	if i >= len(args) {
		return nil, false
	}
	l, ok := args[i].(*List)
	return l, ok
}

func dictArg(args []Object, i int) (*Dict, bool) {
	if i >= len(args) {
		return nil, false
	}
	d, ok := args[i].(*Dict)
	return d, ok
}

func stringList(values ...string) *List {
	elems := make([]Object, len(values))
	for i, v := range values {
		elems[i] = NewString(v)
	}
	return &List{Elements: elems}
}

func init() {
	register("print", builtinPrint)
	register("input", builtinInput, "prompt")
	register("len", builtinLen)
	register("range", builtinRange)
	register("str", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return newError("str() requires an argument")
		}
		return NewString(args[0].Inspect())
	})
	register("int", builtinInt)
	register("float", builtinFloat)
	register("bool", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return FALSE
		}
		return nativeBoolToBooleanObject(isTruthy(args[0]))
	})
	register("type", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return newError("type() requires an argument")
		}
		return NewString(typeName(args[0]))
	})
	register("abs", func(in *Interpreter, args ...Object) Object {
		if len(args) > 0 {
			switch n := args[0].(type) {
			case *Integer:
				if n.Value < 0 {
					return NewInteger(-n.Value)
				}
				return n
			case *Float:
				return NewFloat(math.Abs(n.Value))
			}
		}
		return newError("abs() requires a number")
	})
	register("min", func(in *Interpreter, args ...Object) Object { return extremum("min", args, -1) })
	register("max", func(in *Interpreter, args ...Object) Object { return extremum("max", args, 1) })
	register("sum", builtinSum)
	register("sorted", builtinSorted, "iterable", "key", "reverse")
	register("reversed", func(in *Interpreter, args ...Object) Object {
		var items []Object
		switch v := firstArg(args).(type) {
		case *List:
			items = append([]Object(nil), v.Elements...)
		case *String:
			items = stringChars(v.Value)
		default:
			return newError("reversed() requires a list or string")
		}
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return &List{Elements: items}
	})
	register("enumerate", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok {
			return newError("enumerate() requires a list")
		}
		start, _ := intArg(args, 1)
		out := make([]Object, len(l.Elements))
		for i, v := range l.Elements {
			out[i] = NewList(NewInteger(int64(i)+start), v)
		}
		return &List{Elements: out}
	})
	register("zip", func(in *Interpreter, args ...Object) Object {
		a, ok1 := listArg(args, 0)
		b, ok2 := listArg(args, 1)
		if !ok1 || !ok2 {
			return newError("zip() requires two lists")
		}
		n := len(a.Elements)
		if len(b.Elements) < n {
			n = len(b.Elements)
		}
		out := make([]Object, n)
		for i := 0; i < n; i++ {
			out[i] = NewList(a.Elements[i], b.Elements[i])
		}
		return &List{Elements: out}
	})
	register("map", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("map() requires a function and a list")
		}
		items, ok := iterate(args[1])
		if !ok {
			return newError("map() requires a function and a list")
		}
		out := make([]Object, 0, len(items))
		for _, item := range items {
			v := in.applyFunction(args[0], []Object{item}, nil)
			if isError(v) {
				return v
			}
			out = append(out, v)
		}
		return &List{Elements: out}
	})
	register("filter", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("filter() requires a function and a list")
		}
		items, ok := iterate(args[1])
		if !ok {
			return newError("filter() requires a function and a list")
		}
		out := make([]Object, 0, len(items))
		for _, item := range items {
			keep := item
			if _, isNull := args[0].(*Null); !isNull {
				keep = in.applyFunction(args[0], []Object{item}, nil)
				if isError(keep) {
					return keep
				}
			}
			if isTruthy(keep) {
				out = append(out, item)
			}
		}
		return &List{Elements: out}
	})
	register("any", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok {
			return newError("any() requires a list")
		}
		for _, v := range l.Elements {
			if isTruthy(v) {
				return TRUE
			}
		}
		return FALSE
	})
	register("all", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok {
			return newError("all() requires a list")
		}
		for _, v := range l.Elements {
			if !isTruthy(v) {
				return FALSE
			}
		}
		return TRUE
	})
	register("isinstance", builtinIsInstance)
	register("hasattr", func(in *Interpreter, args ...Object) Object {
		name, ok := stringArg(args, 1)
		if !ok {
			return FALSE
		}
		switch v := firstArg(args).(type) {
		case *Instance:
			if _, found := v.Get(name); found {
				return TRUE
			}
			_, found := in.findMethod(v.Class, name)
			return nativeBoolToBooleanObject(found)
		case *Dict:
			_, found := v.GetString(name)
			return nativeBoolToBooleanObject(found)
		}
		return FALSE
	})
	register("getattr", func(in *Interpreter, args ...Object) Object {
		name, ok := stringArg(args, 1)
		if !ok || len(args) == 0 {
			return newError("getattr() requires an object and an attribute name")
		}
		v := in.getAttribute(args[0], name)
		if isError(v) && len(args) > 2 {
			return args[2]
		}
		return v
	}, "object", "name", "default")
	register("setattr", func(in *Interpreter, args ...Object) Object {
		inst, ok := firstArg(args).(*Instance)
		name, ok2 := stringArg(args, 1)
		if !ok || !ok2 || len(args) < 3 {
			return newError("setattr() requires an instance, a name and a value")
		}
		updated := inst.Copy()
		updated.Set(name, args[2])
		return updated
	})
	register("list", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return NewList()
		}
		items, ok := iterate(args[0])
		if !ok {
			return newError("list() requires an iterable")
		}
		return &List{Elements: append([]Object(nil), items...)}
	})
	register("tuple", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return NewList()
		}
		items, ok := iterate(args[0])
		if !ok {
			return newError("tuple() requires an iterable")
		}
		return &List{Elements: append([]Object(nil), items...)}
	})
	register("set", func(in *Interpreter, args ...Object) Object {
		if len(args) == 0 {
			return NewList()
		}
		items, ok := iterate(args[0])
		if !ok {
			return newError("set() requires an iterable")
		}
		return &List{Elements: unique(items)}
	})
	register("dict", func(in *Interpreter, args ...Object) Object {
		d := NewDict()
		for _, a := range args {
			switch v := a.(type) {
			case *Dict:
				for _, p := range v.Pairs {
					d.Set(p.Key, p.Value)
				}
			case *List:
				for _, item := range v.Elements {
					pair, ok := item.(*List)
					if !ok || len(pair.Elements) != 2 {
						return newError("dict() requires pairs")
					}
					d.Set(pair.Elements[0], pair.Elements[1])
				}
			default:
				return newError("dict() requires a dict or a list of pairs")
			}
		}
		return d
	})
	register("chr", func(in *Interpreter, args ...Object) Object {
		n, ok := intArg(args, 0)
		if !ok {
			return newError("chr() requires an integer")
		}
		if n < 0 || n > 0x10FFFF {
			return newError("chr() arg not in range")
		}
		r := rune(n)
		if !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		return NewString(string(r))
	})
	register("ord", func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok || utf8.RuneCountInString(s) != 1 {
			return newError("ord() requires a single character string")
		}
		r, _ := utf8.DecodeRuneInString(s)
		return NewInteger(int64(r))
	})
	register("hex", radixBuiltin("hex", "0x", 16))
	register("bin", radixBuiltin("bin", "0b", 2))
	register("oct", radixBuiltin("oct", "0o", 8))
	register("round", builtinRound)
	register("pow", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("pow() requires two numbers")
		}
		if mod, ok := intArg(args, 2); ok {
			base, ok1 := intArg(args, 0)
			exp, ok2 := intArg(args, 1)
			if !ok1 || !ok2 || exp < 0 || mod == 0 {
				return newError("pow() with a modulus requires non-negative integers")
			}
			result, b := int64(1), base%mod
			for ; exp > 0; exp >>= 1 {
				if exp&1 == 1 {
					result = result * b % mod
				}
				b = b * b % mod
			}
			return NewInteger(result)
		}
		return evalInfixExpression("**", args[0], args[1])
	})
	register("divmod", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("divmod() requires two numbers")
		}
		q := evalInfixExpression("//", args[0], args[1])
		if isError(q) {
			return q
		}
		return NewList(q, evalInfixExpression("%", args[0], args[1]))
	})
	register("slice", builtinSlice)
	register("iter", func(in *Interpreter, args ...Object) Object {
		items, ok := iterate(firstArg(args))
		if !ok {
			return newError("iter() requires an iterable")
		}
		return &List{Elements: append([]Object(nil), items...)}
	})
	register("next", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok {
			return newError("next() requires a list")
		}
		if len(l.Elements) == 0 {
			if len(args) > 1 {
				return args[1]
			}
			return newError("StopIteration")
		}
		return l.Elements[0]
	})
	register("keys", func(in *Interpreter, args ...Object) Object {
		d, ok := dictArg(args, 0)
		if !ok {
			return newError("keys() requires a dict")
		}
		keys, _ := iterate(d)
		return &List{Elements: keys}
	})
	register("values", func(in *Interpreter, args ...Object) Object {
		d, ok := dictArg(args, 0)
		if !ok {
			return newError("values() requires a dict")
		}
		out := make([]Object, len(d.Pairs))
		for i, p := range d.Pairs {
			out[i] = p.Value
		}
		return &List{Elements: out}
	})
	register("items", func(in *Interpreter, args ...Object) Object {
		d, ok := dictArg(args, 0)
		if !ok {
			return newError("items() requires a dict")
		}
		out := make([]Object, len(d.Pairs))
		for i, p := range d.Pairs {
			out[i] = NewList(p.Key, p.Value)
		}
		return &List{Elements: out}
	})
	register("get", func(in *Interpreter, args ...Object) Object {
		d, ok := dictArg(args, 0)
		if !ok || len(args) < 2 {
			return newError("get() requires a dict and a key")
		}
		if v, found := d.Get(args[1]); found {
			return v
		}
		if len(args) > 2 {
			return args[2]
		}
		return NULL
	})
}

func firstArg(args []Object) Object {
	if len(args) == 0 {
		return NULL
	}
	return args[0]
}

func builtinPrint(in *Interpreter, args ...Object) Object {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	in.print(strings.Join(parts, " "))
	return NULL
}

func builtinInput(in *Interpreter, args ...Object) Object {
	if prompt, ok := arg(args, 0); ok && in.stdout != nil {
		fmt.Fprint(in.stdout, prompt.Inspect())
	}
	line, err := in.stdin.ReadString('\n')
	if err != nil && line == "" {
		return NewString("")
	}
	return NewString(strings.TrimRight(line, "\r\n"))
}

func builtinLen(in *Interpreter, args ...Object) Object {
	switch v := firstArg(args).(type) {
	case *List:
		return NewInteger(int64(len(v.Elements)))
	case *String:
		return NewInteger(int64(utf8.RuneCountInString(v.Value)))
	case *Dict:
		return NewInteger(int64(len(v.Pairs)))
	case *Instance:
		return NewInteger(int64(len(v.order)))
	}
	return newError("len() requires a list, string, or dict")
}

func builtinRange(in *Interpreter, args ...Object) Object {
	var start, end, step int64 = 0, 0, 1
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := a.(*Integer)
		if !ok {
			return newError("range() requires 1-3 integer arguments")
		}
		nums[i] = n.Value
	}
	switch len(nums) {
	case 1:
		end = nums[0]
	case 2:
		start, end = nums[0], nums[1]
	case 3:
		start, end, step = nums[0], nums[1], nums[2]
		if step == 0 {
			return newError("range() step must not be zero")
		}
	default:
		return newError("range() requires 1-3 integer arguments")
	}
	var out []Object
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		out = append(out, NewInteger(i))
	}
	return NewList(out...)
}

func builtinInt(in *Interpreter, args ...Object) Object {
	switch v := firstArg(args).(type) {
	case *Integer:
		return v
	case *Float:
		return NewInteger(int64(v.Value))
	case *Boolean:
		if v.Value {
			return ONE
		}
		return ZERO
	case *String:
		s := strings.TrimSpace(v.Value)
		if base, ok := intArg(args, 1); ok {
			n, err := strconv.ParseInt(s, int(base), 64)
			if err != nil {
				return newError("Cannot convert to int")
			}
			return NewInteger(n)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return newError("Cannot convert to int")
		}
		return NewInteger(n)
	}
	return newError("int() requires a number or string")
}

func builtinFloat(in *Interpreter, args ...Object) Object {
	switch v := firstArg(args).(type) {
	case *Integer:
		return NewFloat(float64(v.Value))
	case *Float:
		return v
	case *String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
		if err != nil {
			return newError("Cannot convert to float")
		}
		return NewFloat(f)
	}
	return newError("float() requires a number or string")
}

// extremum implements min (sign -1) and max (sign 1) over a list argument
// or over the arguments themselves.
func extremum(name string, args []Object, sign int) Object {
	if len(args) == 0 {
		return newError("%s() requires arguments", name)
	}
	items := args
	if l, ok := args[0].(*List); ok && len(args) == 1 {
		items = l.Elements
	}
	if len(items) == 0 {
		return newError("%s() requires non-empty sequence", name)
	}
	best := items[0]
	for _, v := range items[1:] {
		if compareObjects(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func builtinSum(in *Interpreter, args ...Object) Object {
	l, ok := listArg(args, 0)
	if !ok {
		return newError("sum() requires a list")
	}
	var total Object = ZERO
	if start, ok := arg(args, 1); ok {
		total = start
	}
	for _, item := range l.Elements {
		switch item.(type) {
		case *Integer, *Float:
			total = evalInfixExpression("+", total, item)
		}
	}
	return total
}

func builtinSorted(in *Interpreter, args ...Object) Object {
	source, ok := arg(args, 0)
	if !ok {
		return newError("sorted() requires a list")
	}
	items, ok := iterate(source)
	if !ok {
		return newError("sorted() requires a list")
	}
	items = append([]Object(nil), items...)

	keys := items
	if keyFn, ok := arg(args, 1); ok {
		keys = make([]Object, len(items))
		for i, item := range items {
			k := in.applyFunction(keyFn, []Object{item}, nil)
			if isError(k) {
				return k
			}
			keys[i] = k
		}
	}
	reverse := false
	if r, ok := arg(args, 2); ok {
		reverse = isTruthy(r)
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compareObjects(keys[idx[a]], keys[idx[b]])
		if reverse {
			return c > 0
		}
		return c < 0
	})
	out := make([]Object, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return &List{Elements: out}
}

func builtinIsInstance(in *Interpreter, args ...Object) Object {
	if len(args) < 2 {
		return FALSE
	}
	switch t := args[1].(type) {
	case *Class:
		inst, ok := args[0].(*Instance)
		if !ok {
			return FALSE
		}
		seen := map[string]bool{}
		for name := inst.Class; name != "" && !seen[name]; {
			if name == t.Name {
				return TRUE
			}
			seen[name] = true
			class, ok := in.classes[name]
			if !ok {
				break
			}
			name = class.Parent
		}
		return FALSE
	case *BuiltinFunction:
		return nativeBoolToBooleanObject(typeName(args[0]) == t.Name)
	case *String:
		return nativeBoolToBooleanObject(typeName(args[0]) == t.Value)
	}
	return FALSE
}

func radixBuiltin(name, prefix string, base int) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		n, ok := intArg(args, 0)
		if !ok {
			return newError("%s() requires an integer", name)
		}
		if n < 0 {
			return NewString("-" + prefix + strconv.FormatInt(-n, base))
		}
		return NewString(prefix + strconv.FormatInt(n, base))
	}
}

func builtinRound(in *Interpreter, args ...Object) Object {
	switch v := firstArg(args).(type) {
	case *Integer:
		return v
	case *Float:
		if digits, ok := intArg(args, 1); ok {
			factor := math.Pow(10, float64(digits))
			return NewFloat(math.Round(v.Value*factor) / factor)
		}
		return NewInteger(int64(math.Round(v.Value)))
	}
	return newError("round() requires a number")
}

// builtinSlice takes seq[start:end] with Python-style clamping of negative
// and out-of-range bounds.
func builtinSlice(in *Interpreter, args ...Object) Object {
	if len(args) == 0 {
		return newError("slice() requires a list or string")
	}
	var n int
	var runes []rune
	switch v := args[0].(type) {
	case *List:
		n = len(v.Elements)
	case *String:
		runes = []rune(v.Value)
		n = len(runes)
	default:
		return newError("slice() requires a list or string")
	}
	bound := func(i int, def int) int {
		o, ok := arg(args, i)
		if !ok {
			return def
		}
		x, ok := o.(*Integer)
		if !ok {
			return def
		}
		b := int(x.Value)
		if b < 0 {
			b += n
		}
		if b < 0 {
			b = 0
		}
		if b > n {
			b = n
		}
		return b
	}
	start, end := bound(1, 0), bound(2, n)
	if end < start {
		end = start
	}
	if l, ok := args[0].(*List); ok {
		return &List{Elements: append([]Object(nil), l.Elements[start:end]...)}
	}
	return NewString(string(runes[start:end]))
}

func unique(items []Object) []Object {
	out := make([]Object, 0, len(items))
	for _, item := range items {
		dup := false
		for _, seen := range out {
			if objectsEqual(seen, item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out
}
