package eval

import (
	"math"
	"time"
)

// module is a built-in importable module. Importing it binds every
// function as a global under its flat name (math_sqrt) and binds the
// module name to a dict holding the constants and the functions under
// their short names (math.sqrt).
type module struct {
	constants map[string]Object
	funcs     []moduleFunc
}

type moduleFunc struct {
	global string
	short  string
	def    builtinDef
}

var modules = map[string]*module{}

func init() {
	modules["math"] = &module{
		constants: map[string]Object{
			"pi":  NewFloat(math.Pi),
			"e":   NewFloat(math.E),
			"tau": NewFloat(2 * math.Pi),
			"inf": NewFloat(math.Inf(1)),
			"nan": NewFloat(math.NaN()),
		},
		funcs: []moduleFunc{
			{"math_sqrt", "sqrt", builtinDef{fn: floatFunc("sqrt", math.Sqrt)}},
			{"math_sin", "sin", builtinDef{fn: floatFunc("sin", math.Sin)}},
			{"math_cos", "cos", builtinDef{fn: floatFunc("cos", math.Cos)}},
			{"math_tan", "tan", builtinDef{fn: floatFunc("tan", math.Tan)}},
			{"math_log", "log", builtinDef{fn: floatFunc("log", math.Log)}},
			{"math_exp", "exp", builtinDef{fn: floatFunc("exp", math.Exp)}},
			{"math_floor", "floor", builtinDef{fn: roundingFunc("floor", math.Floor)}},
			{"math_ceil", "ceil", builtinDef{fn: roundingFunc("ceil", math.Ceil)}},
		},
	}
	modules["random"] = &module{
		funcs: []moduleFunc{
			{"random", "random", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				return NewFloat(in.rng.Float64())
			}}},
			{"randint", "randint", builtinDef{fn: builtinRandint}},
			{"uniform", "uniform", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				a, ok1 := numberArg(args, 0)
				b, ok2 := numberArg(args, 1)
				if !ok1 || !ok2 {
					return newError("uniform() requires two numbers")
				}
				return NewFloat(a + in.rng.Float64()*(b-a))
			}}},
			{"choice", "choice", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				l, ok := listArg(args, 0)
				if !ok || len(l.Elements) == 0 {
					return newError("choice() requires a non-empty list")
				}
				return l.Elements[in.rng.Intn(len(l.Elements))]
			}}},
			{"shuffle", "shuffle", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				l, ok := listArg(args, 0)
				if !ok {
					return newError("shuffle() requires a list")
				}
				elems := append([]Object(nil), l.Elements...)
				in.rng.Shuffle(len(elems), func(i, j int) { elems[i], elems[j] = elems[j], elems[i] })
				return &List{Elements: elems}
			}}},
		},
	}
	modules["time"] = &module{
		funcs: []moduleFunc{
			{"time", "time", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				return NewFloat(float64(time.Now().UnixNano()) / 1e9)
			}}},
			{"sleep", "sleep", builtinDef{fn: func(in *Interpreter, args ...Object) Object {
				secs, ok := numberArg(args, 0)
				if !ok {
					return newError("sleep() requires a number")
				}
				if secs > 0 {
					time.Sleep(time.Duration(secs * float64(time.Second)))
				}
				return NULL
			}}},
		},
	}
	modules["json"] = &module{
		funcs: []moduleFunc{
			{"json_dumps", "dumps", builtinDef{fn: builtinJSONStringify, params: []string{"value", "indent"}}},
			{"json_loads", "loads", builtinDef{fn: builtinJSONParse}},
		},
	}
}

func floatFunc(name string, fn func(float64) float64) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		x, ok := numberArg(args, 0)
		if !ok {
			return newError("%s() requires a number", name)
		}
		return NewFloat(fn(x))
	}
}

func roundingFunc(name string, fn func(float64) float64) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		switch v := firstArg(args).(type) {
		case *Integer:
			return v
		case *Float:
			return NewInteger(int64(fn(v.Value)))
		}
		return newError("%s() requires a number", name)
	}
}

func builtinRandint(in *Interpreter, args ...Object) Object {
	a, ok1 := intArg(args, 0)
	b, ok2 := intArg(args, 1)
	if !ok1 || !ok2 {
		return newError("randint() requires two integers")
	}
	if b < a {
		return newError("randint() empty range (%d, %d)", a, b)
	}
	span := b - a + 1
	if span <= 0 {
		return newError("randint() range too large (%d, %d)", a, b)
	}
	return NewInteger(a + in.rng.Int63n(span))
}

// importModule binds a built-in module or runs baseDir/name.poly in the
// current scope.
func (in *Interpreter) importModule(name string) Object {
	mod, ok := modules[name]
	if !ok {
		return in.importFile(name)
	}
	namespace := NewDict()
	for _, k := range sortedKeys(mod.constants) {
		namespace.SetString(k, mod.constants[k])
	}
	ownName := false
	for _, f := range mod.funcs {
		fn := f.def.object(f.global)
		in.globals.Set(f.global, fn)
		namespace.SetString(f.short, fn)
		ownName = ownName || f.global == name
	}
	// random and time keep a function under the module's own name.
	if !ownName {
		in.globals.Set(name, namespace)
	}
	return NULL
}

// fromImport imports module and binds each requested name that the
// module namespace provides. Names from a file module are already in
// scope once it ran.
func (in *Interpreter) fromImport(name string, names []string) Object {
	if res := in.importModule(name); isError(res) {
		return res
	}
	if _, builtin := modules[name]; !builtin {
		return NULL
	}
	var ns *Dict
	if v, ok := in.globals.Get(name); ok {
		ns, _ = v.(*Dict)
	}
	for _, n := range names {
		if n == "*" {
			continue
		}
		var val Object
		if ns != nil {
			val, _ = ns.GetString(n)
		}
		if val == nil {
			if fn, ok := in.globals.Get(n); ok {
				val = fn
			}
		}
		if val == nil {
			return newError("cannot import name '%s' from '%s'", n, name)
		}
		in.env.Set(n, val)
	}
	return NULL
}
