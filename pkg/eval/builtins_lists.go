package eval

// The global list built-ins never change their argument: push, insert and
// friends return a new list. The method forms (xs.append(v)) write the new
// list back to the place the receiver came from.

func init() {
	register("push", listAppend("push"))
	register("append", listAppend("append"))
	register("pop", func(in *Interpreter, args ...Object) Object {
		switch c := firstArg(args).(type) {
		case *List:
			if len(c.Elements) == 0 {
				return newError("pop from empty list")
			}
			return c.Elements[len(c.Elements)-1]
		case *Dict:
			if len(args) < 2 {
				return newError("pop() requires a key")
			}
			if v, ok := c.Get(args[1]); ok {
				return v
			}
			if len(args) > 2 {
				return args[2]
			}
			return newError("Key not found: %s", args[1].Inspect())
		}
		return newError("pop() requires a list")
	})
	register("insert", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		idx, ok2 := intArg(args, 1)
		if !ok || !ok2 || len(args) < 3 {
			return newError("insert() requires a list, an index and a value")
		}
		return listInsert(l, idx, args[2])
	})
	register("remove", func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok || len(args) < 2 {
			return newError("remove() requires a list and a value")
		}
		out, _ := listRemove(l, args[1])
		return out
	})
	register("index", func(in *Interpreter, args ...Object) Object {
		if len(args) < 2 {
			return newError("index() requires a list and a value")
		}
		switch c := args[0].(type) {
		case *List:
			for i, e := range c.Elements {
				if objectsEqual(e, args[1]) {
					return NewInteger(int64(i))
				}
			}
			return NewInteger(-1)
		case *String:
			return in.callBuiltin(builtins["find"].object("find"), args, nil)
		}
		return newError("index() requires a list")
	})
	register("clear", func(in *Interpreter, args ...Object) Object {
		switch firstArg(args).(type) {
		case *List:
			return NewList()
		case *Dict:
			return NewDict()
		}
		return newError("clear() requires a list or dict")
	})
	register("copy", func(in *Interpreter, args ...Object) Object {
		switch c := firstArg(args).(type) {
		case *List:
			return &List{Elements: append([]Object(nil), c.Elements...)}
		case *Dict:
			return c.Copy()
		case *Instance:
			return c.Copy()
		}
		return newError("copy() requires a list or dict")
	})
	register("extend", func(in *Interpreter, args ...Object) Object {
		a, ok1 := listArg(args, 0)
		if !ok1 || len(args) < 2 {
			return newError("extend() requires two lists")
		}
		items, ok := iterate(args[1])
		if !ok {
			return newError("extend() requires two lists")
		}
		elems := append(append([]Object(nil), a.Elements...), items...)
		return &List{Elements: elems}
	})
}

func listAppend(name string) BuiltinFn {
	return func(in *Interpreter, args ...Object) Object {
		l, ok := listArg(args, 0)
		if !ok || len(args) < 2 {
			return newError("%s() requires a list and a value", name)
		}
		elems := make([]Object, 0, len(l.Elements)+1)
		elems = append(elems, l.Elements...)
		return &List{Elements: append(elems, args[1])}
	}
}

// listInsert clamps idx into [0, len] after resolving a negative index.
func listInsert(l *List, idx int64, val Object) *List {
	n := int64(len(l.Elements))
	if idx < 0 {
		idx += n
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n {
		idx = n
	}
	elems := make([]Object, 0, n+1)
	elems = append(elems, l.Elements[:idx]...)
	elems = append(elems, val)
	elems = append(elems, l.Elements[idx:]...)
	return &List{Elements: elems}
}

// listRemove drops the first element equal to val.
func listRemove(l *List, val Object) (*List, bool) {
	for i, e := range l.Elements {
		if objectsEqual(e, val) {
			elems := make([]Object, 0, len(l.Elements)-1)
			elems = append(elems, l.Elements[:i]...)
			return &List{Elements: append(elems, l.Elements[i+1:]...)}, true
		}
	}
	return l, false
}

var listMutators = map[string]bool{
	"append": true, "push": true, "pop": true, "insert": true, "remove": true,
	"clear": true, "extend": true, "sort": true, "reverse": true,
}

var dictMutators = map[string]bool{
	"pop": true, "clear": true, "update": true, "setdefault": true,
}

// listMethods and dictMethods are the non-mutating methods; each forwards
// to the global of the same name with the receiver first.
var listMethods = map[string]string{
	"index": "index",
	"count": "count",
	"copy":  "copy",
}

var dictMethods = map[string]string{
	"keys":   "keys",
	"values": "values",
	"items":  "items",
	"get":    "get",
	"copy":   "copy",
}

func isMutator(target Object, name string) bool {
	switch target.(type) {
	case *List:
		return listMutators[name]
	case *Dict:
		return dictMutators[name]
	}
	return false
}

// mutate applies a mutating method to a copy of target. It returns the
// changed container and the value the call itself evaluates to.
func mutate(in *Interpreter, target Object, name string, args []Object) (Object, Object) {
	switch t := target.(type) {
	case *List:
		return mutateList(in, t, name, args)
	case *Dict:
		return mutateDict(t, name, args)
	}
	return target, newError("No attribute '%s' on %s", name, typeName(target))
}

func mutateList(in *Interpreter, l *List, name string, args []Object) (Object, Object) {
	switch name {
	case "append", "push":
		if len(args) != 1 {
			return l, newError("%s() takes exactly one argument (%d given)", name, len(args))
		}
		return listAppend(name)(in, l, args[0]), NULL
	case "pop":
		if len(l.Elements) == 0 {
			return l, newError("pop from empty list")
		}
		idx := int64(-1)
		if i, ok := intArg(args, 0); ok {
			idx = i
		}
		pos, ok := normalizeIndex(idx, len(l.Elements))
		if !ok {
			return l, newError("pop index out of range")
		}
		elems := make([]Object, 0, len(l.Elements)-1)
		elems = append(elems, l.Elements[:pos]...)
		elems = append(elems, l.Elements[pos+1:]...)
		return &List{Elements: elems}, l.Elements[pos]
	case "insert":
		idx, ok := intArg(args, 0)
		if !ok || len(args) < 2 {
			return l, newError("insert() requires an index and a value")
		}
		return listInsert(l, idx, args[1]), NULL
	case "remove":
		if len(args) != 1 {
			return l, newError("remove() takes exactly one argument (%d given)", len(args))
		}
		out, found := listRemove(l, args[0])
		if !found {
			return l, newError("list.remove(x): x not in list")
		}
		return out, NULL
	case "clear":
		return NewList(), NULL
	case "extend":
		if len(args) != 1 {
			return l, newError("extend() takes exactly one argument (%d given)", len(args))
		}
		items, ok := iterate(args[0])
		if !ok {
			return l, newError("extend() requires an iterable")
		}
		return &List{Elements: append(append([]Object(nil), l.Elements...), items...)}, NULL
	case "sort":
		sortArgs := []Object{l, NULL, NULL}
		if len(args) > 0 {
			if kw, ok := args[len(args)-1].(*Dict); ok {
				if key, ok := kw.GetString("key"); ok {
					sortArgs[1] = key
				}
				if rev, ok := kw.GetString("reverse"); ok {
					sortArgs[2] = rev
				}
			}
		}
		sorted := builtinSorted(in, sortArgs...)
		if isError(sorted) {
			return l, sorted
		}
		return sorted, NULL
	case "reverse":
		n := len(l.Elements)
		elems := make([]Object, n)
		for i, e := range l.Elements {
			elems[n-1-i] = e
		}
		return &List{Elements: elems}, NULL
	}
	return l, newError("No attribute '%s' on list", name)
}

func mutateDict(d *Dict, name string, args []Object) (Object, Object) {
	switch name {
	case "pop":
		if len(args) == 0 {
			return d, newError("pop() requires a key")
		}
		v, ok := d.Get(args[0])
		if !ok {
			if len(args) > 1 {
				return d, args[1]
			}
			return d, newError("Key not found: %s", args[0].Inspect())
		}
		return d.Without(args[0]), v
	case "clear":
		return NewDict(), NULL
	case "update":
		c := d.Copy()
		for _, a := range args {
			other, ok := a.(*Dict)
			if !ok {
				return d, newError("update() requires a dict")
			}
			for _, p := range other.Pairs {
				c.Set(p.Key, p.Value)
			}
		}
		return c, NULL
	case "setdefault":
		if len(args) == 0 {
			return d, newError("setdefault() requires a key")
		}
		if v, ok := d.Get(args[0]); ok {
			return d, v
		}
		var def Object = NULL
		if len(args) > 1 {
			def = args[1]
		}
		c := d.Copy()
		c.Set(args[0], def)
		return c, def
	}
	return d, newError("No attribute '%s' on dict", name)
}

// boundMethod returns target.name as a callable with target bound as the
// receiver. A mutating method fetched this way (f = xs.append) cannot
// write back, so it yields the call's result only.
func boundMethod(target Object, name string) (Object, bool) {
	var table map[string]string
	switch target.(type) {
	case *String:
		table = stringMethods
	case *List:
		table = listMethods
	case *Dict:
		table = dictMethods
	default:
		return nil, false
	}
	if global, ok := table[name]; ok {
		def := builtins[global]
		return &BuiltinFunction{Name: name, Fn: def.fn, Params: def.params, Receiver: target}, true
	}
	if isMutator(target, name) {
		return &BuiltinFunction{
			Name: name,
			Fn: func(in *Interpreter, args ...Object) Object {
				_, result := mutate(in, args[0], name, args[1:])
				return result
			},
			Receiver: target,
		}, true
	}
	return nil, false
}
