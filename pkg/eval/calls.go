package eval

import (
	"poly/pkg/ast"
)

func (in *Interpreter) evalCall(node *ast.CallExpression) Object {
	if member, ok := node.Function.(*ast.MemberExpression); ok {
		target := in.Eval(member.Object)
		if isError(target) {
			return target
		}
		name := member.Property.Value

		if inst, ok := target.(*Instance); ok {
			if _, isField := inst.Get(name); !isField {
				if method, ok := in.findMethod(inst.Class, name); ok {
					args, kwargs, err := in.evalArguments(node)
					if err != nil {
						return err
					}
					result, self := in.callFunction(method, inst, args, kwargs)
					// Only a receiver held in a plain variable sees the
					// method's changes to self.
					if ident, ok := member.Object.(*ast.Identifier); ok && self != nil && !isError(result) {
						in.env.Set(ident.Value, self)
					}
					return result
				}
			}
		}

		if isMutator(target, name) {
			args, kwargs, err := in.evalArguments(node)
			if err != nil {
				return err
			}
			if kwargs != nil {
				args = append(args, kwargs)
			}
			updated, result := mutate(in, target, name, args)
			if isError(result) {
				return result
			}
			if werr := in.assignTo(member.Object, updated); werr != nil {
				return werr
			}
			return result
		}

		callee := in.getAttribute(target, name)
		if isError(callee) {
			return callee
		}
		args, kwargs, err := in.evalArguments(node)
		if err != nil {
			return err
		}
		return in.applyFunction(callee, args, kwargs)
	}

	callee := in.Eval(node.Function)
	if isError(callee) {
		return callee
	}
	args, kwargs, err := in.evalArguments(node)
	if err != nil {
		return err
	}
	return in.applyFunction(callee, args, kwargs)
}

// evalArguments evaluates positional arguments and collects keyword
// arguments into a dict, nil when there are none.
func (in *Interpreter) evalArguments(node *ast.CallExpression) ([]Object, *Dict, *ErrorObj) {
	args, err := in.evalExpressions(node.Arguments)
	if err != nil {
		return nil, nil, err
	}
	if len(node.Keywords) == 0 {
		return args, nil, nil
	}
	kwargs := NewDict()
	for _, kw := range node.Keywords {
		val := in.Eval(kw.Value)
		if e, ok := val.(*ErrorObj); ok {
			return nil, nil, e
		}
		kwargs.SetString(kw.Name, val)
	}
	return args, kwargs, nil
}

// applyFunction calls any callable value.
func (in *Interpreter) applyFunction(fn Object, args []Object, kwargs *Dict) Object {
	switch f := fn.(type) {
	case *Function:
		result, _ := in.callFunction(f, nil, args, kwargs)
		return result
	case *Class:
		return in.instantiate(f, args, kwargs)
	case *BuiltinFunction:
		return in.callBuiltin(f, args, kwargs)
	}
	return newError("Not a function: %s", typeName(fn))
}

func (in *Interpreter) callBuiltin(f *BuiltinFunction, args []Object, kwargs *Dict) Object {
	if f.Receiver != nil {
		args = append([]Object{f.Receiver}, args...)
	}
	if kwargs != nil && kwargs.Len() > 0 {
		if f.Params == nil {
			args = append(args, kwargs)
		} else {
			placed, err := placeKeywords(f.Name, f.Params, args, kwargs)
			if err != nil {
				return err
			}
			args = placed
		}
	}
	result := f.Fn(in, args...)
	if result == nil {
		return NULL
	}
	return result
}

// placeKeywords moves keyword arguments into the positional slots params
// names.
func placeKeywords(name string, params []string, args []Object, kwargs *Dict) ([]Object, *ErrorObj) {
	out := append([]Object(nil), args...)
	for _, p := range kwargs.Pairs {
		key := p.Key.Inspect()
		idx := -1
		for i, param := range params {
			if param == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, newError("%s() got an unexpected keyword argument '%s'", name, key)
		}
		if idx < len(args) {
			return nil, newError("%s() got multiple values for argument '%s'", name, key)
		}
		for len(out) <= idx {
			out = append(out, NULL)
		}
		out[idx] = p.Value
	}
	return out, nil
}

// callFunction runs fn in a fresh scope pushed over the current one. When
// self is non-nil the first parameter is bound to it, and the value of
// self after the body ran is returned alongside the result.
func (in *Interpreter) callFunction(fn *Function, self Object, args []Object, kwargs *Dict) (Object, Object) {
	if in.depth >= maxCallDepth {
		return newError("Maximum recursion depth exceeded in %s()", fn.Name), nil
	}
	in.depth++
	defer func() { in.depth-- }()

	params := fn.Parameters
	selfName := ""
	if self != nil {
		selfName = "self"
		if len(params) > 0 {
			selfName = params[0].Name.Value
			params = params[1:]
		}
	}

	if len(args) > len(params) {
		return newError("%s() takes at most %d argument(s) but %d were given", fn.Name, len(params), len(args)), nil
	}
	required := 0
	for _, p := range params {
		if p.Default == nil {
			required++
		}
	}
	if kwargs == nil && len(args) < required {
		return newError("%s() takes at least %d argument(s) but %d were given", fn.Name, required, len(args)), nil
	}
	if kwargs != nil {
		for _, pair := range kwargs.Pairs {
			key := pair.Key.Inspect()
			known := false
			for i, p := range params {
				if p.Name.Value == key {
					if i < len(args) {
						return newError("%s() got multiple values for argument '%s'", fn.Name, key), nil
					}
					known = true
					break
				}
			}
			if !known {
				return newError("%s() got an unexpected keyword argument '%s'", fn.Name, key), nil
			}
		}
	}

	in.pushScope()
	defer in.popScope()

	if self != nil {
		in.env.Set(selfName, self)
		if selfName != "self" {
			in.env.Set("self", self)
		}
	}

	// Defaults are evaluated per call, inside the new scope, so they see
	// the parameters bound before them.
	for i, p := range params {
		var val Object
		switch {
		case i < len(args):
			val = args[i]
		case kwargs != nil:
			if v, ok := kwargs.GetString(p.Name.Value); ok {
				val = v
			}
		}
		if val == nil {
			if p.Default == nil {
				return newError("Missing required argument: %s", p.Name.Value), nil
			}
			val = in.Eval(p.Default)
			if isError(val) {
				return val, nil
			}
		}
		in.env.Set(p.Name.Value, val)
	}

	var result Object = NULL
	if fn.Expression != nil {
		result = in.Eval(fn.Expression)
	} else {
		switch res := in.execBlock(fn.Body).(type) {
		case *ReturnValue:
			result = res.Value
		case *ErrorObj:
			result = res
		}
	}

	var updated Object
	if self != nil {
		updated, _ = in.env.Get(selfName)
	}
	return result, updated
}

// instantiate builds an instance of class and runs its __init__.
func (in *Interpreter) instantiate(class *Class, args []Object, kwargs *Dict) Object {
	inst := NewInstance(class.Name)
	init, ok := in.findMethod(class.Name, "__init__")
	if !ok {
		if len(args) > 0 {
			return newError("%s() takes no arguments", class.Name)
		}
		if kwargs != nil {
			for _, p := range kwargs.Pairs {
				inst.Set(p.Key.Inspect(), p.Value)
			}
		}
		return inst
	}
	result, self := in.callFunction(init, inst, args, kwargs)
	if isError(result) {
		return result
	}
	if updated, ok := self.(*Instance); ok {
		return updated
	}
	return inst
}
