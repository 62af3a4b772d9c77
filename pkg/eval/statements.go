package eval

import (
	"poly/pkg/ast"
)

// execStatement runs one statement. Let and assignment yield None; errors
// leave here stamped with the statement's position.
func (in *Interpreter) execStatement(stmt ast.Statement) Object {
	result := in.exec(stmt)
	if err, ok := result.(*ErrorObj); ok && err.Line == 0 {
		err.Line, err.Column = stmt.Line(), stmt.Column()
	}
	return result
}

func (in *Interpreter) exec(stmt ast.Statement) Object {
	switch node := stmt.(type) {
	case *ast.ExpressionStatement:
		return in.Eval(node.Expression)

	case *ast.LetStatement:
		val := in.Eval(node.Value)
		if isError(val) {
			return val
		}
		in.env.Set(node.Name.Value, val)
		return NULL

	case *ast.AssignmentStatement:
		val := in.Eval(node.Value)
		if isError(val) {
			return val
		}
		in.env.Set(node.Name.Value, val)
		return NULL

	case *ast.IndexAssignStatement:
		return in.execIndexAssign(node)

	case *ast.AttributeAssignStatement:
		val := in.Eval(node.Value)
		if isError(val) {
			return val
		}
		target := in.Eval(node.Object)
		if isError(target) {
			return target
		}
		inst, ok := target.(*Instance)
		if !ok {
			return newError("Cannot set attribute '%s' on %s", node.Attribute.Value, typeName(target))
		}
		updated := inst.Copy()
		updated.Set(node.Attribute.Value, val)
		if err := in.assignTo(node.Object, updated); err != nil {
			return err
		}
		return NULL

	case *ast.ReturnStatement:
		if node.ReturnValue == nil {
			return &ReturnValue{Value: NULL}
		}
		val := in.Eval(node.ReturnValue)
		if isError(val) {
			return val
		}
		return &ReturnValue{Value: val}

	case *ast.IfStatement:
		return in.execIf(node)

	case *ast.WhileStatement:
		return in.execWhile(node)

	case *ast.ForStatement:
		return in.execFor(node)

	case *ast.FunctionStatement:
		in.globals.Set(node.Name.Value, &Function{
			Name:       node.Name.Value,
			Parameters: node.Parameters,
			Body:       node.Body,
		})
		return NULL

	case *ast.ClassStatement:
		return in.defineClass(node)

	case *ast.ImportStatement:
		return in.importModule(node.Module)

	case *ast.FromImportStatement:
		return in.fromImport(node.Module, node.Names)

	case *ast.PassStatement:
		return NULL

	case *ast.BreakStatement:
		return BREAK

	case *ast.ContinueStatement:
		return CONTINUE

	case *ast.TryStatement:
		return in.execTry(node)

	case *ast.RaiseStatement:
		if node.Value == nil {
			return newError("Exception")
		}
		val := in.Eval(node.Value)
		if isError(val) {
			return val
		}
		return &ErrorObj{Message: val.Inspect()}

	case *ast.BlockStatement:
		return in.execBlock(node)
	}
	return newError("Unsupported statement: %s", stmt.String())
}

// execBlock runs statements until one of them produces an error, a return
// or a loop signal, which it hands to the caller.
func (in *Interpreter) execBlock(block *ast.BlockStatement) Object {
	var result Object = NULL
	if block == nil {
		return result
	}
	for _, stmt := range block.Statements {
		result = in.execStatement(stmt)
		switch result.Kind() {
		case KindReturnValue, KindError, KindBreak, KindContinue:
			return result
		}
	}
	return result
}

func (in *Interpreter) execIf(node *ast.IfStatement) Object {
	cond := in.Eval(node.Condition)
	if isError(cond) {
		return cond
	}
	if isTruthy(cond) {
		return in.execBlock(node.Consequence)
	}
	for _, elif := range node.Elifs {
		cond := in.Eval(elif.Condition)
		if isError(cond) {
			return cond
		}
		if isTruthy(cond) {
			return in.execBlock(elif.Body)
		}
	}
	if node.Alternative != nil {
		return in.execBlock(node.Alternative)
	}
	return NULL
}

func (in *Interpreter) execWhile(node *ast.WhileStatement) Object {
	for {
		cond := in.Eval(node.Condition)
		if isError(cond) {
			return cond
		}
		if !isTruthy(cond) {
			return NULL
		}
		res := in.execBlock(node.Body)
		switch res.Kind() {
		case KindReturnValue, KindError:
			return res
		case KindBreak:
			return NULL
		}
	}
}

func (in *Interpreter) execFor(node *ast.ForStatement) Object {
	iterable := in.Eval(node.Iterable)
	if isError(iterable) {
		return iterable
	}
	items, ok := iterate(iterable)
	if !ok {
		return newError("Can only iterate over list, string, or dict")
	}
	for _, item := range items {
		in.env.Set(node.Variable.Value, item)
		res := in.execBlock(node.Body)
		switch res.Kind() {
		case KindReturnValue, KindError:
			return res
		case KindBreak:
			return NULL
		}
	}
	return NULL
}

// iterate yields the elements of a list, the characters of a string or the
// keys of a dict.
func iterate(obj Object) ([]Object, bool) {
	switch o := obj.(type) {
	case *List:
		return o.Elements, true
	case *String:
		return stringChars(o.Value), true
	case *Dict:
		keys := make([]Object, len(o.Pairs))
		for i, p := range o.Pairs {
			keys[i] = p.Key
		}
		return keys, true
	}
	return nil, false
}

func stringChars(s string) []Object {
	out := make([]Object, 0, len(s))
	for _, r := range s {
		out = append(out, NewString(string(r)))
	}
	return out
}

// execTry catches every error raised in the body regardless of the named
// exception type. The finally block runs on every path.
func (in *Interpreter) execTry(node *ast.TryStatement) Object {
	result := in.execBlock(node.Body)
	if err, ok := result.(*ErrorObj); ok && node.Handler != nil {
		if node.ExceptName != "" {
			in.env.Set(node.ExceptName, NewString(err.Message))
		}
		result = in.execBlock(node.Handler)
	}
	if node.Finally != nil {
		fin := in.execBlock(node.Finally)
		switch fin.Kind() {
		case KindReturnValue, KindError, KindBreak, KindContinue:
			return fin
		}
	}
	switch result.Kind() {
	case KindReturnValue, KindError, KindBreak, KindContinue:
		return result
	}
	return NULL
}

func (in *Interpreter) defineClass(node *ast.ClassStatement) Object {
	class := &Class{Name: node.Name.Value, Methods: map[string]*Function{}}
	if node.Parent != nil {
		class.Parent = node.Parent.Value
	}
	for _, m := range node.Methods {
		class.Methods[m.Name.Value] = &Function{Name: m.Name.Value, Parameters: m.Parameters, Body: m.Body}
	}
	in.classes[class.Name] = class
	in.globals.Set(class.Name, class)
	return NULL
}

// findMethod resolves name on class and then along its parent chain.
func (in *Interpreter) findMethod(className, name string) (*Function, bool) {
	seen := map[string]bool{}
	for className != "" && !seen[className] {
		seen[className] = true
		class, ok := in.classes[className]
		if !ok {
			return nil, false
		}
		if m, ok := class.Methods[name]; ok {
			return m, true
		}
		className = class.Parent
	}
	return nil, false
}

func (in *Interpreter) execIndexAssign(node *ast.IndexAssignStatement) Object {
	index := in.Eval(node.Index)
	if isError(index) {
		return index
	}
	val := in.Eval(node.Value)
	if isError(val) {
		return val
	}
	target := in.Eval(node.Target)
	if isError(target) {
		return target
	}
	updated := setIndex(target, index, val)
	if isError(updated) {
		return updated
	}
	if err := in.assignTo(node.Target, updated); err != nil {
		return err
	}
	return NULL
}

// setIndex returns a copy of container with index bound to val.
func setIndex(container, index, val Object) Object {
	switch c := container.(type) {
	case *List:
		i, ok := index.(*Integer)
		if !ok {
			return newError("List indices must be integers, not %s", typeName(index))
		}
		pos, ok := normalizeIndex(i.Value, len(c.Elements))
		if !ok {
			return newError("Index out of bounds")
		}
		elems := append([]Object(nil), c.Elements...)
		elems[pos] = val
		return &List{Elements: elems}
	case *Dict:
		d := c.Copy()
		d.Set(index, val)
		return d
	}
	return newError("Invalid index assignment on %s", typeName(container))
}

// assignTo stores value into the place target names: a variable, an
// attribute of an assignable instance or an element of an assignable
// container. Anything else is a temporary and the write is dropped.
func (in *Interpreter) assignTo(target ast.Expression, value Object) *ErrorObj {
	switch t := target.(type) {
	case *ast.Identifier:
		in.env.Set(t.Value, value)
	case *ast.MemberExpression:
		owner := in.Eval(t.Object)
		if err, ok := owner.(*ErrorObj); ok {
			return err
		}
		inst, ok := owner.(*Instance)
		if !ok {
			return nil
		}
		updated := inst.Copy()
		updated.Set(t.Property.Value, value)
		return in.assignTo(t.Object, updated)
	case *ast.IndexExpression:
		owner := in.Eval(t.Left)
		if err, ok := owner.(*ErrorObj); ok {
			return err
		}
		index := in.Eval(t.Index)
		if err, ok := index.(*ErrorObj); ok {
			return err
		}
		updated := setIndex(owner, index, value)
		if err, ok := updated.(*ErrorObj); ok {
			return err
		}
		return in.assignTo(t.Left, updated)
	}
	return nil
}
