package eval

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"poly/pkg/ast"
)

// Eval evaluates an expression in the current scope.
func (in *Interpreter) Eval(node ast.Expression) Object {
	switch node := node.(type) {
	case *ast.Identifier:
		if val, ok := in.env.Get(node.Value); ok {
			return val
		}
		return newError("Undefined variable: %s%s", node.Value, in.suggest(node.Value))

	case *ast.IntegerLiteral:
		return NewInteger(node.Value)

	case *ast.FloatLiteral:
		return NewFloat(node.Value)

	case *ast.StringLiteral:
		return NewString(node.Value)

	case *ast.Boolean:
		return nativeBoolToBooleanObject(node.Value)

	case *ast.NoneLiteral:
		return NULL

	case *ast.FStringLiteral:
		var out strings.Builder
		for _, part := range node.Parts {
			if part.Expr == nil {
				out.WriteString(part.Literal)
				continue
			}
			val := in.Eval(part.Expr)
			if isError(val) {
				return val
			}
			out.WriteString(val.Inspect())
		}
		return NewString(out.String())

	case *ast.InfixExpression:
		return in.evalInfix(node)

	case *ast.PrefixExpression:
		right := in.Eval(node.Right)
		if isError(right) {
			return right
		}
		return evalPrefixExpression(node.Operator, right)

	case *ast.TernaryExpression:
		cond := in.Eval(node.Condition)
		if isError(cond) {
			return cond
		}
		if isTruthy(cond) {
			return in.Eval(node.Consequence)
		}
		return in.Eval(node.Alternative)

	case *ast.ListLiteral:
		elems, err := in.evalExpressions(node.Elements)
		if err != nil {
			return err
		}
		return &List{Elements: elems}

	case *ast.DictLiteral:
		d := NewDict()
		for _, pair := range node.Pairs {
			key := in.Eval(pair.Key)
			if isError(key) {
				return key
			}
			val := in.Eval(pair.Value)
			if isError(val) {
				return val
			}
			d.Set(key, val)
		}
		return d

	case *ast.ListComprehension:
		return in.evalListComprehension(node)

	case *ast.IndexExpression:
		left := in.Eval(node.Left)
		if isError(left) {
			return left
		}
		index := in.Eval(node.Index)
		if isError(index) {
			return index
		}
		return evalIndexExpression(left, index)

	case *ast.MemberExpression:
		target := in.Eval(node.Object)
		if isError(target) {
			return target
		}
		return in.getAttribute(target, node.Property.Value)

	case *ast.CallExpression:
		return in.evalCall(node)

	case *ast.LambdaExpression:
		return &Function{Name: "<lambda>", Parameters: node.Parameters, Expression: node.Body}

	case *ast.WidgetLiteral:
		return in.evalWidget(node)
	}
	if node == nil {
		return NULL
	}
	return newError("Unsupported expression: %s", node.String())
}

func (in *Interpreter) evalExpressions(exps []ast.Expression) ([]Object, *ErrorObj) {
	result := make([]Object, 0, len(exps))
	for _, e := range exps {
		val := in.Eval(e)
		if err, ok := val.(*ErrorObj); ok {
			return nil, err
		}
		result = append(result, val)
	}
	return result, nil
}

// evalInfix short-circuits `and`/`or`, which yield the deciding operand.
func (in *Interpreter) evalInfix(node *ast.InfixExpression) Object {
	left := in.Eval(node.Left)
	if isError(left) {
		return left
	}
	switch node.Operator {
	case "and":
		if !isTruthy(left) {
			return left
		}
		return in.Eval(node.Right)
	case "or":
		if isTruthy(left) {
			return left
		}
		return in.Eval(node.Right)
	}
	right := in.Eval(node.Right)
	if isError(right) {
		return right
	}
	return evalInfixExpression(node.Operator, left, right)
}

func (in *Interpreter) evalListComprehension(node *ast.ListComprehension) Object {
	iterable := in.Eval(node.Iterable)
	if isError(iterable) {
		return iterable
	}
	list, ok := iterable.(*List)
	if !ok {
		return newError("List comprehension requires iterable")
	}

	in.pushScope()
	defer in.popScope()

	result := make([]Object, 0, len(list.Elements))
	for _, item := range list.Elements {
		in.env.Set(node.Variable.Value, item)
		if node.Condition != nil {
			cond := in.Eval(node.Condition)
			if isError(cond) {
				return cond
			}
			if !isTruthy(cond) {
				continue
			}
		}
		val := in.Eval(node.Element)
		if isError(val) {
			return val
		}
		result = append(result, val)
	}
	return &List{Elements: result}
}

func evalIndexExpression(left, index Object) Object {
	switch l := left.(type) {
	case *List:
		i, ok := index.(*Integer)
		if !ok {
			return newError("Invalid index operation")
		}
		pos, ok := normalizeIndex(i.Value, len(l.Elements))
		if !ok {
			return newError("Index out of bounds")
		}
		return l.Elements[pos]
	case *Dict:
		if val, ok := l.Get(index); ok {
			return val
		}
		return newError("Key not found: %s", index.Inspect())
	case *String:
		i, ok := index.(*Integer)
		if !ok {
			return newError("Invalid index operation")
		}
		runes := []rune(l.Value)
		pos, ok := normalizeIndex(i.Value, len(runes))
		if !ok {
			return newError("Index out of bounds")
		}
		return NewString(string(runes[pos]))
	case *Instance:
		if key, ok := index.(*String); ok {
			if val, ok := l.Get(key.Value); ok {
				return val
			}
			return newError("Key not found: %s", key.Value)
		}
	}
	return newError("Invalid index operation")
}

// normalizeIndex resolves a possibly negative index against length n.
func normalizeIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

// getAttribute resolves target.name. Instances expose fields and then
// methods; dicts expose their string keys; strings, lists and dicts expose
// bound built-in methods.
func (in *Interpreter) getAttribute(target Object, name string) Object {
	switch t := target.(type) {
	case *Instance:
		if val, ok := t.Get(name); ok {
			return val
		}
		if m, ok := in.findMethod(t.Class, name); ok {
			return m
		}
		return newError("No attribute '%s' on instance", name)
	case *Class:
		if m, ok := in.findMethod(t.Name, name); ok {
			return m
		}
		if name == "__name__" {
			return NewString(t.Name)
		}
	case *Dict:
		if val, ok := t.GetString(name); ok {
			return val
		}
	case *Widget:
		switch name {
		case "kind", "type":
			return NewString(t.Type)
		case "children":
			children := make([]Object, len(t.Children))
			for i, c := range t.Children {
				children[i] = c
			}
			return &List{Elements: children}
		}
		if val, ok := t.Prop(name); ok {
			return val
		}
	}
	if fn, ok := boundMethod(target, name); ok {
		return fn
	}
	return newError("No attribute '%s' on %s", name, typeName(target))
}

func (in *Interpreter) evalWidget(node *ast.WidgetLiteral) Object {
	w := &Widget{Type: node.Kind}
	for _, prop := range node.Props {
		val := in.Eval(prop.Value)
		if isError(val) {
			return val
		}
		w.Props = append(w.Props, WidgetProp{Name: prop.Name, Value: val})
	}
	for _, child := range node.Children {
		val := in.evalWidgetChild(child)
		if isError(val) {
			return val
		}
		if cw, ok := val.(*Widget); ok {
			w.Children = append(w.Children, cw)
			continue
		}
		w.Children = append(w.Children, &Widget{
			Type:  "Text",
			Props: []WidgetProp{{Name: "text", Value: val}},
		})
	}
	return w
}

// evalWidgetChild evaluates one child of a widget block. A call to an
// undefined capitalized name, such as Text("hi"), is a leaf widget.
func (in *Interpreter) evalWidgetChild(child ast.Expression) Object {
	call, ok := child.(*ast.CallExpression)
	if !ok {
		return in.Eval(child)
	}
	ident, ok := call.Function.(*ast.Identifier)
	if !ok || ident.Value == "" || !unicode.IsUpper(rune(ident.Value[0])) {
		return in.Eval(child)
	}
	if _, defined := in.env.Get(ident.Value); defined {
		return in.Eval(child)
	}
	args, kwargs, err := in.evalArguments(call)
	if err != nil {
		return err
	}
	w := &Widget{Type: ident.Value}
	for _, a := range args {
		if s, ok := a.(*String); ok {
			w.Props = append(w.Props, WidgetProp{Name: "text", Value: s})
			break
		}
	}
	if kwargs != nil {
		for _, p := range kwargs.Pairs {
			w.Props = append(w.Props, WidgetProp{Name: p.Key.Inspect(), Value: p.Value})
		}
	}
	return w
}

// suggest returns a " (did you mean 'x'?)" hint for an unknown name.
func (in *Interpreter) suggest(name string) string {
	if len(name) < 2 {
		return ""
	}
	matches := fuzzy.RankFindFold(name, in.env.Names())
	if len(matches) == 0 {
		for _, candidate := range in.env.Names() {
			if fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(candidate)) <= 2 && len(candidate) > 2 {
				return " (did you mean '" + candidate + "'?)"
			}
		}
		return ""
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Distance < best.Distance || (m.Distance == best.Distance && m.Target < best.Target) {
			best = m
		}
	}
	return " (did you mean '" + best.Target + "'?)"
}
