package eval

import (
	"fmt"
	"math"
	"strings"
)

func evalPrefixExpression(operator string, right Object) Object {
	switch operator {
	case "-":
		switch r := right.(type) {
		case *Integer:
			return NewInteger(-r.Value)
		case *Float:
			return NewFloat(-r.Value)
		}
		return newError("Invalid unary operation: -%s", typeName(right))
	case "+":
		switch right.(type) {
		case *Integer, *Float:
			return right
		}
		return newError("Invalid unary operation: +%s", typeName(right))
	case "not", "!":
		return nativeBoolToBooleanObject(!isTruthy(right))
	}
	return newError("Unknown operator: %s%s", operator, typeName(right))
}

func evalInfixExpression(operator string, left, right Object) Object {
	switch operator {
	case "==":
		return nativeBoolToBooleanObject(objectsEqual(left, right))
	case "!=":
		return nativeBoolToBooleanObject(!objectsEqual(left, right))
	case "in":
		return evalMembership(left, right)
	}

	switch l := left.(type) {
	case *Integer:
		switch r := right.(type) {
		case *Integer:
			return evalIntegerInfixExpression(operator, l.Value, r.Value)
		case *Float:
			return evalFloatInfixExpression(operator, float64(l.Value), r.Value)
		case *String:
			if operator == "*" {
				return repeatString(r.Value, l.Value)
			}
		case *List:
			if operator == "*" {
				return repeatList(r, l.Value)
			}
		}
	case *Float:
		switch r := right.(type) {
		case *Integer:
			return evalFloatInfixExpression(operator, l.Value, float64(r.Value))
		case *Float:
			return evalFloatInfixExpression(operator, l.Value, r.Value)
		}
	case *String:
		switch r := right.(type) {
		case *String:
			return evalStringInfixExpression(operator, l.Value, r.Value)
		case *Integer:
			if operator == "*" {
				return repeatString(l.Value, r.Value)
			}
		}
	case *List:
		switch r := right.(type) {
		case *List:
			switch operator {
			case "+":
				elems := make([]Object, 0, len(l.Elements)+len(r.Elements))
				elems = append(elems, l.Elements...)
				return &List{Elements: append(elems, r.Elements...)}
			case "<", ">", "<=", ">=":
				return compareResult(operator, compareLists(l, r))
			}
		case *Integer:
			if operator == "*" {
				return repeatList(l, r.Value)
			}
		}
	}
	return newError("Invalid operation: %s %s %s", typeName(left), operator, typeName(right))
}

func evalIntegerInfixExpression(operator string, a, b int64) Object {
	switch operator {
	case "+":
		return NewInteger(a + b)
	case "-":
		return NewInteger(a - b)
	case "*":
		return NewInteger(a * b)
	case "/":
		if b == 0 {
			return newError("Division by zero")
		}
		return NewFloat(float64(a) / float64(b))
	case "//":
		if b == 0 {
			return newError("Division by zero")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return NewInteger(q)
	case "%":
		if b == 0 {
			return newError("Division by zero")
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return NewInteger(m)
	case "**":
		if b < 0 {
			return NewFloat(math.Pow(float64(a), float64(b)))
		}
		return NewInteger(intPow(a, b))
	case "<":
		return nativeBoolToBooleanObject(a < b)
	case ">":
		return nativeBoolToBooleanObject(a > b)
	case "<=":
		return nativeBoolToBooleanObject(a <= b)
	case ">=":
		return nativeBoolToBooleanObject(a >= b)
	}
	return newError("Invalid operation: int %s int", operator)
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func evalFloatInfixExpression(operator string, a, b float64) Object {
	switch operator {
	case "+":
		return NewFloat(a + b)
	case "-":
		return NewFloat(a - b)
	case "*":
		return NewFloat(a * b)
	case "/":
		return NewFloat(a / b)
	case "//":
		return NewFloat(math.Floor(a / b))
	case "%":
		m := math.Mod(a, b)
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return NewFloat(m)
	case "**":
		return NewFloat(math.Pow(a, b))
	case "<":
		return nativeBoolToBooleanObject(a < b)
	case ">":
		return nativeBoolToBooleanObject(a > b)
	case "<=":
		return nativeBoolToBooleanObject(a <= b)
	case ">=":
		return nativeBoolToBooleanObject(a >= b)
	}
	return newError("Invalid operation: float %s float", operator)
}

func evalStringInfixExpression(operator string, a, b string) Object {
	switch operator {
	case "+":
		return NewString(a + b)
	case "<":
		return nativeBoolToBooleanObject(a < b)
	case ">":
		return nativeBoolToBooleanObject(a > b)
	case "<=":
		return nativeBoolToBooleanObject(a <= b)
	case ">=":
		return nativeBoolToBooleanObject(a >= b)
	}
	return newError("Invalid operation: str %s str", operator)
}

func evalMembership(item, container Object) Object {
	switch c := container.(type) {
	case *List:
		for _, e := range c.Elements {
			if objectsEqual(e, item) {
				return TRUE
			}
		}
		return FALSE
	case *String:
		s, ok := item.(*String)
		if !ok {
			return newError("'in <str>' requires str as left operand, not %s", typeName(item))
		}
		return nativeBoolToBooleanObject(strings.Contains(c.Value, s.Value))
	case *Dict:
		_, ok := c.Get(item)
		return nativeBoolToBooleanObject(ok)
	case *Instance:
		if s, ok := item.(*String); ok {
			_, found := c.Get(s.Value)
			return nativeBoolToBooleanObject(found)
		}
		return FALSE
	}
	return newError("Invalid operation: %s in %s", typeName(item), typeName(container))
}

// maxRepeatLen bounds the bytes of a repeated string and the elements of a
// repeated list.
const maxRepeatLen = 1 << 28

func repeatString(s string, n int64) Object {
	if n <= 0 || s == "" {
		return NewString("")
	}
	if n > maxRepeatLen/int64(len(s)) {
		return newError("Repeated string too long: %d * %d", len(s), n)
	}
	return NewString(strings.Repeat(s, int(n)))
}

func repeatList(l *List, n int64) Object {
	if n <= 0 || len(l.Elements) == 0 {
		return NewList()
	}
	if n > maxRepeatLen/int64(len(l.Elements)) {
		return newError("Repeated list too long: %d * %d", len(l.Elements), n)
	}
	elems := make([]Object, 0, len(l.Elements)*int(n))
	for i := int64(0); i < n; i++ {
		elems = append(elems, l.Elements...)
	}
	return &List{Elements: elems}
}

func compareResult(operator string, c int) Object {
	switch operator {
	case "<":
		return nativeBoolToBooleanObject(c < 0)
	case ">":
		return nativeBoolToBooleanObject(c > 0)
	case "<=":
		return nativeBoolToBooleanObject(c <= 0)
	default:
		return nativeBoolToBooleanObject(c >= 0)
	}
}

// compareObjects orders numbers, strings and lists; every other pair
// compares equal, which keeps sorting stable for mixed lists.
func compareObjects(a, b Object) int {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			if ai, ok := a.(*Integer); ok {
				if bi, ok := b.(*Integer); ok {
					return cmpInt(ai.Value, bi.Value)
				}
			}
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case *String:
		if y, ok := b.(*String); ok {
			return strings.Compare(x.Value, y.Value)
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareLists(x, y)
		}
	}
	return 0
}

func compareLists(a, b *List) int {
	for i := 0; i < len(a.Elements) && i < len(b.Elements); i++ {
		if c := compareObjects(a.Elements[i], b.Elements[i]); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(a.Elements)), int64(len(b.Elements)))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(obj Object) (float64, bool) {
	switch o := obj.(type) {
	case *Integer:
		return float64(o.Value), true
	case *Float:
		return o.Value, true
	case *Boolean:
		if o.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// objectsEqual is structural equality. Numbers compare by value across int
// and float; every other pair needs matching kinds.
func objectsEqual(a, b Object) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.Value == y.Value
	case *Integer:
		switch y := b.(type) {
		case *Integer:
			return x.Value == y.Value
		case *Float:
			return float64(x.Value) == y.Value
		}
	case *Float:
		switch y := b.(type) {
		case *Integer:
			return x.Value == float64(y.Value)
		case *Float:
			return x.Value == y.Value
		}
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !objectsEqual(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || len(x.Pairs) != len(y.Pairs) {
			return false
		}
		for _, p := range x.Pairs {
			v, found := y.Get(p.Key)
			if !found || !objectsEqual(p.Value, v) {
				return false
			}
		}
		return true
	case *Instance:
		y, ok := b.(*Instance)
		if !ok || x.Class != y.Class || len(x.order) != len(y.order) {
			return false
		}
		for name, v := range x.fields {
			w, found := y.fields[name]
			if !found || !objectsEqual(v, w) {
				return false
			}
		}
		return true
	case *Class:
		y, ok := b.(*Class)
		return ok && x.Name == y.Name
	case *Function:
		y, ok := b.(*Function)
		return ok && x.Name == y.Name && x.Body == y.Body && x.Expression == y.Expression
	case *BuiltinFunction:
		y, ok := b.(*BuiltinFunction)
		return ok && x.Name == y.Name && y.Receiver == nil && x.Receiver == nil
	case *Widget:
		y, ok := b.(*Widget)
		if !ok || x.Type != y.Type || len(x.Props) != len(y.Props) || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Props {
			if x.Props[i].Name != y.Props[i].Name || !objectsEqual(x.Props[i].Value, y.Props[i].Value) {
				return false
			}
		}
		for i := range x.Children {
			if !objectsEqual(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func isTruthy(obj Object) bool {
	switch o := obj.(type) {
	case *Null:
		return false
	case *Boolean:
		return o.Value
	case *Integer:
		return o.Value != 0
	case *Float:
		return o.Value != 0
	case *String:
		return o.Value != ""
	case *List:
		return len(o.Elements) > 0
	case *Dict:
		return len(o.Pairs) > 0
	}
	return obj != nil
}

func isError(obj Object) bool {
	if obj != nil {
		return obj.Kind() == KindError
	}
	return false
}

func newError(format string, a ...interface{}) *ErrorObj {
	return &ErrorObj{Message: fmt.Sprintf(format, a...)}
}
