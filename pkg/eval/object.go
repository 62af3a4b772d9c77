package eval

import (
	"math"
	"strconv"
	"strings"

	"poly/pkg/ast"
)

// Object is the interface that all poly values implement.
type Object interface {
	Kind() ObjectKind
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Kind() ObjectKind { return KindInteger }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type Float struct {
	Value float64
}

func (f *Float) Kind() ObjectKind { return KindFloat }
func (f *Float) Inspect() string  { return formatFloat(f.Value) }

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type String struct {
	Value string
}

func (s *String) Kind() ObjectKind { return KindString }
func (s *String) Inspect() string  { return s.Value }

type Boolean struct {
	Value bool
}

func (b *Boolean) Kind() ObjectKind { return KindBoolean }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type Null struct{}

func (n *Null) Kind() ObjectKind { return KindNull }
func (n *Null) Inspect() string  { return "none" }

// List is immutable once shared; operations that change a list build a
// new one.
type List struct {
	Elements []Object
}

func (l *List) Kind() ObjectKind { return KindList }
func (l *List) Inspect() string {
	out := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		out[i] = e.Inspect()
	}
	return "[" + strings.Join(out, ", ") + "]"
}

func NewList(elements ...Object) *List {
	if elements == nil {
		elements = []Object{}
	}
	return &List{Elements: elements}
}

type DictPair struct {
	Key   Object
	Value Object
}

// Dict keeps its pairs in insertion order. Scalar keys are indexed; other
// keys fall back to a scan with structural equality.
type Dict struct {
	Pairs []DictPair
	index map[hashKey]int
}

type hashKey struct {
	kind ObjectKind
	repr string
}

func NewDict() *Dict {
	return &Dict{index: map[hashKey]int{}}
}

// keyOf returns the index key of a scalar. Integral floats share the key
// of the equal integer since 1 == 1.0.
func keyOf(obj Object) (hashKey, bool) {
	switch o := obj.(type) {
	case *String:
		return hashKey{KindString, o.Value}, true
	case *Integer:
		return hashKey{KindInteger, strconv.FormatInt(o.Value, 10)}, true
	case *Float:
		if o.Value == math.Trunc(o.Value) && math.Abs(o.Value) < 1<<63 {
			return hashKey{KindInteger, strconv.FormatInt(int64(o.Value), 10)}, true
		}
		return hashKey{KindFloat, strconv.FormatFloat(o.Value, 'g', -1, 64)}, true
	case *Boolean:
		return hashKey{KindBoolean, strconv.FormatBool(o.Value)}, true
	case *Null:
		return hashKey{KindNull, ""}, true
	}
	return hashKey{}, false
}

func (d *Dict) find(key Object) int {
	if k, ok := keyOf(key); ok {
		if i, ok := d.index[k]; ok {
			return i
		}
		return -1
	}
	for i, p := range d.Pairs {
		if objectsEqual(p.Key, key) {
			return i
		}
	}
	return -1
}

func (d *Dict) Get(key Object) (Object, bool) {
	if i := d.find(key); i >= 0 {
		return d.Pairs[i].Value, true
	}
	return nil, false
}

func (d *Dict) GetString(key string) (Object, bool) {
	return d.Get(&String{Value: key})
}

// Set overwrites an existing key in place or appends a new pair. Only call
// it on a dict nothing else can observe yet.
func (d *Dict) Set(key, value Object) {
	if i := d.find(key); i >= 0 {
		d.Pairs[i].Value = value
		return
	}
	if k, ok := keyOf(key); ok {
		if d.index == nil {
			d.index = map[hashKey]int{}
		}
		d.index[k] = len(d.Pairs)
	}
	d.Pairs = append(d.Pairs, DictPair{Key: key, Value: value})
}

func (d *Dict) SetString(key string, value Object) {
	d.Set(&String{Value: key}, value)
}

func (d *Dict) Len() int { return len(d.Pairs) }

// Copy returns a dict that can be changed without affecting d.
func (d *Dict) Copy() *Dict {
	c := &Dict{Pairs: make([]DictPair, len(d.Pairs)), index: make(map[hashKey]int, len(d.index))}
	copy(c.Pairs, d.Pairs)
	for k, v := range d.index {
		c.index[k] = v
	}
	return c
}

// Without returns a copy of d lacking key.
func (d *Dict) Without(key Object) *Dict {
	c := NewDict()
	for _, p := range d.Pairs {
		if !objectsEqual(p.Key, key) {
			c.Set(p.Key, p.Value)
		}
	}
	return c
}

func (d *Dict) Kind() ObjectKind { return KindDict }
func (d *Dict) Inspect() string {
	out := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		out[i] = p.Key.Inspect() + ": " + p.Value.Inspect()
	}
	return "{" + strings.Join(out, ", ") + "}"
}

// Function is a script function, a method, or a lambda (Body nil,
// Expression set).
type Function struct {
	Name       string
	Parameters []*ast.Parameter
	Body       *ast.BlockStatement
	Expression ast.Expression
}

func (f *Function) Kind() ObjectKind { return KindFunction }
func (f *Function) Inspect() string  { return "<fn " + f.Name + ">" }

func (f *Function) required() int {
	n := 0
	for _, p := range f.Parameters {
		if p.Default == nil {
			n++
		}
	}
	return n
}

// BuiltinFn implements a native function.
type BuiltinFn func(in *Interpreter, args ...Object) Object

// BuiltinFunction is a native function. Keyword arguments are placed into
// the positional slots named by Params, with None filling any gap; a
// builtin without Params receives them as a trailing *Dict.
type BuiltinFunction struct {
	Name   string
	Fn     BuiltinFn
	Params []string
	// Receiver is prepended to the arguments of a bound method such as
	// "a,b".split(",").
	Receiver Object
}

func (b *BuiltinFunction) Kind() ObjectKind { return KindBuiltin }
func (b *BuiltinFunction) Inspect() string  { return "<native fn " + b.Name + ">" }

// Instance is a record tagged with its class name. Field order is kept for
// stable rendering.
type Instance struct {
	Class  string
	fields map[string]Object
	order  []string
}

func NewInstance(class string) *Instance {
	return &Instance{Class: class, fields: map[string]Object{}}
}

func (i *Instance) Get(name string) (Object, bool) {
	v, ok := i.fields[name]
	return v, ok
}

func (i *Instance) Set(name string, value Object) {
	if _, ok := i.fields[name]; !ok {
		i.order = append(i.order, name)
	}
	i.fields[name] = value
}

func (i *Instance) FieldNames() []string {
	return append([]string(nil), i.order...)
}

func (i *Instance) Copy() *Instance {
	c := &Instance{Class: i.Class, fields: make(map[string]Object, len(i.fields)), order: append([]string(nil), i.order...)}
	for k, v := range i.fields {
		c.fields[k] = v
	}
	return c
}

func (i *Instance) Kind() ObjectKind { return KindInstance }
func (i *Instance) Inspect() string  { return "<" + i.Class + " instance>" }

type Class struct {
	Name    string
	Parent  string
	Methods map[string]*Function
}

func (c *Class) Kind() ObjectKind { return KindClass }
func (c *Class) Inspect() string  { return "<class " + c.Name + ">" }

type WidgetProp struct {
	Name  string
	Value Object
}

// Widget is a passive UI description node.
type Widget struct {
	Type     string
	Props    []WidgetProp
	Children []*Widget
}

func (w *Widget) Kind() ObjectKind { return KindWidget }
func (w *Widget) Inspect() string  { return "<Widget " + w.Type + ">" }

func (w *Widget) Prop(name string) (Object, bool) {
	for _, p := range w.Props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

type ReturnValue struct {
	Value Object
}

func (rv *ReturnValue) Kind() ObjectKind { return KindReturnValue }
func (rv *ReturnValue) Inspect() string  { return rv.Value.Inspect() }

type controlSignal struct {
	kind ObjectKind
}

func (c *controlSignal) Kind() ObjectKind { return c.kind }
func (c *controlSignal) Inspect() string  { return c.kind.String() }

// ErrorObj is a runtime error travelling as a value. Line and Column are 0
// until the statement that produced it stamps its position.
type ErrorObj struct {
	Message string
	Line    int
	Column  int
}

func (e *ErrorObj) Kind() ObjectKind { return KindError }
func (e *ErrorObj) Inspect() string  { return e.Error() }

func (e *ErrorObj) Error() string {
	if e.Line > 0 {
		return "Error at line " + strconv.Itoa(e.Line) + ": " + e.Message
	}
	return "Error: " + e.Message
}

// typeName is the name type() reports.
func typeName(obj Object) string {
	switch o := obj.(type) {
	case *Instance:
		return o.Class
	case *Class:
		return o.Name
	case *Widget:
		return o.Type
	}
	return obj.Kind().String()
}
