package eval

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ToJSON encodes obj. Dict pairs and instance fields keep their order;
// an instance carries its class under "__class__". NaN and infinities
// encode as null.
func ToJSON(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(buf *bytes.Buffer, obj Object) error {
	switch o := obj.(type) {
	case nil, *Null:
		buf.WriteString("null")
	case *Boolean:
		buf.WriteString(strconv.FormatBool(o.Value))
	case *Integer:
		buf.WriteString(strconv.FormatInt(o.Value, 10))
	case *Float:
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			buf.WriteString("null")
			return nil
		}
		s := strconv.FormatFloat(o.Value, 'f', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		buf.WriteString(s)
	case *String:
		return encodeString(buf, o.Value)
	case *List:
		buf.WriteByte('[')
		for i, e := range o.Elements {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Dict:
		buf.WriteByte('{')
		for i, p := range o.Pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			key := p.Key.Inspect()
			if err := encodeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeJSON(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *Instance:
		buf.WriteString(`{"__class__":`)
		if err := encodeString(buf, o.Class); err != nil {
			return err
		}
		for _, name := range o.order {
			buf.WriteByte(',')
			if err := encodeString(buf, name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeJSON(buf, o.fields[name]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *Widget:
		buf.WriteString(`{"kind":`)
		if err := encodeString(buf, o.Type); err != nil {
			return err
		}
		buf.WriteString(`,"props":{`)
		for i, p := range o.Props {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, p.Name); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeJSON(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteString(`},"children":[`)
		for i, c := range o.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteString("]}")
	case *ErrorObj:
		return o
	default:
		return encodeString(buf, obj.Inspect())
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// FromJSON decodes data into poly values. Object keys keep their document
// order; integral numbers become int and the rest float.
func FromJSON(data []byte) (Object, error) {
	if !gjson.ValidBytes(data) {
		var probe interface{}
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("invalid JSON")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Object {
	switch r.Type {
	case gjson.Null:
		return NULL
	case gjson.False:
		return FALSE
	case gjson.True:
		return TRUE
	case gjson.String:
		return NewString(r.Str)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return NewInteger(n)
			}
		}
		return NewFloat(r.Num)
	case gjson.JSON:
		if r.IsArray() {
			var elems []Object
			r.ForEach(func(_, v gjson.Result) bool {
				elems = append(elems, fromResult(v))
				return true
			})
			return NewList(elems...)
		}
		d := NewDict()
		r.ForEach(func(k, v gjson.Result) bool {
			d.SetString(k.Str, fromResult(v))
			return true
		})
		return d
	}
	return NULL
}

// FromNative converts a decoded Go value into a poly value.
func FromNative(val interface{}) Object {
	switch v := val.(type) {
	case nil:
		return NULL
	case Object:
		return v
	case bool:
		return nativeBoolToBooleanObject(v)
	case int:
		return NewInteger(int64(v))
	case int64:
		return NewInteger(v)
	case uint64:
		return NewInteger(int64(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return NewInteger(int64(v))
		}
		return NewFloat(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return NewInteger(n)
		}
		f, _ := v.Float64()
		return NewFloat(f)
	case string:
		return NewString(v)
	case []string:
		return stringList(v...)
	case []interface{}:
		elems := make([]Object, len(v))
		for i, e := range v {
			elems[i] = FromNative(e)
		}
		return NewList(elems...)
	case map[string]interface{}:
		d := NewDict()
		for _, k := range sortedKeys(v) {
			d.SetString(k, FromNative(v[k]))
		}
		return d
	case map[string]string:
		d := NewDict()
		for _, k := range sortedKeys(v) {
			d.SetString(k, NewString(v[k]))
		}
		return d
	}
	return NewString(fmt.Sprintf("%v", val))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToNative converts obj into plain Go values. Dicts lose their key order.
func ToNative(obj Object) interface{} {
	switch o := obj.(type) {
	case *Null:
		return nil
	case *Boolean:
		return o.Value
	case *Integer:
		return o.Value
	case *Float:
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil
		}
		return o.Value
	case *String:
		return o.Value
	case *List:
		out := make([]interface{}, len(o.Elements))
		for i, e := range o.Elements {
			out[i] = ToNative(e)
		}
		return out
	case *Dict:
		out := make(map[string]interface{}, len(o.Pairs))
		for _, p := range o.Pairs {
			out[p.Key.Inspect()] = ToNative(p.Value)
		}
		return out
	case *Instance:
		out := map[string]interface{}{"__class__": o.Class}
		for name, v := range o.fields {
			out[name] = ToNative(v)
		}
		return out
	}
	return obj.Inspect()
}

func init() {
	register("json_parse", builtinJSONParse)
	register("json_loads", builtinJSONParse)
	register("json_stringify", builtinJSONStringify, "value", "indent")
	register("json_dumps", builtinJSONStringify, "value", "indent")
	register("json_get", func(in *Interpreter, args ...Object) Object {
		doc, ok1 := stringArg(args, 0)
		path, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return newError("json_get() requires a JSON string and a path")
		}
		r := gjson.Get(doc, path)
		if !r.Exists() {
			return NULL
		}
		return fromResult(r)
	})
}

func builtinJSONParse(in *Interpreter, args ...Object) Object {
	s, ok := stringArg(args, 0)
	if !ok {
		return newError("json_parse() requires a string")
	}
	obj, err := FromJSON([]byte(s))
	if err != nil {
		return newError("JSON parse error: %s", err)
	}
	return obj
}

// maxIndent caps the per-level indent of json_stringify.
const maxIndent = 10

func builtinJSONStringify(in *Interpreter, args ...Object) Object {
	if len(args) == 0 {
		return newError("json_stringify() requires a value")
	}
	data, err := ToJSON(args[0])
	if err != nil {
		return newError("JSON stringify error: %s", err)
	}
	if indent, ok := arg(args, 1); ok {
		prefix := ""
		switch v := indent.(type) {
		case *Integer:
			prefix = strings.Repeat(" ", int(min(max(v.Value, 0), maxIndent)))
		case *String:
			prefix = v.Value
		}
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", prefix); err != nil {
			return newError("JSON stringify error: %s", err)
		}
		return NewString(out.String())
	}
	return NewString(string(data))
}
