package bridge

import (
	"fmt"

	"github.com/tidwall/gjson"

	"poly/pkg/eval"
)

// Args is the decoded args field of an invoke request. Objects are read
// by name, arrays by position, and a bare primitive answers position 0.
type Args struct {
	raw gjson.Result
}

func parseArgs(raw []byte) Args {
	if len(raw) == 0 {
		return Args{raw: gjson.Parse("{}")}
	}
	return Args{raw: gjson.ParseBytes(raw)}
}

// Get looks name up in an object, or the value at pos in an array.
func (a Args) Get(name string, pos int) (gjson.Result, bool) {
	switch {
	case a.raw.IsObject():
		var found gjson.Result
		a.raw.ForEach(func(k, v gjson.Result) bool {
			if k.Str == name {
				found = v
				return false
			}
			return true
		})
		return found, found.Exists()
	case a.raw.IsArray():
		items := a.raw.Array()
		if pos >= 0 && pos < len(items) {
			return items[pos], true
		}
		return gjson.Result{}, false
	case pos == 0 && a.raw.Exists():
		return a.raw, true
	}
	return gjson.Result{}, false
}

func (a Args) String(name string, pos int, def string) string {
	if r, ok := a.Get(name, pos); ok && r.Type != gjson.Null {
		return r.String()
	}
	return def
}

// Require is String for arguments without a sensible default.
func (a Args) Require(name string, pos int) (string, error) {
	r, ok := a.Get(name, pos)
	if !ok || r.Type == gjson.Null || r.String() == "" {
		return "", fmt.Errorf("missing argument: %s", name)
	}
	return r.String(), nil
}

func (a Args) Int(name string, pos int, def int64) int64 {
	if r, ok := a.Get(name, pos); ok && r.Type == gjson.Number {
		return r.Int()
	}
	return def
}

func (a Args) Bool(name string, pos int, def bool) bool {
	if r, ok := a.Get(name, pos); ok && (r.Type == gjson.True || r.Type == gjson.False) {
		return r.Bool()
	}
	return def
}

// Raw returns the JSON text of an argument, or nil when it is absent.
func (a Args) Raw(name string, pos int) []byte {
	if r, ok := a.Get(name, pos); ok {
		return []byte(r.Raw)
	}
	return nil
}

// Strings reads an array of strings; a single string becomes a one-element
// slice.
func (a Args) Strings(name string, pos int) []string {
	r, ok := a.Get(name, pos)
	if !ok {
		return nil
	}
	if !r.IsArray() {
		if r.Type == gjson.String {
			return []string{r.Str}
		}
		return nil
	}
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

// Positional converts args to script values for a script call. Object
// fields become positional arguments in document order, arrays are spread,
// and any other value is passed as the only argument.
func (a Args) Positional() []eval.Object {
	switch {
	case !a.raw.Exists(), a.raw.Type == gjson.Null:
		return nil
	case a.raw.IsObject(), a.raw.IsArray():
		var out []eval.Object
		a.raw.ForEach(func(_, v gjson.Result) bool {
			obj, err := eval.FromJSON([]byte(v.Raw))
			if err != nil {
				obj = eval.NULL
			}
			out = append(out, obj)
			return true
		})
		return out
	}
	obj, err := eval.FromJSON([]byte(a.raw.Raw))
	if err != nil {
		return nil
	}
	return []eval.Object{obj}
}
