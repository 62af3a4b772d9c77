package eval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(opts ...Option) *Interpreter {
	return New(append([]Option{WithSeed(1)}, opts...)...)
}

// run executes source in a fresh interpreter and returns it with the
// program's final value.
func run(t *testing.T, source string, opts ...Option) (*Interpreter, Object) {
	t.Helper()
	in := newTestInterpreter(opts...)
	result, err := in.RunSource(source)
	require.NoError(t, err)
	return in, result
}

func output(t *testing.T, source string, opts ...Option) []string {
	t.Helper()
	in, _ := run(t, source, opts...)
	return in.Output()
}

func runError(t *testing.T, source string) string {
	t.Helper()
	in := newTestInterpreter()
	_, err := in.RunSource(source)
	require.Error(t, err)
	return err.Error()
}

func TestLetAndPrint(t *testing.T) {
	in, result := run(t, "let x = 1\nlet y = 2\nprint(x + y)")
	assert.Equal(t, []string{"3"}, in.Output())
	assert.Equal(t, NULL, result)
}

func TestDefaultArgumentAndFString(t *testing.T) {
	out := output(t, "fn greet(name=\"World\"):\n    return f\"Hello, {name}!\"\nprint(greet())")
	assert.Equal(t, []string{"Hello, World!"}, out)
}

func TestCounterMethodWriteBack(t *testing.T) {
	src := `class Counter:
    def __init__(self):
        self.n = 0
    def tick(self):
        self.n = self.n + 1
        return self.n
let c = Counter()
print(c.tick())
print(c.tick())`
	assert.Equal(t, []string{"1", "2"}, output(t, src))
}

func TestRunReturnsLastValue(t *testing.T) {
	_, result := run(t, "x = 2\nx * 21")
	assert.Equal(t, NewInteger(42), result)

	_, result = run(t, "return 7\nprint(1)")
	assert.Equal(t, NewInteger(7), result)
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected Object
	}{
		{"1 / 2", NewFloat(0.5)},
		{"1 // 2", NewInteger(0)},
		{"-7 // 2", NewInteger(-4)},
		{"-7 % 3", NewInteger(2)},
		{"7 % -3", NewInteger(-2)},
		{"2 ** 10", NewInteger(1024)},
		{"2 ** -1", NewFloat(0.5)},
		{"1 + 2.5", NewFloat(3.5)},
		{"\"ab\" * 3", NewString("ababab")},
		{"[1] * 2 == [1, 1]", TRUE},
		{"10 - 2 * 3", NewInteger(4)},
		{"(10 - 2) * 3", NewInteger(24)},
		{"1 == 1.0", TRUE},
		{"\"a\" < \"b\"", TRUE},
		{"[1, 2] < [1, 3]", TRUE},
	}
	for _, tt := range tests {
		_, result := run(t, tt.input)
		assert.True(t, objectsEqual(tt.expected, result), "%s: expected %s, got %s", tt.input, tt.expected.Inspect(), result.Inspect())
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, src := range []string{"1 / 0", "1 // 0", "1 % 0"} {
		assert.Contains(t, runError(t, src), "Division by zero", src)
	}
	assert.Equal(t, []string{"inf", "-inf", "NaN"}, output(t, "print(1.0 / 0)\nprint(-1 / 0.0)\nprint(0.0 / 0)"))
}

func TestLogicalOperatorsReturnOperand(t *testing.T) {
	out := output(t, `print(0 or "x")
print(1 and 2)
print(none or 5)
print("" and crash())`)
	assert.Equal(t, []string{"x", "2", "5", ""}, out)
}

func TestLenOfEmpty(t *testing.T) {
	out := output(t, "print(len([]))\nprint(len(\"\"))\nprint(len({}))")
	assert.Equal(t, []string{"0", "0", "0"}, out)
}

func TestControlFlow(t *testing.T) {
	src := `total = 0
for i in range(10):
    if i == 2:
        continue
    if i == 6:
        break
    total += i
print(total)
n = 0
while true:
    n += 1
    if n >= 3:
        break
print(n)
x = 5
if x > 10:
    print("big")
elif x > 3:
    print("medium")
else:
    print("small")`
	assert.Equal(t, []string{"13", "3", "medium"}, output(t, src))
}

func TestForOverStringAndDict(t *testing.T) {
	src := `for ch in "ab":
    print(ch)
for k in {"x": 1, "y": 2}:
    print(k)`
	assert.Equal(t, []string{"a", "b", "x", "y"}, output(t, src))

	assert.Contains(t, runError(t, "for x in 5:\n    pass"), "Can only iterate over list, string, or dict")
}

func TestLateBoundDefaults(t *testing.T) {
	src := `fn f(a, b=a * 2):
    return a + b
print(f(1))
print(f(1, 1))
print(f(b=3, a=1))`
	assert.Equal(t, []string{"3", "2", "4"}, output(t, src))
}

func TestArityErrors(t *testing.T) {
	assert.Contains(t, runError(t, "fn f(a):\n    return a\nf(1, 2)"), "f() takes at most 1 argument(s) but 2 were given")
	assert.Contains(t, runError(t, "fn f(a, b):\n    return a\nf(1)"), "f() takes at least 2 argument(s) but 1 were given")
	assert.Contains(t, runError(t, "fn f(a):\n    return a\nf(c=1)"), "got an unexpected keyword argument 'c'")
	assert.Contains(t, runError(t, "fn f(a):\n    return a\nf(1, a=1)"), "got multiple values for argument 'a'")
}

func TestRecursionLimit(t *testing.T) {
	msg := runError(t, "fn f(n):\n    return f(n + 1)\nf(0)")
	assert.Contains(t, msg, "Maximum recursion depth exceeded in f()")
}

func TestRecursion(t *testing.T) {
	src := `fn fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)
print(fib(15))`
	assert.Equal(t, []string{"610"}, output(t, src))
}

func TestUndefinedVariableSuggestion(t *testing.T) {
	msg := runError(t, "counter = 1\nprint(countr)")
	assert.Contains(t, msg, "Undefined variable: countr")
	assert.Contains(t, msg, "did you mean 'counter'?")
	assert.Contains(t, msg, "Error at line 2")
}

func TestTryExceptFinally(t *testing.T) {
	src := `try:
    raise "boom"
except ValueError as e:
    print("caught " + e)
finally:
    print("finally")
try:
    x = 1 / 0
except:
    print("div")
fn f():
    try:
        return 1
    finally:
        print("cleanup")
print(f())`
	assert.Equal(t, []string{"caught boom", "finally", "div", "cleanup", "1"}, output(t, src))
}

func TestUncaughtRaise(t *testing.T) {
	assert.Equal(t, "Error at line 2: nope", runError(t, "x = 1\nraise \"nope\""))
	assert.Contains(t, runError(t, "raise"), "Exception")
}

func TestErrorPosition(t *testing.T) {
	in := newTestInterpreter()
	_, err := in.RunSource("x = 1\nif true:\n    y = x // 0\n")
	require.Error(t, err)

	var e *ErrorObj
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 3, e.Line)
	assert.Equal(t, 5, e.Column)
	assert.True(t, strings.HasPrefix(e.Error(), "Error at line 3: "))
}

func TestRepetitionLimits(t *testing.T) {
	tests := []struct {
		name   string
		source string
		errMsg string
	}{
		{"huge string repeat", `s = "ab" * 4611686018427387904`, "Repeated string too long"},
		{"huge string repeat reversed", `s = 4611686018427387904 * "ab"`, "Repeated string too long"},
		{"huge list repeat", `xs = [1, 2] * 4611686018427387904`, "Repeated list too long"},
		{"randint span overflow", `randint(-9223372036854775807, 9223372036854775807)`, "randint() range too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, runError(t, tt.source), tt.errMsg)
		})
	}

	_, result := run(t, `[] * 4611686018427387904`)
	assert.Equal(t, "[]", result.Inspect())
	_, result = run(t, `"ab" * -3`)
	assert.Equal(t, "", result.Inspect())
}

func TestRunRecoversPanic(t *testing.T) {
	in := newTestInterpreter()
	in.Define("explode", &BuiltinFunction{Name: "explode", Fn: func(*Interpreter, ...Object) Object {
		panic("kaboom")
	}})

	_, err := in.RunSource("def f():\n    return explode()\nf()\n")
	assert.ErrorContains(t, err, "internal error: kaboom")

	_, err = in.Call("f")
	assert.ErrorContains(t, err, "internal error: kaboom")

	result, err := in.RunSource("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, "2", result.Inspect())
}

func TestInheritance(t *testing.T) {
	src := `class Animal:
    def __init__(self, name):
        self.name = name
    def speak(self):
        return self.name + " makes a sound"
class Dog(Animal):
    def speak(self):
        return self.name + " barks"
class Cat(Animal):
    pass
d = Dog("Rex")
c = Cat("Tom")
print(d.speak())
print(c.speak())
print(isinstance(d, Animal))
print(isinstance(d, Cat))
print(type(d))`
	assert.Equal(t, []string{"Rex barks", "Tom makes a sound", "true", "false", "Dog"}, output(t, src))
}

func TestWriteBackOnlyForBareReceiver(t *testing.T) {
	src := `class Box:
    def __init__(self):
        self.v = 0
    def bump(self):
        self.v = self.v + 1
        return self.v
b = Box()
b.bump()
holder = {"box": Box()}
holder["box"].bump()
print(b.v)
print(holder["box"].v)`
	assert.Equal(t, []string{"1", "0"}, output(t, src))
}

func TestListMutatorMethods(t *testing.T) {
	src := `xs = [3, 1]
xs.append(2)
print(xs)
last = xs.pop()
print(last)
xs.insert(0, 9)
xs.remove(1)
print(xs)
xs.sort()
print(xs)
xs.extend([7])
xs.reverse()
print(xs)
grid = {"row": [1]}
grid["row"].append(2)
print(grid)
d = {"a": 1}
d.update({"b": 2})
print(d.pop("a"))
print(d)`
	assert.Equal(t, []string{
		"[3, 1, 2]",
		"2",
		"[9, 3]",
		"[3, 9]",
		"[7, 9, 3]",
		"{row: [1, 2]}",
		"1",
		"{b: 2}",
	}, output(t, src))
}

func TestIndexAssignment(t *testing.T) {
	src := `xs = [1, 2, 3]
xs[-1] = 30
grid = [[0, 0], [0, 0]]
grid[1][0] = 5
d = {}
d["k"] = "v"
print(xs)
print(grid)
print(d)`
	assert.Equal(t, []string{"[1, 2, 30]", "[[0, 0], [5, 0]]", "{k: v}"}, output(t, src))

	assert.Contains(t, runError(t, "xs = [1]\nxs[3] = 1"), "Index out of bounds")
	assert.Contains(t, runError(t, "xs = [1]\nprint(xs[3])"), "Index out of bounds")
	assert.Contains(t, runError(t, "d = {}\nprint(d[\"nope\"])"), "Key not found: nope")
}

func TestValueSemantics(t *testing.T) {
	src := `a = [1, 2]
b = a
b[0] = 99
print(a)
print(b)`
	assert.Equal(t, []string{"[1, 2]", "[99, 2]"}, output(t, src))
}

func TestListComprehension(t *testing.T) {
	out := output(t, "print([x * x for x in range(6) if x % 2 == 0])\nprint([c.upper() for c in \"ab\"])")
	assert.Equal(t, []string{"[0, 4, 16]", "[A, B]"}, out)
}

func TestLambdaAndHigherOrder(t *testing.T) {
	src := `double = lambda x: x * 2
print(double(4))
print(map(double, [1, 2]))
print(filter(lambda x: x > 1, [1, 2, 3]))
print(sorted(["bb", "a", "ccc"], key=len))
print(sorted([1, 3, 2], reverse=true))`
	assert.Equal(t, []string{"8", "[2, 4]", "[2, 3]", "[a, bb, ccc]", "[3, 2, 1]"}, output(t, src))
}

func TestTernaryAndMembership(t *testing.T) {
	out := output(t, `print("yes" if 2 in [1, 2] else "no")
print("k" in {"k": 1})
print("ell" in "hello")
print(not (3 in [1]))`)
	assert.Equal(t, []string{"yes", "true", "true", "true"}, out)
}

func TestWidgetTree(t *testing.T) {
	src := `ui = Column(gap=8):
    Text("Title")
    Button("Go", primary=true):
        Icon(name="play")
    "plain"
print(ui)
print(ui.kind)
print(len(ui.children))`
	in, _ := run(t, src)
	assert.Equal(t, []string{"<Widget Column>", "Column", "3"}, in.Output())

	val, ok := in.Lookup("ui")
	require.True(t, ok)
	w := val.(*Widget)
	gap, _ := w.Prop("gap")
	assert.Equal(t, NewInteger(8), gap)
	assert.Equal(t, "Text", w.Children[0].Type)
	text, _ := w.Children[0].Prop("text")
	assert.Equal(t, "Title", text.Inspect())
	assert.Equal(t, "Button", w.Children[1].Type)
	assert.Equal(t, "Icon", w.Children[1].Children[0].Type)
	plain, _ := w.Children[2].Prop("text")
	assert.Equal(t, "plain", plain.Inspect())
}

func TestCallAndReset(t *testing.T) {
	in := newTestInterpreter()
	_, err := in.RunSource("fn add(a, b):\n    return a + b\ncount = 3")
	require.NoError(t, err)

	result, err := in.Call("add", NewInteger(2), NewInteger(5))
	require.NoError(t, err)
	assert.Equal(t, NewInteger(7), result)

	_, err = in.Call("ad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Undefined function: ad")

	in.Reset()
	_, err = in.Call("add", NewInteger(1), NewInteger(1))
	require.Error(t, err)
	_, ok := in.Lookup("count")
	assert.False(t, ok)
	_, ok = in.Lookup("print")
	assert.True(t, ok)
}

func TestScopesArePoppedAfterErrors(t *testing.T) {
	in := newTestInterpreter()
	_, err := in.RunSource("fn boom():\n    local = 1\n    return 1 / 0\nboom()")
	require.Error(t, err)
	_, ok := in.Lookup("local")
	assert.False(t, ok)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helpers.poly"), []byte("fn shout(s):\n    return s.upper() + \"!\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nums.poly"), []byte("TEN = 10\n"), 0o644))

	out := output(t, "import helpers\nfrom nums import TEN\nprint(shout(\"hi\"))\nprint(TEN)", WithBaseDir(dir))
	assert.Equal(t, []string{"HI!", "10"}, out)

	in := newTestInterpreter(WithBaseDir(dir))
	_, err := in.RunSource("import missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Module not found: missing")
}

func TestBuiltinModules(t *testing.T) {
	src := `import math
from math import sqrt
print(math_sqrt(16))
print(sqrt(9))
print(math.floor(2.7))
print(math.pi > 3.14)
import random
print(randint(1, 1))
import time
print(time() > 0)`
	assert.Equal(t, []string{"4", "3", "2", "true", "1", "true"}, output(t, src))

	msg := runError(t, "from math import nope")
	assert.Contains(t, msg, "cannot import name 'nope' from 'math'")
}
