package eval

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"poly/pkg/sovereignty"
	"poly/pkg/store"
	"poly/pkg/stream"
)

func TestConversionBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`str(2.0)`, "2"},
		{`str(none)`, "none"},
		{`int("42")`, "42"},
		{`int("ff", 16)`, "255"},
		{`int(3.9)`, "3"},
		{`float("1.5")`, "1.5"},
		{`bool("")`, "false"},
		{`bool([0])`, "true"},
		{`type(1)`, "int"},
		{`type(1.5)`, "float"},
		{`type("s")`, "str"},
		{`type([])`, "list"},
		{`type({})`, "dict"},
		{`type(none)`, "NoneType"},
		{`abs(-3)`, "3"},
		{`round(2.6)`, "3"},
		{`round(3.14159, 2)`, "3.14"},
		{`hex(255)`, "0xff"},
		{`bin(5)`, "0b101"},
		{`chr(65)`, "A"},
		{`ord("a")`, "97"},
		{`pow(2, 10, 1000)`, "24"},
		{`divmod(7, 2)`, "[3, 1]"},
	}
	for _, tt := range tests {
		_, result := run(t, tt.input)
		assert.Equal(t, tt.expected, result.Inspect(), tt.input)
	}

	assert.Contains(t, runError(t, `int("abc")`), "Cannot convert to int")
}

func TestSequenceBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`range(3)`, "[0, 1, 2]"},
		{`range(1, 7, 2)`, "[1, 3, 5]"},
		{`range(3, 0, -1)`, "[3, 2, 1]"},
		{`len("héllo")`, "5"},
		{`min([4, 2, 8])`, "2"},
		{`max(4, 9)`, "9"},
		{`sum([1, 2, 3])`, "6"},
		{`sum([0.5, 0.5])`, "1"},
		{`sorted([3, 1, 2])`, "[1, 2, 3]"},
		{`reversed([1, 2, 3])`, "[3, 2, 1]"},
		{`enumerate(["a", "b"], 1)`, "[[1, a], [2, b]]"},
		{`zip([1, 2, 3], ["x", "y"])`, "[[1, x], [2, y]]"},
		{`any([0, "", 1])`, "true"},
		{`all([1, 0])`, "false"},
		{`set([1, 2, 1, 3])`, "[1, 2, 3]"},
		{`list("ab")`, "[a, b]"},
		{`dict([["a", 1]])`, "{a: 1}"},
		{`slice([1, 2, 3, 4], 1, -1)`, "[2, 3]"},
		{`slice("hello", 1, 3)`, "el"},
		{`next([], "end")`, "end"},
		{`keys({"a": 1, "b": 2})`, "[a, b]"},
		{`values({"a": 1})`, "[1]"},
		{`get({"a": 1}, "z", 0)`, "0"},
	}
	for _, tt := range tests {
		_, result := run(t, tt.input)
		assert.Equal(t, tt.expected, result.Inspect(), tt.input)
	}
}

func TestStringBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`upper("abc")`, "ABC"},
		{`"Hello World".lower()`, "hello world"},
		{`title("hello world")`, "Hello World"},
		{`capitalize("hELLO")`, "Hello"},
		{`"  pad  ".strip()`, "pad"},
		{`strip("xxhixx", "x")`, "hi"},
		{`split("a,b,c", ",")`, "[a, b, c]"},
		{`"a  b c".split()`, "[a, b, c]"},
		{`join(", ", ["a", "b"])`, "a, b"},
		{`"-".join(["x", "y"])`, "x-y"},
		{`replace("aaa", "a", "b")`, "bbb"},
		{`"poly".startswith("po")`, "true"},
		{`"poly".endswith("x")`, "false"},
		{`find("hello", "l")`, "2"},
		{`"hello".find("z")`, "-1"},
		{`"hello".index("e")`, "1"},
		{`count("banana", "a")`, "3"},
		{`"123".isdigit()`, "true"},
		{`"abc".isalpha()`, "true"},
		{`format("{} + {} = {}", 1, 2, 3)`, "1 + 2 = 3"},
		{`format("{1}{0}", "a", "b")`, "ba"},
		{`format("Hi {name}", name="Ada")`, "Hi Ada"},
		{`format("{{}}")`, "{}"},
	}
	for _, tt := range tests {
		_, result := run(t, tt.input)
		assert.Equal(t, tt.expected, result.Inspect(), tt.input)
	}

	assert.Contains(t, runError(t, `split("a", "")`), "separator must not be empty")
}

func TestListBuiltinsDoNotMutate(t *testing.T) {
	out := output(t, `xs = [1, 2]
ys = push(xs, 3)
print(xs)
print(ys)
print(pop(ys))
print(insert(xs, 0, 0))
print(remove([1, 2, 1], 1))
print(index([5, 6], 6))
print(extend(xs, [9]))
print(copy(xs))`)
	assert.Equal(t, []string{"[1, 2]", "[1, 2, 3]", "3", "[0, 1, 2]", "[2, 1]", "1", "[1, 2, 9]", "[1, 2]"}, out)

	assert.Contains(t, runError(t, "xs = []\nxs.pop()"), "pop from empty list")
	assert.Contains(t, runError(t, "xs = [1]\nxs.remove(5)"), "list.remove(x): x not in list")
}

func TestDictMethods(t *testing.T) {
	out := output(t, `d = {"a": 1}
print(d.get("a"))
print(d.get("b", 2))
print(d.keys())
print(d.items())
d.setdefault("b", 5)
print(d)
print(hasattr(d, "a"))`)
	assert.Equal(t, []string{"1", "2", "[a]", "[[a, 1]]", "{a: 1, b: 5}", "true"}, out)
}

func TestGetattrSetattr(t *testing.T) {
	out := output(t, `class P:
    def __init__(self):
        self.x = 1
p = P()
print(getattr(p, "x"))
print(getattr(p, "y", "none-set"))
q = setattr(p, "x", 5)
print(p.x)
print(q.x)`)
	assert.Equal(t, []string{"1", "none-set", "1", "5"}, out)
}

func TestPrintJoinsArguments(t *testing.T) {
	var buf strings.Builder
	in := newTestInterpreter(WithStdout(&buf))
	_, err := in.RunSource(`print("a", 1, true, none)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a 1 true none"}, in.Output())
	assert.Equal(t, "a 1 true none\n", buf.String())
}

func TestInputReadsLine(t *testing.T) {
	in := newTestInterpreter(WithStdin(strings.NewReader("Ada\nrest\n")))
	result, err := in.RunSource(`input("name? ")`)
	require.NoError(t, err)
	assert.Equal(t, "Ada", result.Inspect())
}

func TestJSONBuiltins(t *testing.T) {
	out := output(t, `data = json_parse("{\"b\": [1, 2.5, true, null], \"a\": {\"x\": \"y\"}}")
print(keys(data))
print(data["b"])
print(json_stringify(data))
print(json_stringify({"n": 2.0}))
print(json_get("{\"a\": {\"b\": 7}}", "a.b"))`)
	assert.Equal(t, []string{
		"[b, a]",
		"[1, 2.5, true, none]",
		`{"b":[1,2.5,true,null],"a":{"x":"y"}}`,
		`{"n":2.0}`,
		"7",
	}, out)

	assert.Contains(t, runError(t, `json_parse("{oops")`), "JSON parse error")
}

func TestJSONIndent(t *testing.T) {
	_, result := run(t, `json_dumps({"a": [1]}, 2)`)
	assert.Equal(t, "{\n  \"a\": [\n    1\n  ]\n}", result.Inspect())

	_, result = run(t, `json_stringify([1], -1)`)
	assert.Equal(t, "[\n1\n]", result.Inspect())

	_, result = run(t, `json_stringify([1], 4611686018427387904)`)
	assert.Equal(t, "[\n"+strings.Repeat(" ", maxIndent)+"1\n]", result.Inspect())
}

func TestJSONRoundTrip(t *testing.T) {
	nested := NewDict()
	nested.SetString("z", NewList(NewInteger(1), NewFloat(2.0), NULL))
	nested.SetString("a", NewDict())

	tests := []struct {
		name  string
		value Object
	}{
		{"none", NULL},
		{"true", TRUE},
		{"false", FALSE},
		{"int", NewInteger(42)},
		{"negative int", NewInteger(-9223372036854775807)},
		{"float", NewFloat(3.25)},
		{"integral float", NewFloat(2.0)},
		{"tiny float", NewFloat(1e-7)},
		{"large float", NewFloat(1e21)},
		{"string", NewString("plain")},
		{"escapes", NewString("quote \" slash \\ tab \t newline \n")},
		{"non-ascii", NewString("héllo wörld 日本 🚀")},
		{"empty list", NewList()},
		{"nested list", NewList(NewInteger(1), NewList(NewString("x"), TRUE), NewFloat(0.5))},
		{"empty dict", NewDict()},
		{"nested dict", nested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ToJSON(tt.value)
			require.NoError(t, err)
			back, err := FromJSON(data)
			require.NoError(t, err)

			assert.True(t, objectsEqual(tt.value, back), "%s became %s", tt.value.Inspect(), back.Inspect())
			assert.Equal(t, fmt.Sprintf("%T", tt.value), fmt.Sprintf("%T", back))
			assert.Equal(t, string(data), mustJSON(t, back))

			in := newTestInterpreter()
			in.Define("v", tt.value)
			result, err := in.RunSource("json_parse(json_stringify(v))")
			require.NoError(t, err)
			assert.True(t, objectsEqual(tt.value, result))
		})
	}
}

func mustJSON(t *testing.T, obj Object) string {
	t.Helper()
	data, err := ToJSON(obj)
	require.NoError(t, err)
	return string(data)
}

func TestFileBuiltins(t *testing.T) {
	dir := t.TempDir()
	out := output(t, `write_file("notes.txt", "line one")
open("notes.txt", "a", "\nline two")
print(read_file("notes.txt"))
print(file_exists("notes.txt"))
print(file_exists("missing.txt"))`, WithBaseDir(dir))
	assert.Equal(t, []string{"line one\nline two", "true", "false"}, out)

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(data))
}

func TestFileAccessDenied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("s"), 0o644))

	engine := sovereignty.New(&sovereignty.Config{Enabled: true, AppName: "test"})
	in := newTestInterpreter(WithPermissions(engine), WithBaseDir(dir))
	_, err := in.RunSource(fmt.Sprintf("read_file(%q)", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Permission denied: fs:read")

	_, err = in.RunSource(`http_get("https://example.com/")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Permission denied: http:")
}

func TestHTTPBuiltins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hello":
			fmt.Fprint(w, "hi there")
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"got":%s}`, body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out := output(t, fmt.Sprintf(`r = http_get(%[1]q)
print(r["status"])
print(r["body"])
j = http_post_json(%[2]q, {"n": 1})
print(j["body"]["got"]["n"])
p = http_post(%[2]q, "[1]")
print(p["body"])`, srv.URL+"/hello", srv.URL+"/echo"))
	assert.Equal(t, []string{"200", "hi there", "1", `{"got":[1]}`}, out)
}

func TestHTTPStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: one\ndata: two\n")
	}))
	defer srv.Close()

	reg := stream.NewRegistry()
	in := newTestInterpreter(WithStreams(reg))
	result, err := in.RunSource(fmt.Sprintf("http_stream_start(%q)", srv.URL))
	require.NoError(t, err)
	id := result.(*Integer).Value

	require.Eventually(t, func() bool { return reg.Poll(id).Done }, 5*time.Second, 10*time.Millisecond)

	in.Define("sid", NewInteger(id))
	result, err = in.RunSource("http_stream_close(sid)")
	require.NoError(t, err)
	assert.Equal(t, TRUE, result)

	result, err = in.RunSource("http_stream_poll(sid)")
	require.NoError(t, err)
	poll := result.(*Dict)
	errVal, _ := poll.GetString("error")
	assert.Contains(t, errVal.Inspect(), "not found")
}

func TestDatabaseBuiltins(t *testing.T) {
	reg := store.New(zerolog.Nop())
	defer reg.CloseAll()

	out := output(t, `db = db_open("app.db")
db_put(db, "user:1", {"name": "Ada", "tags": ["x"]})
db_put(db, "user:2", 42)
db_put(db, "other", true)
print(db_get(db, "user:1")["name"])
print(db_get(db, "user:2"))
print(db_get(db, "missing", "fallback"))
print(db_keys(db, "user:"))
print(db_delete(db, "user:2"))
print(db_delete(db, "user:2"))
print(db_close(db))`, WithBaseDir(t.TempDir()), WithStore(reg))
	assert.Equal(t, []string{"Ada", "42", "fallback", "[user:1, user:2]", "true", "false", "true"}, out)
}

func TestAuthBuiltins(t *testing.T) {
	out := output(t, `h = hash_password("s3cret")
print(verify_password(h, "s3cret"))
print(verify_password(h, "wrong"))
tok = jwt_sign({"sub": "ada"}, "key", "5m")
claims = jwt_verify(tok, "key")
print(claims["sub"])
print(jwt_verify(tok, "other"))
print(len(uuid()))`)
	assert.Equal(t, []string{"true", "false", "ada", "none", "36"}, out)

	claims, err := VerifyToken(mustSign(t, map[string]interface{}{"role": "admin"}), "k")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims["role"])
	assert.NotEmpty(t, claims["jti"])
}

func mustSign(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	tok, err := SignToken(claims, "k", time.Minute)
	require.NoError(t, err)
	return tok
}

func TestEnvBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POLY_TEST_GREETING=hello\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("POLY_TEST_GREETING") })

	out := output(t, `print(env("POLY_TEST_GREETING", "unset"))
load_env()
print(env("POLY_TEST_GREETING"))`, WithBaseDir(dir))
	assert.Equal(t, []string{"unset", "hello"}, out)
}

type recordingSender struct {
	sent []*gomail.Message
}

func (r *recordingSender) DialAndSend(msgs ...*gomail.Message) error {
	r.sent = append(r.sent, msgs...)
	return nil
}

func TestMailSend(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("SMTP_PASS", "pw")

	sender := &recordingSender{}
	out := output(t, `print(mail_send({"to": "a@example.com, b@example.com", "subject": "Hi", "body": "Hello"}))
print(mail_send("c@example.com", "Again", "Body"))`, WithMailSender(sender))
	assert.Equal(t, []string{"true", "true"}, out)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Again"}, sender.sent[1].GetHeader("Subject"))
}

func TestWebBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{`html_escape("<a href='x'>")`, "&lt;a href=&#39;x&#39;&gt;"},
		{`html_tag("p", "hi", {"class": "note"})`, `<p class="note">hi</p>`},
		{`html_tag("br")`, "<br />"},
		{`html("Demo", "<main></main>")`, "<title>Demo</title>"},
		{`markdown("# Title")`, "<h1>Title</h1>"},
		{`markdown("~~old~~")`, "<del>old</del>"},
		{`router({"/": "<p>home</p>"})`, "'/': `<p>home</p>`"},
		{`component("Card", "<div>${title}</div>", ["title"])`, "function Card(title)"},
		{`store("Cart", {"items": []}, {"add": "this.state.items.push(payload);"})`, "const cartStore = new CartStore();"},
		{`live_reload(4000)`, "ws://localhost:4000/ws"},
	}
	for _, tt := range tests {
		_, result := run(t, tt.input)
		assert.Contains(t, result.Inspect(), tt.contains, tt.input)
	}
}
