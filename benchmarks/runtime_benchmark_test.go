package benchmarks

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"poly/pkg/bridge"
	"poly/pkg/config"
	"poly/pkg/eval"
	"poly/pkg/lexer"
	"poly/pkg/parser"
	"poly/pkg/sovereignty"
)

var result eval.Object

func seeded(b *testing.B, input string) *eval.Interpreter {
	b.Helper()
	in := eval.New()
	if _, err := in.RunSource(input); err != nil {
		b.Fatal(err)
	}
	return in
}

func BenchmarkLexAndParse(b *testing.B) {
	input := strings.Repeat(`
def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)

items = [x * 2 for x in range(10) if x % 2 == 0]
label = f"{len(items)} items"
`, 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := parser.New(lexer.New(input))
		p.ParseProgram()
		if len(p.Errors()) > 0 {
			b.Fatal(p.Errors())
		}
	}
}

func BenchmarkTreeWalkAddition(b *testing.B) {
	program, err := eval.Parse(`
5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5
`)
	if err != nil {
		b.Fatal(err)
	}
	in := eval.New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = in.Run(program)
	}
}

func BenchmarkFibonacciCall(b *testing.B) {
	in := seeded(b, `
def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)
`)
	arg := &eval.Integer{Value: 15}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = in.Call("fib", arg)
	}
}

// Go native baseline for comparison
func BenchmarkGoFibonacci(b *testing.B) {
	var fib func(n int) int
	fib = func(n int) int {
		if n < 2 {
			return n
		}
		return fib(n-1) + fib(n-2)
	}
	var r int
	for i := 0; i < b.N; i++ {
		r = fib(15)
	}
	_ = r
}

func BenchmarkPermissionCheck(b *testing.B) {
	cfg, err := sovereignty.ParseManifest(`[sovereignty]
enabled = true
permissions = ["fs:read:$appdata", "fs:write:$temp", "http:api.example.com"]
http_blocklist = ["tracker.example.com"]
`, "bench")
	if err != nil {
		b.Fatal(err)
	}
	engine := sovereignty.New(cfg)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.CheckURL("https://api.example.com/v1/items")
	}
}

func BenchmarkBridgeInvoke(b *testing.B) {
	s := bridge.New(config.Default(b.TempDir()))
	if err := s.Seed("def add(a, b):\n    return a + b\n"); err != nil {
		b.Fatal(err)
	}
	h := s.Handler()
	body := `{"fn":"add","args":{"a":2,"b":3}}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/__poly_invoke", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
	}
}
