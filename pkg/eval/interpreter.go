package eval

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"poly/pkg/ast"
	"poly/pkg/lexer"
	"poly/pkg/mailer"
	"poly/pkg/parser"
	"poly/pkg/sovereignty"
	"poly/pkg/store"
	"poly/pkg/stream"
)

const maxCallDepth = 1500

// Interpreter runs poly programs. It is not safe for concurrent use; the
// bridge serializes calls behind its own mutex.
type Interpreter struct {
	globals *Environment
	env     *Environment
	classes map[string]*Class
	output  []string
	depth   int

	stdout  io.Writer
	stdin   *bufio.Reader
	baseDir string
	perms   *sovereignty.Engine
	streams *stream.Registry
	db      *store.Registry
	mail    mailer.Sender
	client  *http.Client
	rng     *rand.Rand
	log     zerolog.Logger
}

type Option func(*Interpreter)

// WithPermissions routes every privileged built-in through engine.
func WithPermissions(engine *sovereignty.Engine) Option {
	return func(in *Interpreter) { in.perms = engine }
}

func WithStreams(r *stream.Registry) Option {
	return func(in *Interpreter) { in.streams = r }
}

func WithStore(r *store.Registry) Option {
	return func(in *Interpreter) { in.db = r }
}

// WithMailSender replaces the SMTP dialer mail_send uses.
func WithMailSender(s mailer.Sender) Option {
	return func(in *Interpreter) { in.mail = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(in *Interpreter) { in.log = l }
}

// WithStdout mirrors print output to w in addition to the output buffer.
func WithStdout(w io.Writer) Option {
	return func(in *Interpreter) { in.stdout = w }
}

func WithStdin(r io.Reader) Option {
	return func(in *Interpreter) { in.stdin = bufio.NewReader(r) }
}

// WithBaseDir sets the directory `import X` resolves X.poly against.
func WithBaseDir(dir string) Option {
	return func(in *Interpreter) { in.baseDir = dir }
}

func WithHTTPClient(c *http.Client) Option {
	return func(in *Interpreter) { in.client = c }
}

func WithSeed(seed int64) Option {
	return func(in *Interpreter) { in.rng = rand.New(rand.NewSource(seed)) }
}

func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		stdin:   bufio.NewReader(os.Stdin),
		baseDir: ".",
		streams: stream.Default,
		db:      store.Default,
		client:  &http.Client{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.Reset()
	return in
}

// Reset drops every scope, class and buffered output line and installs a
// fresh set of built-ins.
func (in *Interpreter) Reset() {
	in.globals = NewEnvironment()
	for name, def := range builtins {
		in.globals.Set(name, def.object(name))
	}
	in.env = NewEnclosedEnvironment(in.globals)
	in.classes = map[string]*Class{}
	in.output = nil
	in.depth = 0
}

// Output returns the lines printed so far.
func (in *Interpreter) Output() []string {
	return append([]string(nil), in.output...)
}

func (in *Interpreter) SetStdout(w io.Writer) { in.stdout = w }

func (in *Interpreter) Permissions() *sovereignty.Engine { return in.perms }

// Parse turns source into a program, joining every parser error.
func Parse(source string) (*ast.Program, error) {
	p := parser.New(lexer.New(source))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse error: %s", strings.Join(errs, "; "))
	}
	return program, nil
}

// RunSource parses and runs source.
func (in *Interpreter) RunSource(source string) (Object, error) {
	program, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return in.Run(program)
}

// Run executes the top-level statements of program in order and returns
// the value of the last one. A top-level return stops the program early.
func (in *Interpreter) Run(program *ast.Program) (_ Object, err error) {
	defer in.recoverPanic(&err)
	var result Object = NULL
	for _, stmt := range program.Statements {
		result = in.execStatement(stmt)
		switch r := result.(type) {
		case *ErrorObj:
			return nil, r
		case *ReturnValue:
			return r.Value, nil
		case *controlSignal:
			result = NULL
		}
	}
	return result, nil
}

// recoverPanic turns a panic escaping evaluation into an error and resets
// the scope chain to the globals.
func (in *Interpreter) recoverPanic(err *error) {
	if r := recover(); r != nil {
		in.env = in.globals
		in.depth = 0
		in.log.Error().Interface("panic", r).Msg("evaluation panicked")
		*err = &ErrorObj{Message: fmt.Sprintf("internal error: %v", r)}
	}
}

// Call invokes a script function that an earlier Run defined.
func (in *Interpreter) Call(name string, args ...Object) (_ Object, err error) {
	defer in.recoverPanic(&err)
	fn, ok := in.env.Get(name)
	if !ok {
		return nil, &ErrorObj{Message: "Undefined function: " + name + in.suggest(name)}
	}
	result := in.applyFunction(fn, args, nil)
	if err, ok := result.(*ErrorObj); ok {
		return nil, err
	}
	return result, nil
}

// Lookup returns the value bound to name in the current scope chain.
func (in *Interpreter) Lookup(name string) (Object, bool) {
	return in.env.Get(name)
}

// Define binds name in the global scope.
func (in *Interpreter) Define(name string, value Object) {
	in.globals.Set(name, value)
}

func (in *Interpreter) pushScope() {
	in.env = NewEnclosedEnvironment(in.env)
}

func (in *Interpreter) popScope() {
	if in.env.outer != nil && in.env.outer != in.globals {
		in.env = in.env.outer
	}
}

func (in *Interpreter) print(line string) {
	in.output = append(in.output, line)
	if in.stdout != nil {
		fmt.Fprintln(in.stdout, line)
	}
}

// importFile runs dir/name.poly in the current scope.
func (in *Interpreter) importFile(name string) Object {
	path := filepath.Join(in.baseDir, strings.ReplaceAll(name, ".", string(filepath.Separator))+".poly")
	if _, err := os.Stat(path); err != nil {
		return newError("Module not found: %s", name)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return newError("Failed to read module %s: %s", name, err)
	}
	program, perr := Parse(string(source))
	if perr != nil {
		return newError("%s", perr.Error())
	}
	in.log.Debug().Str("module", name).Str("path", path).Msg("import")
	for _, stmt := range program.Statements {
		if res := in.execStatement(stmt); isError(res) {
			return res
		}
	}
	return NULL
}
