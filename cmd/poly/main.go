package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"

	"poly/pkg/ast"
	"poly/pkg/config"
	"poly/pkg/eval"
	"poly/pkg/lexer"
	"poly/pkg/parser"
	"poly/pkg/sovereignty"
	"poly/pkg/token"
)

// Set with -ldflags "-X main.version=...".
var (
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var stderr = termenv.NewOutput(os.Stderr)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "--version", "-v", "version":
		printVersion()
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	// poly <file.poly> is a shortcut for poly run
	if strings.HasSuffix(command, ".poly") {
		runFile(command)
		return
	}

	switch command {
	case "run":
		requireArg(args, "poly run <file>")
		runFile(args[0])
	case "eval":
		requireArg(args, "poly eval '<code>'")
		evalCode(args[0])
	case "repl":
		startREPL()
	case "tokens":
		requireArg(args, "poly tokens <file>")
		printTokens(args[0])
	case "ast":
		requireArg(args, "poly ast <file>")
		printProgramAST(args[0])
	case "inspect":
		requireArg(args, "poly inspect <file>")
		inspectFile(args[0])
	case "check":
		checkProject(projectArg(args))
	case "dev":
		os.Exit(runProject(args, true))
	case "serve":
		os.Exit(runProject(args, false))
	default:
		errorf("Unknown command: %s\n\n", command)
		printHelp()
		os.Exit(1)
	}
}

func requireArg(args []string, usage string) {
	if len(args) == 0 || args[0] == "" {
		fmt.Println("Usage: " + usage)
		os.Exit(1)
	}
}

// projectArg returns the first non-flag argument, "." if there is none.
func projectArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return "."
}

func errorf(format string, a ...any) {
	label := stderr.String("error:").Foreground(stderr.Color("1")).Bold()
	fmt.Fprintf(os.Stderr, "%s %s", label, fmt.Sprintf(format, a...))
}

func printUsage() {
	fmt.Println("Poly v" + version)
	fmt.Println("\nUsage:")
	fmt.Println("  poly <file.poly>         Run a script")
	fmt.Println("  poly repl                Start interactive REPL")
	fmt.Println("  poly dev [project]       Serve a project with hot reload")
	fmt.Println("  poly help                Show all commands")
}

func printVersion() {
	fmt.Printf("Poly %s\n", version)
	fmt.Printf("Build Date: %s\n", buildDate)
	fmt.Printf("Git Commit: %s\n", gitCommit)
}

func printHelp() {
	fmt.Println("Poly - scripted desktop apps with a web UI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  poly <file.poly>           Run a script (shortcut for 'poly run')")
	fmt.Println("  poly run <file>            Execute a script")
	fmt.Println("  poly eval '<code>'         Evaluate source and print the result")
	fmt.Println("  poly repl                  Start the interactive REPL")
	fmt.Println("  poly tokens <file>         Print the token stream")
	fmt.Println("  poly ast <file>            Print the program AST")
	fmt.Println("  poly inspect <file>        Summarize functions, classes and imports")
	fmt.Println("  poly check [project]       Validate poly.toml and print granted permissions")
	fmt.Println("  poly dev [project]         Run the bridge and reload on file changes")
	fmt.Println("  poly serve [project]       Run the bridge without the file watcher")
	fmt.Println("  poly version               Display build metadata")
	fmt.Println("  poly help                  Show this help message")
	fmt.Println()
	fmt.Println("Flags for dev and serve:")
	fmt.Println("  --port N                   Listen on 127.0.0.1:N (default: dev.port or random)")
	fmt.Println("  --token SECRET             Require a signed bearer token on /__poly_invoke")
	fmt.Println("  --log-level LEVEL          debug, info, warn or error")
}

func runFile(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		errorf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	program, errs := parseSource(string(data))
	if len(errs) != 0 {
		printParserErrors(os.Stderr, errs)
		os.Exit(1)
	}

	in := scriptInterpreter(filename)
	if _, err := in.Run(program); err != nil {
		errorf("%s\n", err)
		os.Exit(1)
	}
}

// scriptInterpreter builds an interpreter for a standalone script. A
// poly.toml next to the script supplies its permission section.
func scriptInterpreter(filename string) *eval.Interpreter {
	dir := filepath.Dir(filename)
	opts := []eval.Option{eval.WithStdout(os.Stdout), eval.WithBaseDir(dir)}
	if m, err := config.LoadProject(dir); err == nil {
		if cfg, err := sovereignty.FromDocument(m.Doc, m.Package.Name); err == nil && cfg.Enabled {
			opts = append(opts, eval.WithPermissions(sovereignty.New(cfg)))
		}
	}
	return eval.New(opts...)
}

func evalCode(code string) {
	program, errs := parseSource(code)
	if len(errs) != 0 {
		printParserErrors(os.Stderr, errs)
		os.Exit(1)
	}

	in := eval.New(eval.WithStdout(os.Stdout))
	result, err := in.Run(program)
	if err != nil {
		errorf("%s\n", err)
		os.Exit(1)
	}
	if result != nil && result != eval.NULL {
		fmt.Println(result.Inspect())
	}
}

func printTokens(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		errorf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	for _, tok := range lexer.New(string(data)).Tokenize() {
		fmt.Printf("%4d:%-3d %-10s %q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
		if tok.Type == token.EOF {
			break
		}
	}
}

func printProgramAST(filename string) {
	program := mustParseFile(filename)
	for _, stmt := range program.Statements {
		fmt.Println(stmt.String())
	}
}

func inspectFile(filename string) {
	program := mustParseFile(filename)
	insights := analyzeProgram(program)
	printFunctionInsights(insights.Functions)
	printClassInsights(insights.Classes)
	printImportInsights(insights.Imports)
}

func checkProject(dir string) {
	m, err := config.LoadProject(dir)
	if err != nil {
		errorf("%v\n", err)
		os.Exit(1)
	}
	cfg, err := sovereignty.FromDocument(m.Doc, m.Package.Name)
	if err != nil {
		errorf("%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s %s\n", m.Package.Name, m.Package.Version)
	if entry, err := m.EntryPoint(); err == nil {
		fmt.Printf("  entry:       %s\n", entry)
	} else {
		fmt.Printf("  entry:       none (%v)\n", err)
	}
	fmt.Printf("  web root:    %s\n", m.WebRoot())
	if !cfg.Enabled {
		fmt.Println("  sovereignty: disabled (every operation is allowed)")
		return
	}
	fmt.Println("  sovereignty: enabled")
	printList("permissions", cfg.Granted())
	printList("http allow", cfg.HTTPAllowlist)
	printList("http block", cfg.HTTPBlocklist)
	fsAllow := make([]string, 0, len(cfg.FSAllowlist))
	for _, s := range cfg.FSAllowlist {
		fsAllow = append(fsAllow, s.String())
	}
	printList("fs allow", fsAllow)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, it := range items {
		fmt.Printf("    · %s\n", it)
	}
}

func parseSource(source string) (*ast.Program, []string) {
	p := parser.New(lexer.New(source))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		return nil, errs
	}
	return program, nil
}

func mustParseFile(filename string) *ast.Program {
	data, err := os.ReadFile(filename)
	if err != nil {
		errorf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	program, errs := parseSource(string(data))
	if len(errs) != 0 {
		printParserErrors(os.Stderr, errs)
		os.Exit(1)
	}
	return program
}

func printParserErrors(out io.Writer, errors []string) {
	io.WriteString(out, "Parser errors:\n")
	for _, msg := range errors {
		io.WriteString(out, "\t"+msg+"\n")
	}
}
