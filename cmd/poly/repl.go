package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adrg/xdg"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"poly/pkg/eval"
)

const (
	PROMPT      = ">>> "
	CONT_PROMPT = "... "
)

func startREPL() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	historyPath, err := xdg.DataFile("poly/repl_history")
	if err == nil {
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	stdout := termenv.NewOutput(os.Stdout)
	in := eval.New(eval.WithStdout(os.Stdout))

	fmt.Printf("Poly %s REPL\n", version)
	fmt.Println("Blocks end with an empty line. :reset clears state, exit leaves.")

	var buf []string
	for {
		prompt := PROMPT
		if len(buf) > 0 {
			prompt = CONT_PROMPT
		}
		text, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf = nil
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				errorf("%v\n", err)
			}
			break
		}

		if len(buf) == 0 {
			switch strings.TrimSpace(text) {
			case "":
				continue
			case "exit", "quit", "exit()", "quit()":
				saveHistory(line, historyPath)
				return
			case ":reset":
				in.Reset()
				continue
			}
		}

		buf = append(buf, text)
		source := strings.Join(buf, "\n")
		if incomplete(source) {
			continue
		}
		buf = nil
		line.AppendHistory(source)

		result, err := in.RunSource(source + "\n")
		if err != nil {
			errorf("%s\n", err)
			continue
		}
		if result != nil && result != eval.NULL {
			fmt.Println(stdout.String(result.Inspect()).Foreground(stdout.Color("6")))
		}
	}
	fmt.Println()
	saveHistory(line, historyPath)
}

func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

// incomplete reports whether the REPL should keep reading: brackets are
// still open, or a block header was entered and no empty line ended it.
func incomplete(source string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '#':
			for i < len(source) && source[i] != '\n' {
				i++
			}
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
		}
	}
	if depth > 0 || quote != 0 {
		return true
	}

	lines := strings.Split(source, "\n")
	block := false
	for _, l := range lines {
		if strings.HasSuffix(strings.TrimSpace(l), ":") {
			block = true
			break
		}
	}
	return block && strings.TrimSpace(lines[len(lines)-1]) != ""
}
