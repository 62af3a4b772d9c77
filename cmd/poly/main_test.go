package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomplete(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected bool
	}{
		{"expression", "1 + 2", false},
		{"open paren", "print(1,", true},
		{"open list across lines", "xs = [1,\n2", true},
		{"closed dict", `d = {"a": 1}`, false},
		{"block header", "def f():", true},
		{"block body", "def f():\n    return 1", true},
		{"block ended by blank line", "def f():\n    return 1\n", false},
		{"colon inside string", `s = "a:"`, false},
		{"bracket inside string", `s = "("`, false},
		{"unterminated string", `s = "abc`, true},
		{"comment ignored", "x = 1  # (", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, incomplete(tt.source))
		})
	}
}

func TestAnalyzeProgram(t *testing.T) {
	program, errs := parseSource(`import utils
from helpers import a, b

def top(x, y=2):
    def inner():
        return 1
    return inner()

class Animal:
    def speak(self):
        return "..."

class Dog(Animal):
    def speak(self):
        return "woof"

if true:
    def conditional():
        pass
`)
	require.Empty(t, errs)

	insights := analyzeProgram(program)

	var names []string
	for _, fn := range insights.Functions {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"top", "inner", "conditional"}, names)
	assert.Equal(t, []string{"x", "y=2"}, insights.Functions[0].Parameters)
	assert.Equal(t, 4, insights.Functions[0].Line)

	require.Len(t, insights.Classes, 2)
	assert.Equal(t, "Animal", insights.Classes[0].Name)
	assert.Equal(t, "Animal", insights.Classes[1].Parent)
	assert.Equal(t, []string{"speak"}, insights.Classes[1].Methods)

	assert.Equal(t, []string{"utils", "helpers (a, b)"}, insights.Imports)
}

func TestParseProjectFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		dir   string
		port  int
		token string
	}{
		{"defaults", nil, ".", 0, ""},
		{"dir first", []string{"app", "--port", "9000"}, "app", 9000, ""},
		{"dir last", []string{"--token", "s3cret", "app"}, "app", 0, "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := parseProjectFlags(tt.args, io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tt.dir, pf.dir)
			assert.Equal(t, tt.port, pf.port)
			assert.Equal(t, tt.token, pf.token)
		})
	}

	_, err := parseProjectFlags([]string{"--port", "nope"}, io.Discard)
	assert.Error(t, err)
}

func TestSetupBridge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poly.toml"), []byte(`[package]
name = "notes"
version = "1.2.0"

[dev]
port = 4321

[sovereignty]
enabled = true
permissions = ["fs:read:$appdata"]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.poly"), []byte("def hello():\n    return \"hi\"\n"), 0o644))

	s, m, err := setupBridge(projectFlags{dir: dir}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "notes", m.Package.Name)
	assert.Equal(t, int64(4321), m.Dev.Port)

	result, err := s.Interpreter().Call("hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Inspect())
}

func TestSetupBridgeRejectsUnknownPermission(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poly.toml"), []byte("[sovereignty]\nenabled = true\npermissions = [\"teleport\"]\n"), 0o644))

	_, _, err := setupBridge(projectFlags{dir: dir}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown permissions: teleport")
}

func TestSetupBridgeWithoutEntry(t *testing.T) {
	s, _, err := setupBridge(projectFlags{dir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, s.Interpreter())
}
