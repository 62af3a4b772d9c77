package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
# Notes app
[package]
name = "notes"
version = "1.2.0"

[web]
dir = 'ui'   # served at /

[window]
title = "Notes"
width = 1280
height = 800
resizable = false
background_color = "#10203040"

[dev]
port = 4100
inject_alpine = true

[network]
timeout = 10
max_body_size = 1_000_000

[tray]
enabled = true
tooltip = "Notes are running"

[sovereignty]
enabled = true
permissions = [
    "notifications",
    "fs:read:$documents", # documents only
]
http_allowlist = ["api.example.com", "cdn.example.org"]

[build]
targets = ["linux"]
`

func TestParseDocument(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "package", "web", "window", "dev", "network", "tray", "sovereignty", "build"}, doc.Sections())
	assert.Equal(t, "notes", doc.String("package", "name", ""))
	assert.Equal(t, "ui", doc.String("web", "dir", ""))

	width, err := doc.Int("window", "width", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1280, width)

	size, err := doc.Int("network", "max_body_size", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000, size)

	assert.Equal(t, []string{"notifications", "fs:read:$documents"}, doc.List("sovereignty", "permissions"))
	assert.Equal(t, []string{"api.example.com", "cdn.example.org"}, doc.List("sovereignty", "http_allowlist"))
	assert.Nil(t, doc.List("sovereignty", "fs_allowlist"))

	_, ok := doc.Lookup("sovereignty", "permissions")
	assert.False(t, ok, "lists have no scalar form")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("[a]\njust words\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = Parse("[a]\nlist = [\"x\",\n\"y\"\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated array")
}

func TestTypedAccessErrors(t *testing.T) {
	doc, err := Parse("[window]\nwidth = wide\nresizable = maybe\n")
	require.NoError(t, err)

	_, err = doc.Int("window", "width", 0)
	assert.Error(t, err)
	_, err = doc.Bool("window", "resizable", true)
	assert.Error(t, err)
}

func TestManifestFromString(t *testing.T) {
	m, err := FromString(sample, "/apps/notes")
	require.NoError(t, err)

	assert.Equal(t, "notes", m.Package.Name)
	assert.Equal(t, "1.2.0", m.Package.Version)
	assert.Equal(t, "/apps/notes/ui", m.WebRoot())
	assert.Equal(t, "Notes", m.Window.Title)
	assert.EqualValues(t, 1280, m.Window.Width)
	assert.EqualValues(t, 800, m.Window.Height)
	assert.False(t, m.Window.Resizable)
	assert.True(t, m.Window.Decorations, "default kept")
	assert.EqualValues(t, 4100, m.Dev.Port)
	assert.True(t, m.Dev.InjectAlpine)
	assert.False(t, m.Dev.InjectLucide)
	assert.EqualValues(t, 10, m.Network.Timeout)
	assert.True(t, m.Tray.Enabled)
	assert.Equal(t, "Notes are running", m.Tray.Tooltip)
	assert.True(t, m.Doc.Has("build"))
}

func TestManifestDefaults(t *testing.T) {
	m, err := FromString("", "/apps/blank")
	require.NoError(t, err)

	assert.Equal(t, "blank", m.Package.Name)
	assert.Equal(t, "web", m.WebDir)
	assert.EqualValues(t, DefaultWidth, m.Window.Width)
	assert.EqualValues(t, DefaultHeight, m.Window.Height)
	assert.True(t, m.Window.Resizable)
	assert.False(t, m.Window.Transparent)
	assert.Equal(t, DefaultBackgroundColor, m.Window.BackgroundColor)
	assert.EqualValues(t, DefaultTimeout, m.Network.Timeout)
	assert.EqualValues(t, DefaultMaxBodySize, m.Network.MaxBodySize)
	assert.EqualValues(t, 0, m.Dev.Port)
	assert.Equal(t, "blank", m.Tray.Tooltip)
}

func TestManifestRejectsBadValues(t *testing.T) {
	_, err := FromString("[window]\nbackground_color = \"blue\"\n", "/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "background_color")

	_, err = FromString("[dev]\nport = auto\n", "/x")
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#1a1a1a")
	require.NoError(t, err)
	assert.Equal(t, RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}, c)

	c, err = ParseColor("#10203040")
	require.NoError(t, err)
	assert.Equal(t, RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, c)

	for _, bad := range []string{"1a1a1a", "#12345", "#zzzzzz", ""} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadProjectWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POLY_TEST_APP_NAME=from-env\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[package]\nname = \"${POLY_TEST_APP_NAME}\"\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("POLY_TEST_APP_NAME") })

	m, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", m.Package.Name)
	assert.Equal(t, dir, m.Dir)
}

func TestLoadProjectWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	m, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), m.Package.Name)

	_, err = m.EntryPoint()
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "app.poly"), []byte("print(1)\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.poly"), []byte("print(2)\n"), 0o644))

	entry, err := m.EntryPoint()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "src", "app.poly"), entry)
}
