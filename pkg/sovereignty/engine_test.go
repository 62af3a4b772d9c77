package sovereignty

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `
[package]
name = "notes"

[sovereignty]
enabled = true
audit_log = true
permissions = [
    "clipboard:write",
    "fs:read:$documents",
    "fs:write:$temp",
    "http:api.example.com",
    "notifications",
]
http_allowlist = ["cdn.example.org"]
http_blocklist = ["tracker.example"]
fs_allowlist = ["/srv/shared/**"]
`

func testRoots(t *testing.T) map[ScopeKind]string {
	base := t.TempDir()
	return map[ScopeKind]string{
		AppData:   filepath.Join(base, "data", "notes"),
		Documents: filepath.Join(base, "Documents"),
		Downloads: filepath.Join(base, "Downloads"),
		Desktop:   filepath.Join(base, "Desktop"),
		Pictures:  filepath.Join(base, "Pictures"),
		Music:     filepath.Join(base, "Music"),
		Videos:    filepath.Join(base, "Videos"),
		Temp:      filepath.Join(base, "tmp"),
	}
}

func newEngine(t *testing.T, content string, opts ...Option) *Engine {
	t.Helper()
	cfg, err := ParseManifest(content, "notes")
	require.NoError(t, err)
	return New(cfg, append([]Option{WithRoots(testRoots(t))}, opts...)...)
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"clipboard", "clipboard:read"},
		{"CLIPBOARD:WRITE", "clipboard:write"},
		{"fs:$documents", "fs:read:$documents"},
		{"fs:write:documents", "fs:write:$documents"},
		{"fs:rw:$temp", "fs:write:$temp"},
		{"filesystem:read:*", "fs:read:*"},
		{"fs:read:/srv/Data", "fs:read:/srv/Data"},
		{"http:Example.com", "http:example.com"},
		{"network:*", "http:*"},
		{"http:127.0.0.1", "http:localhost"},
		{"db", "database"},
		{"sqlite", "database"},
		{"window", "window:create"},
		{"deep_links", "deeplinks"},
		{"tray", "system_tray"},
		{"shell", "shell:open"},
		{"app:relaunch", "app:relaunch"},
	}

	for _, tt := range tests {
		p, err := ParsePermission(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, p.String(), tt.input)
	}

	_, err := ParsePermission("teleport")
	assert.Error(t, err)
	_, err = ParsePermission("fs:write:")
	assert.Error(t, err)
}

func TestFromManifest(t *testing.T) {
	cfg, err := ParseManifest(manifest, "notes")
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.AuditLog)
	assert.Equal(t, []string{
		"clipboard:write", "fs:read:$documents", "fs:write:$temp", "http:api.example.com", "notifications",
	}, cfg.Granted())
	assert.Equal(t, []string{"cdn.example.org"}, cfg.HTTPAllowlist)
	assert.Equal(t, []string{"tracker.example"}, cfg.HTTPBlocklist)
	require.Len(t, cfg.FSAllowlist, 1)
	assert.Equal(t, "/srv/shared/**", cfg.FSAllowlist[0].Path)
}

func TestMissingSectionDisables(t *testing.T) {
	cfg, err := ParseManifest("[package]\nname = \"x\"\n", "x")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	e := New(cfg)
	assert.NoError(t, e.Check(Simple(ShellExecute)))
	assert.NoError(t, e.CheckPath(FsWrite, "/etc/passwd"))
}

func TestUnknownPermissionIsReported(t *testing.T) {
	cfg, err := ParseManifest("[sovereignty]\nenabled = true\npermissions = [\"notifications\", \"telepathy\"]\n", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telepathy")
	assert.Equal(t, []string{"notifications"}, cfg.Granted())
}

func TestDevelopmentModeAllowsEverything(t *testing.T) {
	cfg, err := LoadManifest("", "dev")
	require.NoError(t, err)

	e := New(cfg)
	assert.False(t, e.Enabled())
	assert.NoError(t, e.Check(Simple(ShellExecute)))
	assert.NoError(t, e.CheckURL("https://tracker.example/pixel"))

	var nilEngine *Engine
	assert.NoError(t, nilEngine.Check(Simple(AppExit)))
}

func TestAlwaysAllowed(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\n")
	assert.NoError(t, e.Check(Simple(OsInfo)))
	assert.NoError(t, e.Check(Simple(Dialogs)))
	assert.Error(t, e.Check(Simple(Notifications)))
}

func TestClipboard(t *testing.T) {
	e := newEngine(t, manifest)
	assert.NoError(t, e.Check(Simple(ClipboardRead)), "write implies read")
	assert.NoError(t, e.Check(Simple(ClipboardWrite)))

	readOnly := newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"clipboard\"]\n")
	assert.NoError(t, readOnly.Check(Simple(ClipboardRead)))
	err := readOnly.Check(Simple(ClipboardWrite))
	require.Error(t, err)
	assert.Equal(t, "Permission denied: clipboard:write", err.Error())
}

func TestFilesystemScopes(t *testing.T) {
	e := newEngine(t, manifest)
	docs := e.Root(Documents)
	tmp := e.Root(Temp)

	assert.NoError(t, e.CheckPath(FsRead, filepath.Join(docs, "todo.txt")))
	assert.Error(t, e.CheckPath(FsWrite, filepath.Join(docs, "todo.txt")))

	assert.NoError(t, e.CheckPath(FsWrite, filepath.Join(tmp, "cache.bin")))
	assert.NoError(t, e.CheckPath(FsRead, filepath.Join(tmp, "cache.bin")), "write scope implies read of the same scope")

	assert.Error(t, e.CheckPath(FsRead, filepath.Join(e.Root(Downloads), "a.zip")))

	assert.NoError(t, e.CheckPath(FsWrite, "/srv/shared/team/notes.md"), "fs_allowlist glob")
	assert.Error(t, e.CheckPath(FsRead, "/srv/private/notes.md"))

	assert.NoError(t, e.CheckPath(FsRead, ":memory:"))
}

func TestFilesystemDenialNamesPath(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"notifications\"]\n")

	err := e.CheckPath(FsRead, "/etc/passwd")
	require.Error(t, err)
	assert.True(t, IsDenied(err))
	assert.Equal(t, "Permission denied: fs:read:/etc/passwd", err.Error())

	err = e.CheckPath(FsWrite, filepath.Join(e.Root(Documents), "x.txt"))
	require.Error(t, err)
	assert.Equal(t, "Permission denied: fs:write:$documents", err.Error())
}

func TestAnyScopeAndCustomGrants(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"fs:read:*\", \"fs:write:/var/app\"]\n")

	assert.NoError(t, e.CheckPath(FsRead, "/anything/at/all"))
	assert.NoError(t, e.CheckPath(FsWrite, "/var/app/state.json"))
	assert.Error(t, e.CheckPath(FsWrite, "/var/application/state.json"))
	assert.Error(t, e.CheckPath(FsWrite, "/etc/hosts"))
}

func TestHTTPRules(t *testing.T) {
	e := newEngine(t, manifest)

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://api.example.com/v1/chat", true},
		{"https://eu.api.example.com/v1", true},
		{"https://example.com/", false},
		{"https://cdn.example.org/lib.js", true},
		{"https://img.cdn.example.org/a.png", true},
		{"https://tracker.example/pixel", false},
		{"http://localhost:8080/", false},
		{"api.example.com/no-scheme", true},
	}

	for _, tt := range tests {
		err := e.CheckURL(tt.url)
		if tt.allowed {
			assert.NoError(t, err, tt.url)
		} else {
			assert.Error(t, err, tt.url)
		}
	}
}

func TestBlocklistWinsOverAllowlist(t *testing.T) {
	e := newEngine(t, `
[sovereignty]
enabled = true
permissions = ["http:*"]
http_allowlist = ["*"]
http_blocklist = ["tracker.example"]
`)

	err := e.CheckURL("https://tracker.example/pixel")
	require.Error(t, err)
	assert.Equal(t, "Permission denied: http:tracker.example", err.Error())

	assert.Error(t, e.CheckURL("https://cdn.tracker.example/x"))
	assert.NoError(t, e.CheckURL("https://anything.else/"))
}

func TestInternationalDomains(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"http:bücher.example\"]\n")

	assert.NoError(t, e.CheckURL("https://bücher.example/list"))
	assert.NoError(t, e.CheckURL("https://xn--bcher-kva.example/list"))
	assert.Equal(t, "xn--bcher-kva.example", DomainOf("https://BÜCHER.example").Domain)
}

func TestLocalhost(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\nhttp_allowlist = [\"localhost\"]\n")
	assert.NoError(t, e.CheckURL("http://127.0.0.1:3000/api"))

	e = newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"http:*\"]\n")
	assert.NoError(t, e.CheckURL("http://localhost/"))

	e = newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"http:example.com\"]\n")
	assert.Error(t, e.CheckURL("http://localhost/"))
}

func TestExactVariantForOtherPermissions(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\npermissions = [\"window:control\", \"db\"]\n")

	assert.NoError(t, e.Check(Simple(WindowControl)))
	assert.Error(t, e.Check(Simple(WindowCreate)))
	assert.NoError(t, e.Check(Simple(Database)))
	assert.Error(t, e.Check(Simple(ShellExecute)))
	assert.Error(t, e.Check(Simple(AppExit)))
}

func TestAuditLog(t *testing.T) {
	var buf bytes.Buffer
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	e := newEngine(t, manifest, WithAudit(zerolog.New(&buf)), WithClock(clock))

	require.NoError(t, e.Check(Simple(Notifications)))
	assert.Contains(t, buf.String(), "[AUDIT] notes @ 1700000000: notifications")

	buf.Reset()
	require.Error(t, e.Check(Simple(ShellExecute)))
	assert.Empty(t, buf.String(), "denials are not audited")
}

func TestReloadSwapsConfig(t *testing.T) {
	e := newEngine(t, "[sovereignty]\nenabled = true\n")
	require.Error(t, e.Check(Simple(Notifications)))

	cfg, err := ParseManifest("[sovereignty]\nenabled = true\npermissions = [\"notifications\"]\n", "notes")
	require.NoError(t, err)
	e.Load(cfg)
	assert.NoError(t, e.Check(Simple(Notifications)))
}

func TestExpandScope(t *testing.T) {
	e := newEngine(t, manifest)
	assert.Equal(t, filepath.Join(e.Root(Documents), "a", "b.txt"), e.ExpandScope("$documents/a/b.txt"))
	assert.Equal(t, "/plain/path", e.ExpandScope("/plain/path"))
	assert.Equal(t, "$nope/x", e.ExpandScope("$nope/x"))
}
