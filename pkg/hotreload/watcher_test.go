package hotreload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"poly/pkg/bridge"
	"poly/pkg/config"
)

type fakeTarget struct {
	mu      sync.Mutex
	reseeds int
	version int64
	err     error
}

func (f *fakeTarget) Reseed() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reseeds++
	return f.err
}

func (f *fakeTarget) Bump() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	return f.version
}

func (f *fakeTarget) counts() (int, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reseeds, f.version
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		expected Change
	}{
		{"src/main.poly", Script},
		{"lib/UTIL.POLY", Script},
		{"web/index.html", Asset},
		{"web/app.css", Asset},
		{"web/app.js", Asset},
		{"web/data.json", Asset},
		{"web/icon.svg", Asset},
		{"notes.txt", Ignored},
		{"Makefile", Ignored},
		{"web/app.js.swp", Ignored},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.path))
		})
	}
}

func TestApply(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		paths     []string
		reseedErr error
		change    Change
		reseeds   int
		version   int64
	}{
		{"asset only bumps", []string{"web/app.css"}, nil, Asset, 0, 1},
		{"script reseeds and bumps", []string{"src/main.poly"}, nil, Script, 1, 1},
		{"mixed batch reseeds once", []string{"web/index.html", "src/main.poly", "src/lib.poly"}, nil, Script, 1, 1},
		{"ignored files do nothing", []string{"README.md"}, nil, Ignored, 0, 0},
		{"failed reseed still bumps", []string{"src/main.poly"}, errors.New("Error at line 2: boom"), Script, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{err: tt.reseedErr}
			var notified []Result
			w, err := New(dir, target, WithNotify(func(r Result) { notified = append(notified, r) }))
			require.NoError(t, err)
			defer w.Close()

			res := w.Apply(tt.paths...)
			assert.Equal(t, tt.change, res.Change)
			assert.Equal(t, tt.version, res.Version)
			assert.Equal(t, tt.reseedErr, res.Err)

			reseeds, version := target.counts()
			assert.Equal(t, tt.reseeds, reseeds)
			assert.Equal(t, tt.version, version)
			if tt.change == Ignored {
				assert.Empty(t, notified)
			} else {
				assert.Len(t, notified, 1)
			}
		})
	}
}

type panickingTarget struct {
	fakeTarget
}

func (p *panickingTarget) Reseed() error {
	p.fakeTarget.Reseed()
	panic("strings: negative Repeat count")
}

func TestApplyRecoversReseedPanic(t *testing.T) {
	target := &panickingTarget{}
	w, err := New(t.TempDir(), target)
	require.NoError(t, err)
	defer w.Close()

	var res Result
	require.NotPanics(t, func() { res = w.Apply("src/main.poly") })
	assert.ErrorContains(t, res.Err, "reload panic: strings: negative Repeat count")
	assert.Equal(t, int64(1), res.Version)

	res = w.Apply("web/app.css")
	assert.NoError(t, res.Err)
	assert.Equal(t, int64(2), res.Version)
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), &fakeTarget{})
	assert.Error(t, err)
}

func TestWatchDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{}
	w, err := New(dir, target, WithDebounce(100*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644))
	}

	require.Eventually(t, func() bool {
		_, v := target.counts()
		return v == 1
	}, 3*time.Second, 20*time.Millisecond)
	reseeds, _ := target.counts()
	assert.Zero(t, reseeds)
}

func TestWatchNewDirectory(t *testing.T) {
	dir := t.TempDir()
	target := &fakeTarget{}
	w, err := New(dir, target, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// the new directory is registered asynchronously
	require.Eventually(t, func() bool {
		os.WriteFile(filepath.Join(sub, "main.poly"), []byte("x = 1\n"), 0o644)
		reseeds, _ := target.counts()
		return reseeds > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatchReseedsBridge(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.poly")
	require.NoError(t, os.WriteFile(entry, []byte("def answer():\n    return 1\n"), 0o644))

	s := bridge.New(config.Default(dir), bridge.WithEntry(entry))
	require.NoError(t, s.Reseed())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	w, err := New(dir, s, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(entry, []byte("def answer():\n    return 42\n"), 0o644))

	require.Eventually(t, func() bool {
		return s.Version() >= 1
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Post(ts.URL+"/__poly_invoke", "application/json", strings.NewReader(`{"fn":"answer","args":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readAll(t, resp)
	assert.Equal(t, int64(42), gjson.Get(body, "result").Int())

	resp2, err := http.Get(ts.URL + "/__poly_reload")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.GreaterOrEqual(t, gjson.Get(readAll(t, resp2), "version").Int(), int64(1))
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
