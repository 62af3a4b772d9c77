// Package hotreload watches a project directory and pushes changes into a
// running bridge: script edits reseed the interpreter, asset edits only
// bump the reload counter.
package hotreload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"poly/pkg/logging"
)

const DefaultDebounce = 50 * time.Millisecond

// Target is what the watcher drives; *bridge.Server implements it.
type Target interface {
	Reseed() error
	Bump() int64
}

type Change int

const (
	Ignored Change = iota
	Asset
	Script
)

func (c Change) String() string {
	switch c {
	case Asset:
		return "asset"
	case Script:
		return "script"
	}
	return "ignored"
}

var assetExts = map[string]bool{
	".html": true,
	".css":  true,
	".js":   true,
	".json": true,
	".svg":  true,
}

// Classify reports how a change to path affects a running app.
func Classify(path string) Change {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".poly" {
		return Script
	}
	if assetExts[ext] {
		return Asset
	}
	return Ignored
}

// skipDirs are never watched.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"target":       true,
	".poly":        true,
}

// Result describes one applied batch of changes.
type Result struct {
	Paths   []string
	Change  Change
	Version int64
	Err     error
	Took    time.Duration
}

type Watcher struct {
	root     string
	target   Target
	fsw      *fsnotify.Watcher
	delay    time.Duration
	debounce func(func())
	log      zerolog.Logger
	notify   func(Result)

	mu      sync.Mutex
	pending map[string]Change
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.log = logging.Component(l, "hotreload") }
}

// WithNotify registers a callback run after every applied batch.
func WithNotify(fn func(Result)) Option {
	return func(w *Watcher) { w.notify = fn }
}

// New watches root and every directory below it.
func New(root string, target Target, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		target:  target,
		fsw:     fsw,
		delay:   DefaultDebounce,
		log:     logging.Nop(),
		pending: map[string]Change{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debounce = debounce.New(w.delay)

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers file events until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		}
	}
}

// Close stops Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDirs[filepath.Base(event.Name)] {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Msg("watch new directory")
			}
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	change := Classify(event.Name)
	if change == Ignored {
		return
	}

	w.mu.Lock()
	if change > w.pending[event.Name] {
		w.pending[event.Name] = change
	}
	w.mu.Unlock()
	w.debounce(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = map[string]Change{}
	w.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	w.Apply(paths...)
}

func (w *Watcher) reseed() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reload panic: %v", r)
		}
	}()
	return w.target.Reseed()
}

// Apply handles a batch of changed paths right away: any script among them
// reseeds the target, and any relevant change bumps the reload counter.
// The counter is bumped even when reseeding fails; the previous
// interpreter then stays active.
func (w *Watcher) Apply(paths ...string) Result {
	res := Result{Paths: paths}
	for _, p := range paths {
		if c := Classify(p); c > res.Change {
			res.Change = c
		}
	}
	if res.Change == Ignored {
		return res
	}

	start := time.Now()
	if res.Change == Script {
		res.Err = w.reseed()
	}
	res.Version = w.target.Bump()
	res.Took = time.Since(start)

	names := make([]string, len(paths))
	for i, p := range paths {
		if rel, err := filepath.Rel(w.root, p); err == nil && !strings.HasPrefix(rel, "..") {
			names[i] = rel
		} else {
			names[i] = p
		}
	}
	if res.Err != nil {
		w.log.Error().Err(res.Err).Strs("paths", names).Msg("reload failed")
	} else {
		w.log.Info().Strs("paths", names).Str("change", res.Change.String()).Int64("version", res.Version).Dur("took", res.Took).Msg("hmr update")
	}
	if w.notify != nil {
		w.notify(res)
	}
	return res
}
