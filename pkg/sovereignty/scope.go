package sovereignty

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"
)

// rootOrder is the order roots are tried when mapping a path to a scope;
// AppData comes first because it may live under another root.
var rootOrder = []ScopeKind{AppData, Documents, Downloads, Desktop, Pictures, Music, Videos, Temp}

// DefaultRoots resolves the named scopes to the user's directories.
func DefaultRoots(appName string) map[ScopeKind]string {
	if appName == "" {
		appName = "poly"
	}
	return map[ScopeKind]string{
		AppData:   filepath.Join(xdg.DataHome, appName),
		Documents: xdg.UserDirs.Documents,
		Downloads: xdg.UserDirs.Download,
		Desktop:   xdg.UserDirs.Desktop,
		Pictures:  xdg.UserDirs.Pictures,
		Music:     xdg.UserDirs.Music,
		Videos:    xdg.UserDirs.Videos,
		Temp:      os.TempDir(),
	}
}

// Root returns the directory a named scope resolves to.
func (e *Engine) Root(kind ScopeKind) string {
	if e == nil {
		return DefaultRoots("")[kind]
	}
	return e.roots[kind]
}

// ScopeOf maps a concrete path to the narrowest named scope containing it,
// or to a custom scope holding the cleaned path.
func (e *Engine) ScopeOf(path string) PathScope {
	if path == ":memory:" {
		return PathScope{Kind: Temp}
	}
	clean := cleanPath(path)
	for _, kind := range rootOrder {
		root := e.Root(kind)
		if root != "" && within(root, clean) {
			return PathScope{Kind: kind}
		}
	}
	return PathScope{Kind: CustomPath, Path: clean}
}

// ExpandScope rewrites a leading `$documents`-style alias in path to the
// directory it names.
func (e *Engine) ExpandScope(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}
	head, rest, _ := strings.Cut(path, "/")
	kind, ok := scopeAliases[strings.ToLower(head)]
	if !ok || kind == AnyPath {
		return path
	}
	return filepath.Join(e.Root(kind), rest)
}

func (e *Engine) scopeMatches(allowed, requested PathScope) bool {
	switch {
	case allowed.Kind == AnyPath:
		return true
	case allowed.Kind != CustomPath:
		return allowed.Kind == requested.Kind
	case requested.Kind != CustomPath:
		return false
	}

	pattern := filepath.ToSlash(cleanPath(e.ExpandScope(allowed.Path)))
	target := filepath.ToSlash(requested.Path)
	if pattern == target || within(pattern, target) {
		return true
	}
	ok, err := doublestar.Match(pattern, target)
	return err == nil && ok
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
