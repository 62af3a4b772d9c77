package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	FileName = "poly.toml"

	DefaultWidth           = 1024
	DefaultHeight          = 768
	DefaultBackgroundColor = "#1a1a1a"
	DefaultTimeout         = 30
	DefaultMaxBodySize     = 50_000_000
)

// EntryCandidates are tried in order when a project does not name its
// script entry point.
var EntryCandidates = []string{"main.poly", "src/main.poly", "app.poly", "src/app.poly", "index.poly"}

type Package struct {
	Name    string
	Version string
}

type Window struct {
	Title           string
	Width           int64
	Height          int64
	MinWidth        int64
	MinHeight       int64
	MaxWidth        int64
	MaxHeight       int64
	Decorations     bool
	Resizable       bool
	Transparent     bool
	AlwaysOnTop     bool
	Fullscreen      bool
	BackgroundColor string
	IconPath        string
}

type Dev struct {
	Port           int64
	InjectAlpine   bool
	InjectLucide   bool
	ReloadInterval int64
	Devtools       bool
}

type Network struct {
	Timeout     int64
	MaxBodySize int64
	UserAgent   string
}

type Tray struct {
	Enabled        bool
	MinimizeToTray bool
	CloseToTray    bool
	Tooltip        string
	IconPath       string
	IconSize       int64
}

// Manifest is the typed view over a project's poly.toml.
type Manifest struct {
	Dir     string
	Package Package
	WebDir  string
	Window  Window
	Dev     Dev
	Network Network
	Tray    Tray

	NotificationTimeout int64

	// Doc keeps the raw document for sections read by other packages
	// (sovereignty, build, browser).
	Doc *Document
}

// Default returns the manifest used when a project has no poly.toml.
func Default(dir string) *Manifest {
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "poly-app"
	}
	doc, _ := Parse("")
	return &Manifest{
		Dir:     dir,
		Package: Package{Name: name, Version: "0.1.0"},
		WebDir:  "web",
		Window: Window{
			Title:           name,
			Width:           DefaultWidth,
			Height:          DefaultHeight,
			Decorations:     true,
			Resizable:       true,
			BackgroundColor: DefaultBackgroundColor,
		},
		Network:             Network{Timeout: DefaultTimeout, MaxBodySize: DefaultMaxBodySize, UserAgent: "poly"},
		Tray:                Tray{Tooltip: name, IconSize: 32},
		NotificationTimeout: 5,
		Doc:                 doc,
	}
}

// LoadProject loads dir/poly.toml, falling back to defaults when the file
// does not exist. A .env file next to the manifest is loaded first so that
// ${VAR} references resolve; variables already set win.
func LoadProject(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := loadDotEnv(dir); err != nil {
			return nil, err
		}
		return Default(dir), nil
	}
	return Load(path)
}

func Load(path string) (*Manifest, error) {
	dir := filepath.Dir(path)
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := FromString(string(content), dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func loadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

// FromString builds a manifest from manifest text. Unknown sections and
// keys are ignored.
func FromString(content, dir string) (*Manifest, error) {
	doc, err := Parse(content)
	if err != nil {
		return nil, err
	}

	m := Default(dir)
	m.Doc = doc

	m.Package.Name = doc.String("package", "name", m.Package.Name)
	m.Package.Version = doc.String("package", "version", m.Package.Version)
	m.WebDir = doc.String("web", "dir", m.WebDir)

	var errs []error
	num := func(section, key string, dst *int64) {
		v, err := doc.Int(section, key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	flag := func(section, key string, dst *bool) {
		v, err := doc.Bool(section, key, *dst)
		errs = append(errs, err)
		*dst = v
	}

	w := &m.Window
	w.Title = doc.String("window", "title", m.Package.Name)
	num("window", "width", &w.Width)
	num("window", "height", &w.Height)
	num("window", "min_width", &w.MinWidth)
	num("window", "min_height", &w.MinHeight)
	num("window", "max_width", &w.MaxWidth)
	num("window", "max_height", &w.MaxHeight)
	flag("window", "decorations", &w.Decorations)
	flag("window", "resizable", &w.Resizable)
	flag("window", "transparent", &w.Transparent)
	flag("window", "always_on_top", &w.AlwaysOnTop)
	flag("window", "fullscreen", &w.Fullscreen)
	w.IconPath = doc.String("window", "icon_path", "")
	w.BackgroundColor = doc.String("window", "background_color", w.BackgroundColor)
	if _, err := ParseColor(w.BackgroundColor); err != nil {
		errs = append(errs, fmt.Errorf("window.background_color: %w", err))
	}

	num("dev", "port", &m.Dev.Port)
	flag("dev", "inject_alpine", &m.Dev.InjectAlpine)
	flag("dev", "inject_lucide", &m.Dev.InjectLucide)
	num("dev", "reload_interval", &m.Dev.ReloadInterval)
	flag("dev", "devtools", &m.Dev.Devtools)

	num("network", "timeout", &m.Network.Timeout)
	num("network", "max_body_size", &m.Network.MaxBodySize)
	m.Network.UserAgent = doc.String("network", "user_agent", m.Network.UserAgent)

	flag("tray", "enabled", &m.Tray.Enabled)
	flag("tray", "minimize_to_tray", &m.Tray.MinimizeToTray)
	flag("tray", "close_to_tray", &m.Tray.CloseToTray)
	m.Tray.Tooltip = doc.String("tray", "tooltip", m.Package.Name)
	m.Tray.IconPath = doc.String("tray", "icon_path", "")
	num("tray", "icon_size", &m.Tray.IconSize)

	num("app", "notification_timeout", &m.NotificationTimeout)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// EntryPoint returns the first existing script among EntryCandidates.
func (m *Manifest) EntryPoint() (string, error) {
	for _, candidate := range EntryCandidates {
		path := filepath.Join(m.Dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no entry script in %s (tried %s)", m.Dir, strings.Join(EntryCandidates, ", "))
}

// WebRoot is the absolute directory static assets are served from.
func (m *Manifest) WebRoot() string {
	if filepath.IsAbs(m.WebDir) {
		return m.WebDir
	}
	return filepath.Join(m.Dir, m.WebDir)
}

type RGBA struct {
	R, G, B, A uint8
}

// ParseColor parses `#RRGGBB` or `#RRGGBBAA`.
func ParseColor(s string) (RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if hex == s || (len(hex) != 6 && len(hex) != 8) {
		return RGBA{}, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid color %q", s)
	}

	if len(hex) == 6 {
		return RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
