package sovereignty

import (
	"fmt"
	"strings"
)

// Kind enumerates the capabilities a manifest can grant.
type Kind uint8

const (
	ClipboardRead Kind = iota + 1
	ClipboardWrite
	FsRead
	FsWrite
	HttpConnect
	Notifications
	ShellOpen
	ShellOpenPath
	ShellExecute
	Database
	WindowCreate
	WindowControl
	DeepLinks
	SystemTray
	AppExit
	AppRelaunch
	OsInfo
	Dialogs
)

var kindNames = map[Kind]string{
	ClipboardRead:  "clipboard:read",
	ClipboardWrite: "clipboard:write",
	FsRead:         "fs:read",
	FsWrite:        "fs:write",
	HttpConnect:    "http",
	Notifications:  "notifications",
	ShellOpen:      "shell:open",
	ShellOpenPath:  "shell:open_path",
	ShellExecute:   "shell:execute",
	Database:       "database",
	WindowCreate:   "window:create",
	WindowControl:  "window:control",
	DeepLinks:      "deeplinks",
	SystemTray:     "system_tray",
	AppExit:        "app:exit",
	AppRelaunch:    "app:relaunch",
	OsInfo:         "os:info",
	Dialogs:        "dialogs",
}

// bareNames maps every accepted unscoped spelling to its kind.
var bareNames = map[string]Kind{
	"clipboard":       ClipboardRead,
	"clipboard:read":  ClipboardRead,
	"clipboard:write": ClipboardWrite,
	"notifications":   Notifications,
	"shell":           ShellOpen,
	"shell:open":      ShellOpen,
	"shell:open_path": ShellOpenPath,
	"shell:execute":   ShellExecute,
	"database":        Database,
	"db":              Database,
	"sqlite":          Database,
	"window":          WindowCreate,
	"window:create":   WindowCreate,
	"window:control":  WindowControl,
	"deeplinks":       DeepLinks,
	"deep_links":      DeepLinks,
	"tray":            SystemTray,
	"system_tray":     SystemTray,
	"app:exit":        AppExit,
	"app:relaunch":    AppRelaunch,
	"os:info":         OsInfo,
	"dialogs":         Dialogs,
}

type ScopeKind uint8

const (
	AnyPath ScopeKind = iota
	AppData
	Documents
	Downloads
	Desktop
	Pictures
	Music
	Videos
	Temp
	CustomPath
)

var scopeNames = map[ScopeKind]string{
	AnyPath:   "*",
	AppData:   "$appdata",
	Documents: "$documents",
	Downloads: "$downloads",
	Desktop:   "$desktop",
	Pictures:  "$pictures",
	Music:     "$music",
	Videos:    "$videos",
	Temp:      "$temp",
}

var scopeAliases = map[string]ScopeKind{
	"*":          AnyPath,
	"any":        AnyPath,
	"appdata":    AppData,
	"$appdata":   AppData,
	"app_data":   AppData,
	"documents":  Documents,
	"$documents": Documents,
	"downloads":  Downloads,
	"$downloads": Downloads,
	"desktop":    Desktop,
	"$desktop":   Desktop,
	"pictures":   Pictures,
	"$pictures":  Pictures,
	"music":      Music,
	"$music":     Music,
	"videos":     Videos,
	"$videos":    Videos,
	"temp":       Temp,
	"$temp":      Temp,
}

// PathScope is a filesystem root. Path is only set for CustomPath.
type PathScope struct {
	Kind ScopeKind
	Path string
}

func ParsePathScope(s string) PathScope {
	s = strings.TrimSpace(s)
	if kind, ok := scopeAliases[strings.ToLower(s)]; ok {
		return PathScope{Kind: kind}
	}
	return PathScope{Kind: CustomPath, Path: s}
}

func (s PathScope) String() string {
	if s.Kind == CustomPath {
		return s.Path
	}
	return scopeNames[s.Kind]
}

type DomainKind uint8

const (
	AnyDomain DomainKind = iota
	Localhost
	ExactDomain
)

// DomainScope is an HTTP target. Domain is only set for ExactDomain and is
// always lower case ASCII; internationalized names are stored as punycode.
type DomainScope struct {
	Kind   DomainKind
	Domain string
}

func ParseDomainScope(s string) DomainScope {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "*", "any":
		return DomainScope{Kind: AnyDomain}
	case "localhost", "127.0.0.1":
		return DomainScope{Kind: Localhost}
	}
	return DomainScope{Kind: ExactDomain, Domain: asciiHost(s)}
}

func (d DomainScope) String() string {
	switch d.Kind {
	case AnyDomain:
		return "*"
	case Localhost:
		return "localhost"
	}
	return d.Domain
}

// Permission is one capability, optionally parameterized by a path or
// domain scope.
type Permission struct {
	Kind   Kind
	Path   PathScope
	Domain DomainScope
}

// String renders the canonical form used in denials and audit lines.
func (p Permission) String() string {
	switch p.Kind {
	case FsRead, FsWrite:
		return kindNames[p.Kind] + ":" + p.Path.String()
	case HttpConnect:
		return "http:" + p.Domain.String()
	}
	if name, ok := kindNames[p.Kind]; ok {
		return name
	}
	return fmt.Sprintf("permission(%d)", p.Kind)
}

func Simple(k Kind) Permission { return Permission{Kind: k} }

func Read(scope PathScope) Permission  { return Permission{Kind: FsRead, Path: scope} }
func Write(scope PathScope) Permission { return Permission{Kind: FsWrite, Path: scope} }

func HTTP(domain DomainScope) Permission { return Permission{Kind: HttpConnect, Domain: domain} }

// ParsePermission parses a manifest permission string: a bare name
// (`notifications`), a qualified name (`clipboard:write`), a filesystem
// grant (`fs:write:$documents`, `fs:$temp`) or an HTTP grant
// (`http:example.com`).
func ParsePermission(s string) (Permission, error) {
	raw := strings.TrimSpace(s)
	lower := strings.ToLower(raw)

	if kind, ok := bareNames[lower]; ok {
		return Simple(kind), nil
	}

	for _, prefix := range []string{"fs:", "filesystem:"} {
		if rest, ok := cutPrefixFold(raw, prefix); ok {
			return parseFsPermission(rest, s)
		}
	}
	for _, prefix := range []string{"http:", "network:"} {
		if rest, ok := cutPrefixFold(raw, prefix); ok {
			return HTTP(ParseDomainScope(rest)), nil
		}
	}

	return Permission{}, fmt.Errorf("unknown permission %q", s)
}

func parseFsPermission(rest, orig string) (Permission, error) {
	access, scope := "read", rest
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		switch strings.ToLower(rest[:i]) {
		case "read", "write", "readwrite", "rw":
			access, scope = strings.ToLower(rest[:i]), rest[i+1:]
		}
	}
	if strings.TrimSpace(scope) == "" {
		return Permission{}, fmt.Errorf("missing path scope in %q", orig)
	}

	ps := ParsePathScope(scope)
	if access == "read" {
		return Read(ps), nil
	}
	return Write(ps), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
