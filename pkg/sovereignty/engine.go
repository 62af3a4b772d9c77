package sovereignty

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// DeniedError is returned by every failed check.
type DeniedError struct {
	Permission Permission
}

func (e *DeniedError) Error() string {
	return "Permission denied: " + e.Permission.String()
}

// IsDenied reports whether err carries a permission denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// Engine answers allow/deny queries against a Config. It is safe for
// concurrent use; a nil *Engine allows everything.
type Engine struct {
	mu    sync.RWMutex
	cfg   *Config
	roots map[ScopeKind]string
	audit zerolog.Logger
	now   func() time.Time
}

type Option func(*Engine)

// WithAudit sets the logger receiving audit lines.
func WithAudit(logger zerolog.Logger) Option {
	return func(e *Engine) { e.audit = logger }
}

// WithRoots overrides the directories PathScope roots resolve to.
func WithRoots(roots map[ScopeKind]string) Option {
	return func(e *Engine) {
		for k, v := range roots {
			e.roots[k] = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(cfg *Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = Development()
	}
	e := &Engine{
		cfg:   cfg,
		roots: DefaultRoots(cfg.AppName),
		audit: zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load swaps the active configuration.
func (e *Engine) Load(cfg *Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return *Development()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.cfg
}

func (e *Engine) Enabled() bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Enabled
}

// Check grants or denies p. Granted checks are audited when the config
// asks for it.
func (e *Engine) Check(p Permission) error {
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.cfg.Enabled {
		return nil
	}
	if e.granted(p) {
		e.record(p)
		return nil
	}
	return &DeniedError{Permission: p}
}

// CheckPath checks a filesystem operation on a concrete path. The path is
// accepted when either its enclosing root scope or the path itself is
// granted.
func (e *Engine) CheckPath(kind Kind, path string) error {
	if e == nil {
		return nil
	}
	scope := e.ScopeOf(path)
	requested := Permission{Kind: kind, Path: scope}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enabled {
		return nil
	}

	if e.granted(requested) {
		e.record(requested)
		return nil
	}
	if scope.Kind != CustomPath {
		exact := Permission{Kind: kind, Path: PathScope{Kind: CustomPath, Path: cleanPath(path)}}
		if e.granted(exact) {
			e.record(exact)
			return nil
		}
	}
	return &DeniedError{Permission: requested}
}

// CheckURL checks an outbound HTTP request to rawURL.
func (e *Engine) CheckURL(rawURL string) error {
	return e.Check(HTTP(DomainOf(rawURL)))
}

// DomainOf extracts the host part of a URL as a DomainScope.
func DomainOf(rawURL string) DomainScope {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	host := ""
	if u, err := url.Parse(s); err == nil {
		host = u.Hostname()
	}
	if host == "" {
		host = strings.SplitN(strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://"), "/", 2)[0]
		host = strings.SplitN(host, ":", 2)[0]
	}
	return ParseDomainScope(host)
}

// asciiHost converts an internationalized host name to its punycode form
// so that allowlist entries match either spelling.
func asciiHost(host string) string {
	host = strings.ToLower(host)
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return host
}

func (e *Engine) granted(p Permission) bool {
	cfg := e.cfg
	switch p.Kind {
	case OsInfo, Dialogs:
		return true
	case ClipboardRead:
		return cfg.has(Simple(ClipboardRead)) || cfg.has(Simple(ClipboardWrite))
	case FsRead:
		return e.fsGranted(p.Path, false)
	case FsWrite:
		return e.fsGranted(p.Path, true)
	case HttpConnect:
		return httpGranted(cfg, p.Domain)
	}
	return cfg.has(p)
}

func (e *Engine) fsGranted(scope PathScope, write bool) bool {
	for _, allowed := range e.cfg.FSAllowlist {
		if e.scopeMatches(allowed, scope) {
			return true
		}
	}
	for _, perm := range e.cfg.Permissions {
		switch perm.Kind {
		case FsRead:
			if !write && e.scopeMatches(perm.Path, scope) {
				return true
			}
		case FsWrite:
			if e.scopeMatches(perm.Path, scope) {
				return true
			}
		}
	}
	return false
}

func httpGranted(cfg *Config, d DomainScope) bool {
	if d.Kind == ExactDomain {
		for _, blocked := range cfg.HTTPBlocklist {
			if blocked != "" && (strings.Contains(d.Domain, blocked) || strings.Contains(blocked, d.Domain)) {
				return false
			}
		}
	}

	switch d.Kind {
	case AnyDomain:
		return cfg.has(HTTP(DomainScope{Kind: AnyDomain}))
	case Localhost:
		return cfg.allowlisted("localhost") || cfg.allowlisted("127.0.0.1") ||
			cfg.has(HTTP(DomainScope{Kind: Localhost})) || cfg.has(HTTP(DomainScope{Kind: AnyDomain}))
	}

	if cfg.allowlisted("*") {
		return true
	}
	for _, allowed := range cfg.HTTPAllowlist {
		if domainMatches(allowed, d.Domain) {
			return true
		}
	}
	for _, perm := range cfg.Permissions {
		if perm.Kind != HttpConnect {
			continue
		}
		switch perm.Domain.Kind {
		case AnyDomain:
			return true
		case ExactDomain:
			if domainMatches(perm.Domain.Domain, d.Domain) {
				return true
			}
		}
	}
	return false
}

// domainMatches accepts the domain itself and any of its subdomains.
func domainMatches(allowed, domain string) bool {
	return domain == allowed || strings.HasSuffix(domain, "."+allowed)
}

func (e *Engine) record(p Permission) {
	if !e.cfg.AuditLog {
		return
	}
	e.audit.Info().Msgf("[AUDIT] %s @ %d: %s", e.cfg.AppName, e.now().Unix(), p)
}
