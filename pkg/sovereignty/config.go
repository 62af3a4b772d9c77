package sovereignty

import (
	"fmt"
	"os"
	"strings"

	"poly/pkg/config"
)

const section = "sovereignty"

// Config is the permission contract declared in the manifest.
type Config struct {
	Enabled       bool
	Permissions   []Permission
	HTTPAllowlist []string
	HTTPBlocklist []string
	FSAllowlist   []PathScope
	AuditLog      bool
	AppName       string
}

// Development returns the configuration used when no manifest is given:
// every check passes.
func Development() *Config {
	return &Config{AppName: "dev"}
}

// FromDocument reads the [sovereignty] section. A missing section yields
// a disabled config. Unknown permission strings are reported together
// and the rest of the section is still applied.
func FromDocument(doc *config.Document, appName string) (*Config, error) {
	cfg := &Config{AppName: appName}
	if !doc.Has(section) {
		return cfg, nil
	}

	var err error
	if cfg.Enabled, err = doc.Bool(section, "enabled", false); err != nil {
		return nil, err
	}
	if cfg.AuditLog, err = doc.Bool(section, "audit_log", false); err != nil {
		return nil, err
	}

	var unknown []string
	for _, s := range doc.List(section, "permissions") {
		p, perr := ParsePermission(s)
		if perr != nil {
			unknown = append(unknown, s)
			continue
		}
		cfg.Permissions = append(cfg.Permissions, p)
	}
	for _, d := range doc.List(section, "http_allowlist") {
		cfg.HTTPAllowlist = append(cfg.HTTPAllowlist, asciiHost(d))
	}
	for _, d := range doc.List(section, "http_blocklist") {
		cfg.HTTPBlocklist = append(cfg.HTTPBlocklist, asciiHost(d))
	}
	for _, p := range doc.List(section, "fs_allowlist") {
		cfg.FSAllowlist = append(cfg.FSAllowlist, ParsePathScope(p))
	}

	if len(unknown) > 0 {
		return cfg, fmt.Errorf("unknown permissions: %s", strings.Join(unknown, ", "))
	}
	return cfg, nil
}

// ParseManifest parses manifest text and extracts its permission config.
func ParseManifest(content, appName string) (*Config, error) {
	doc, err := config.Parse(content)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, appName)
}

// LoadManifest reads a manifest file. An empty path selects development
// mode.
func LoadManifest(path, appName string) (*Config, error) {
	if path == "" {
		return Development(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(string(content), appName)
}

// Granted returns the canonical strings of every granted permission.
func (c *Config) Granted() []string {
	out := make([]string, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		out = append(out, p.String())
	}
	return out
}

func (c *Config) has(p Permission) bool {
	for _, granted := range c.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

func (c *Config) allowlisted(domain string) bool {
	for _, a := range c.HTTPAllowlist {
		if a == domain {
			return true
		}
	}
	return false
}
