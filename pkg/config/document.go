package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Document is a parsed manifest: named sections holding `key = value`
// entries. Values are kept as text and converted on access so unknown
// keys cost nothing.
type Document struct {
	sections map[string]map[string]entry
	order    []string
}

type entry struct {
	raw    string
	list   []string
	isList bool
	line   int
}

// Parse reads the TOML-shaped manifest grammar: `[section]` headers,
// `key = value` pairs with quoted or bare values, `#` comments and string
// arrays which may span several lines. Keys before the first header land
// in the "" section.
func Parse(content string) (*Document, error) {
	doc := &Document{sections: map[string]map[string]entry{}}
	section := ""
	doc.section(section)

	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimSpace(stripComment(lines[i]))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") && !strings.Contains(line, "=") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			doc.section(section)
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			return nil, fmt.Errorf("line %d: missing key", lineNo)
		}

		if strings.HasPrefix(value, "[") {
			body := value[1:]
			for !strings.Contains(body, "]") {
				i++
				if i >= len(lines) {
					return nil, fmt.Errorf("line %d: unterminated array for key %q", lineNo, key)
				}
				body += "\n" + strings.TrimSpace(stripComment(lines[i]))
			}
			body = body[:strings.LastIndexByte(body, ']')]
			doc.sections[section][key] = entry{list: splitArray(body), isList: true, line: lineNo}
			continue
		}

		doc.sections[section][key] = entry{raw: unquote(value), line: lineNo}
	}

	return doc, nil
}

func (d *Document) section(name string) {
	if _, ok := d.sections[name]; !ok {
		d.sections[name] = map[string]entry{}
		d.order = append(d.order, name)
	}
}

// Sections returns section names in the order they first appeared.
func (d *Document) Sections() []string {
	return append([]string(nil), d.order...)
}

func (d *Document) Has(section string) bool {
	_, ok := d.sections[section]
	return ok
}

// Lookup returns the scalar value of section.key with ${VAR} references
// expanded from the environment.
func (d *Document) Lookup(section, key string) (string, bool) {
	e, ok := d.sections[section][key]
	if !ok || e.isList {
		return "", false
	}
	return expand(e.raw), true
}

func (d *Document) String(section, key, def string) string {
	if v, ok := d.Lookup(section, key); ok {
		return v
	}
	return def
}

func (d *Document) Int(section, key string, def int64) (int64, error) {
	v, ok := d.Lookup(section, key)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(v, "_", ""), 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s.%s: %q is not an integer", section, key, v)
	}
	return n, nil
}

func (d *Document) Bool(section, key string, def bool) (bool, error) {
	v, ok := d.Lookup(section, key)
	if !ok {
		return def, nil
	}
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return def, fmt.Errorf("%s.%s: %q is not a boolean", section, key, v)
}

// List returns the items of an array value. A scalar value is treated as a
// one element list.
func (d *Document) List(section, key string) []string {
	e, ok := d.sections[section][key]
	if !ok {
		return nil
	}
	if !e.isList {
		return []string{expand(e.raw)}
	}
	out := make([]string, len(e.list))
	for i, item := range e.list {
		out[i] = expand(item)
	}
	return out
}

// expand replaces ${VAR} references. Bare $names are left alone since
// permission scopes use them.
func expand(s string) string {
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		out.WriteString(s[:start])
		out.WriteString(os.Getenv(s[start+2 : start+end]))
		s = s[start+end+1:]
	}
	out.WriteString(s)
	return out.String()
}

func splitArray(body string) []string {
	var items []string
	for _, part := range strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = unquote(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// stripComment drops a trailing `#` comment that is not inside quotes, so
// colors must be quoted.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}
