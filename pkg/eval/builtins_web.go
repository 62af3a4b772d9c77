package eval

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

var selfClosingTags = map[string]bool{
	"img": true, "br": true, "hr": true, "input": true, "meta": true, "link": true,
}

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    %s
</head>
<body>
%s
%s
</body>
</html>`

const routerTemplate = `%s
const notFoundComponent = ` + "`%s`" + `;

class Router {
  constructor() {
    this.currentPath = window.location.hash.slice(1) || '/';
    window.addEventListener('hashchange', () => this.navigate());
    window.addEventListener('load', () => this.navigate());
  }

  navigate(path) {
    if (path) { window.location.hash = path; return; }
    this.currentPath = window.location.hash.slice(1) || '/';
    const app = document.getElementById('app');
    app.innerHTML = routes[this.currentPath] || notFoundComponent;
    window.dispatchEvent(new CustomEvent('routechange', { detail: { path: this.currentPath } }));
  }
}

const router = new Router();
function navigate(path) { router.navigate(path); }
`

const storeTemplate = `class %[1]sStore {
  constructor() {
    this.state = %[2]s;
    this._subscribers = [];
  }

  getState() { return this.state; }

  subscribe(callback) {
    this._subscribers.push(callback);
    return () => { this._subscribers = this._subscribers.filter(cb => cb !== callback); };
  }

  _notify() {
    this._subscribers.forEach(cb => cb(this.state));
  }

%[3]s}

const %[4]sStore = new %[1]sStore();
`

const liveReloadTemplate = `(function() {
  const ws = new WebSocket('ws://localhost:%d/ws');
  ws.onopen = () => console.log('[Poly] Live reload connected');
  ws.onmessage = (event) => {
    const data = JSON.parse(event.data);
    if (data.type === 'reload') {
      console.log('[Poly] Reloading...');
      window.location.reload();
    } else if (data.type === 'css') {
      document.querySelectorAll('link[rel="stylesheet"]').forEach(link => {
        link.href = link.href.split('?')[0] + '?t=' + Date.now();
      });
    }
  };
  ws.onclose = () => setTimeout(() => window.location.reload(), 2000);
})();`

func init() {
	register("html_escape", func(in *Interpreter, args ...Object) Object {
		s, ok := stringArg(args, 0)
		if !ok {
			return newError("html_escape() requires a string")
		}
		return NewString(htmlEscaper.Replace(s))
	})
	register("html_tag", builtinHTMLTag, "tag", "content", "attrs")
	register("html", builtinHTML, "title", "body", "styles", "scripts")
	register("markdown", func(in *Interpreter, args ...Object) Object {
		src, ok := stringArg(args, 0)
		if !ok {
			return newError("markdown() requires a string")
		}
		var buf bytes.Buffer
		if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
			return newError("markdown() failed: %s", err)
		}
		return NewString(buf.String())
	})
	register("router", builtinRouter, "routes", "not_found")
	register("route", func(in *Interpreter, args ...Object) Object {
		path, ok := stringArg(args, 0)
		if !ok {
			return newError("route() requires path as first argument")
		}
		html, ok := stringArg(args, 1)
		if !ok {
			return newError("route() requires component HTML as second argument")
		}
		d := NewDict()
		d.SetString(path, NewString(html))
		return d
	}, "path", "html")
	register("component", builtinComponent, "name", "template", "props")
	register("store", builtinStore, "name", "initial", "actions")
	register("live_reload", func(in *Interpreter, args ...Object) Object {
		port := int64(3001)
		if p, ok := intArg(args, 0); ok {
			port = p
		}
		return NewString(fmt.Sprintf(liveReloadTemplate, port))
	}, "port")
}

func builtinHTMLTag(in *Interpreter, args ...Object) Object {
	tag, ok := stringArg(args, 0)
	if !ok {
		return newError("html_tag() requires tag name as first argument")
	}
	content := ""
	if c, ok := arg(args, 1); ok {
		content = c.Inspect()
	}
	var attrs strings.Builder
	if d, ok := dictArg(args, 2); ok {
		for _, p := range d.Pairs {
			key, ok1 := p.Key.(*String)
			val, ok2 := p.Value.(*String)
			if ok1 && ok2 {
				fmt.Fprintf(&attrs, ` %s="%s"`, key.Value, val.Value)
			}
		}
	}
	if selfClosingTags[tag] {
		return NewString(fmt.Sprintf("<%s%s />", tag, attrs.String()))
	}
	return NewString(fmt.Sprintf("<%s%s>%s</%s>", tag, attrs.String(), content, tag))
}

func builtinHTML(in *Interpreter, args ...Object) Object {
	title := "Poly App"
	if t, ok := stringArg(args, 0); ok {
		title = t
	}
	body := ""
	if b, ok := arg(args, 1); ok {
		body = b.Inspect()
	}
	styles, scripts := "", ""
	if s, ok := stringArg(args, 2); ok && s != "" {
		styles = "<style>\n" + s + "\n</style>"
	}
	if s, ok := stringArg(args, 3); ok && s != "" {
		scripts = "<script>\n" + s + "\n</script>"
	}
	return NewString(fmt.Sprintf(documentTemplate, title, styles, body, scripts))
}

func escapeTemplateLiteral(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "`", "\\`"), "${", "\\${")
}

func builtinRouter(in *Interpreter, args ...Object) Object {
	routes, ok := dictArg(args, 0)
	if !ok {
		return newError("router() requires a dict of routes")
	}
	notFound := "<h1>404 - Not Found</h1>"
	if s, ok := stringArg(args, 1); ok {
		notFound = s
	}
	var js strings.Builder
	js.WriteString("const routes = {\n")
	for _, p := range routes.Pairs {
		path, ok1 := p.Key.(*String)
		html, ok2 := p.Value.(*String)
		if ok1 && ok2 {
			fmt.Fprintf(&js, "  '%s': `%s`,\n", path.Value, escapeTemplateLiteral(html.Value))
		}
	}
	js.WriteString("};\n")
	return NewString(fmt.Sprintf(routerTemplate, js.String(), strings.ReplaceAll(notFound, "`", "\\`")))
}

func builtinComponent(in *Interpreter, args ...Object) Object {
	name, ok := stringArg(args, 0)
	if !ok {
		return newError("component() requires name as first argument")
	}
	template, ok := stringArg(args, 1)
	if !ok {
		return newError("component() requires template as second argument")
	}
	var props []string
	if l, ok := listArg(args, 2); ok {
		for _, item := range l.Elements {
			if s, ok := item.(*String); ok {
				props = append(props, s.Value)
			}
		}
	}
	return NewString(fmt.Sprintf("function %s(%s) {\n  return `%s`;\n}",
		name, strings.Join(props, ", "), strings.ReplaceAll(template, "`", "\\`")))
}

func builtinStore(in *Interpreter, args ...Object) Object {
	name, ok := stringArg(args, 0)
	if !ok {
		return newError("store() requires name as first argument")
	}
	initial := "{}"
	if d, ok := dictArg(args, 1); ok {
		var b strings.Builder
		b.WriteString("{ ")
		for _, p := range d.Pairs {
			if key, ok := p.Key.(*String); ok {
				fmt.Fprintf(&b, "%s: %s, ", key.Value, jsLiteral(p.Value))
			}
		}
		b.WriteString("}")
		initial = b.String()
	}
	var actions strings.Builder
	if d, ok := dictArg(args, 2); ok {
		for _, p := range d.Pairs {
			action, ok1 := p.Key.(*String)
			code, ok2 := p.Value.(*String)
			if ok1 && ok2 {
				fmt.Fprintf(&actions, "  %s(payload) {\n    %s\n    this._notify();\n  }\n\n", action.Value, code.Value)
			}
		}
	}
	return NewString(fmt.Sprintf(storeTemplate, name, initial, actions.String(), strings.ToLower(name)))
}

func jsLiteral(v Object) string {
	switch o := v.(type) {
	case *String:
		return "'" + o.Value + "'"
	case *Integer, *Float, *Boolean:
		return o.Inspect()
	case *List:
		return o.Inspect()
	}
	return "null"
}
