package bridge

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
)

const (
	alpineScript = `<script defer src="https://unpkg.com/alpinejs@3/dist/cdn.min.js"></script>`
	lucideScript = `<script src="https://unpkg.com/lucide@latest/dist/umd/lucide.min.js"></script>`
)

// bridgeScript installs window.poly in served pages. %s is the JSON
// encoded token (possibly empty) and %d the current reload version.
const bridgeScript = `<script data-poly-bridge>
(function() {
  const token = %s;
  async function invoke(fn, args = {}) {
    const headers = { 'Content-Type': 'application/json' };
    if (token) headers['Authorization'] = 'Bearer ' + token;
    const r = await fetch('/__poly_invoke', { method: 'POST', headers, body: JSON.stringify({ fn, args }) });
    const d = await r.json();
    if (d.error) throw new Error(d.error);
    return d.result;
  }
  const sys = (name) => (args = {}) => invoke('__poly_' + name, args);
  window.poly = {
    invoke,
    dialog: {
      open: sys('dialog_open'), openMultiple: sys('dialog_open_multiple'), save: sys('dialog_save'),
      folder: sys('dialog_folder'),
      message: (title, message, level = 'info') => invoke('__poly_dialog_message', { title, message, level }),
      confirm: (title, message) => invoke('__poly_dialog_confirm', { title, message })
    },
    fs: {
      read: (path) => invoke('__poly_fs_read', { path }),
      write: (path, content) => invoke('__poly_fs_write', { path, content }),
      exists: (path) => invoke('__poly_fs_exists', { path }),
      readDir: (path) => invoke('__poly_fs_read_dir', { path })
    },
    clipboard: { read: sys('clipboard_read'), write: (text) => invoke('__poly_clipboard_write', { text }) },
    notify: (title, body) => invoke('__poly_notify', { title, body }),
    db: {
      open: (path) => invoke('__poly_db_open', { path }),
      get: (id, key) => invoke('__poly_db_get', { id, key }),
      put: (id, key, value) => invoke('__poly_db_put', { id, key, value }),
      delete: (id, key) => invoke('__poly_db_delete', { id, key }),
      keys: (id, prefix = '') => invoke('__poly_db_keys', { id, prefix }),
      close: (id) => invoke('__poly_db_close', { id })
    },
    ai: { chat: sys('ai_chat'), stream: sys('ai_stream_start'), models: sys('ai_models') },
    stream: {
      poll: (id) => invoke('__poly_stream_poll', { id }),
      close: (id) => invoke('__poly_stream_close', { id })
    },
    updater: {
      checkGithub: (repo, currentVersion) => invoke('__poly_updater_check_github', { repo, currentVersion }),
      checkUrl: (url, currentVersion) => invoke('__poly_updater_check_url', { url, currentVersion }),
      download: (url) => invoke('__poly_updater_download', { url }),
      install: (path) => invoke('__poly_updater_install', { path })
    },
    os: { info: sys('os_info') }
  };
  if (typeof lucide !== 'undefined') lucide.createIcons();
  let v = %d;
  function poll() {
    fetch('/__poly_reload').then(r => r.json()).then(d => { if (d.version > v) location.reload(); }).catch(() => {});
    setTimeout(poll, 1000);
  }
  try {
    const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/__poly_ws');
    ws.onmessage = (e) => { const d = JSON.parse(e.data); if (d.version > v) location.reload(); };
    ws.onerror = () => poll();
  } catch (e) { poll(); }
})();
</script>`

// handleStatic serves files from the web root, then from the project's
// packages directory. HTML pages get the bridge script injected.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}

	file, ok := s.resolveStatic(rel)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.EqualFold(filepath.Ext(file), ".html") {
		s.serveHTML(w, file)
		return
	}
	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, file, info.ModTime(), f)
}

// resolveStatic maps a cleaned URL path to a regular file under one of
// the static roots. Paths escaping a root are never resolved.
func (s *Server) resolveStatic(rel string) (string, bool) {
	roots := []string{s.manifest.WebRoot(), filepath.Join(s.manifest.Dir, "packages")}
	for _, root := range roots {
		root, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		candidate := filepath.Join(root, filepath.FromSlash(rel))
		if candidate != root && !strings.HasPrefix(candidate, root+string(filepath.Separator)) {
			continue
		}
		if info, err := os.Stat(candidate); err == nil {
			if info.IsDir() {
				candidate = filepath.Join(candidate, "index.html")
				if info, err = os.Stat(candidate); err != nil || info.IsDir() {
					continue
				}
			}
			return candidate, true
		}
	}
	return "", false
}

func (s *Server) serveHTML(w http.ResponseWriter, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	html, err := s.InjectHTML(data)
	if err != nil {
		s.log.Warn().Err(err).Str("file", file).Msg("serving page without bridge script")
		html = data
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(html)
}

// InjectHTML adds the bridge script at the end of body and, when the
// manifest asks for them, the Alpine and Lucide scripts to head.
func (s *Server) InjectHTML(page []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	if s.manifest.Dev.InjectAlpine && doc.Find(`script[src*="alpinejs"]`).Length() == 0 {
		doc.Find("head").AppendHtml(alpineScript)
	}
	if s.manifest.Dev.InjectLucide && doc.Find(`script[src*="lucide"]`).Length() == 0 {
		doc.Find("head").AppendHtml(lucideScript)
	}

	token, err := s.Token()
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	quoted, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}
	doc.Find("body").AppendHtml(fmt.Sprintf(bridgeScript, quoted, s.Version()))

	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(html)), "<!doctype") {
		html = "<!DOCTYPE html>\n" + html
	}
	return []byte(html), nil
}
