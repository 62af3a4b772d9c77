package bridge

import (
	"io"
	"net/http"
	"net/url"
)

// hopHeaders are not copied from the proxied response.
var hopHeaders = map[string]bool{
	"Connection":                  true,
	"Keep-Alive":                  true,
	"Transfer-Encoding":           true,
	"Upgrade":                     true,
	"Access-Control-Allow-Origin": true,
	"Set-Cookie":                  true,
}

// handleProxy fetches ?url= server side so pages can read resources whose
// origin does not send CORS headers. Requests are rate limited and subject
// to the http permission.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many proxy requests")
		return
	}
	target := r.URL.Query().Get("url")
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "Missing or invalid 'url' parameter")
		return
	}
	if err := s.perms.CheckURL(target); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.manifest.Network.UserAgent != "" {
		req.Header.Set("User-Agent", s.manifest.Network.UserAgent)
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Proxy error: "+err.Error())
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, io.LimitReader(resp.Body, s.maxBody()))
}
