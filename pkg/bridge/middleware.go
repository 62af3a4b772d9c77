package bridge

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"poly/pkg/eval"
)

const tokenTTL = 24 * time.Hour

// withRequestID tags every request with a ULID, echoed in X-Request-Id and
// attached to the request's logger.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)
		l := s.log.With().Str("req", id).Logger()
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		l.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRecover turns a handler panic into a JSON error so it never crosses
// the bridge.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zerolog.Ctx(r.Context()).Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Token issues a bearer token for /__poly_invoke. It is empty when the
// server runs without a token secret.
func (s *Server) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", nil
	}
	return eval.SignToken(map[string]interface{}{"sub": "webview"}, string(s.secret), tokenTTL)
}

func (s *Server) authorized(r *http.Request) bool {
	if len(s.secret) == 0 {
		return true
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	_, err := eval.VerifyToken(strings.TrimSpace(raw), string(s.secret))
	return err == nil
}

type envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: msg})
}

func writeResult(w http.ResponseWriter, result json.RawMessage) {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, envelope{Result: result})
}
