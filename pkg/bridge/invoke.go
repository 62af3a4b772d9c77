package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"poly/pkg/eval"
)

type invokeRequest struct {
	Fn   json.RawMessage `json:"fn"`
	Args json.RawMessage `json:"args"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request: "+err.Error())
		return
	}

	var req invokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	fn := gjson.ParseBytes(req.Fn)
	if fn.Type != gjson.String || fn.Str == "" {
		writeError(w, http.StatusBadRequest, "Missing 'fn' field")
		return
	}

	log := zerolog.Ctx(r.Context())
	args := parseArgs(req.Args)
	if name, ok := strings.CutPrefix(fn.Str, SystemPrefix); ok {
		result, err := s.invokeHost(r.Context(), name, args)
		if err != nil {
			log.Debug().Err(err).Str("op", name).Msg("host op failed")
			writeError(w, http.StatusOK, err.Error())
			return
		}
		data, err := json.Marshal(result)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode result: "+err.Error())
			return
		}
		writeResult(w, data)
		return
	}

	data, err := s.callScript(fn.Str, args)
	if err != nil {
		log.Debug().Err(err).Str("fn", fn.Str).Msg("script call failed")
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeResult(w, data)
}

// callScript runs a script function on the interpreter current at call
// time. Calls are serialized; a reload during the call does not affect it.
func (s *Server) callScript(name string, args Args) (json.RawMessage, error) {
	in := s.Interpreter()
	if in == nil {
		return nil, errNoBackend
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := in.Call(name, args.Positional()...)
	if err != nil {
		return nil, err
	}
	return eval.ToJSON(result)
}

func (s *Server) invokeHost(ctx context.Context, name string, args Args) (any, error) {
	op, ok := hostOps[name]
	if !ok {
		return nil, unknownOp(name)
	}
	if op.check != nil {
		if err := op.check(s, args); err != nil {
			return nil, err
		}
	}
	return op.run(s, ctx, args)
}

func unknownOp(name string) error {
	msg := "Unknown system API: " + SystemPrefix + name
	names := make([]string, 0, len(hostOps))
	for n := range hostOps {
		names = append(names, n)
	}
	matches := fuzzy.RankFindFold(name, names)
	if len(matches) == 0 {
		for _, n := range names {
			if fuzzy.LevenshteinDistance(name, n) <= 3 {
				matches = append(matches, fuzzy.Rank{Target: n, Distance: fuzzy.LevenshteinDistance(name, n)})
			}
		}
	}
	if len(matches) > 0 {
		sort.Sort(matches)
		msg += " (did you mean '" + SystemPrefix + matches[0].Target + "'?)"
	}
	return errors.New(msg)
}

// handleReload reports the reload counter the injected client polls.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"version": s.Version()})
}

type runResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleRun executes the entry script in a throwaway interpreter and
// returns what it printed.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.entry == "" {
		writeJSON(w, http.StatusOK, runResponse{Error: errNoBackend.Error()})
		return
	}
	source, err := os.ReadFile(s.entry)
	if err != nil {
		writeJSON(w, http.StatusOK, runResponse{Error: "Failed to read: " + err.Error()})
		return
	}
	in := s.NewInterpreter()
	if _, err := in.RunSource(string(source)); err != nil {
		writeJSON(w, http.StatusOK, runResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Success: true, Output: strings.Join(in.Output(), "\n")})
}
