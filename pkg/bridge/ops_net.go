package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"poly/pkg/mailer"
	"poly/pkg/sovereignty"
	"poly/pkg/stream"
)

type httpResponse struct {
	Status  int               `json:"status"`
	Body    any               `json:"body"`
	Headers map[string]string `json:"headers"`
}

func registerNetOps() {
	register("http_get", needsURL("url"), func(s *Server, ctx context.Context, a Args) (any, error) {
		return s.fetch(ctx, http.MethodGet, a.String("url", 0, ""), nil, a)
	})

	register("http_post", needsURL("url"), func(s *Server, ctx context.Context, a Args) (any, error) {
		return s.fetch(ctx, http.MethodPost, a.String("url", 0, ""), bodyArg(a, "body", 1), a)
	})

	register("stream_start", needsURL("url"), func(s *Server, _ context.Context, a Args) (any, error) {
		p := &stream.HTTPLineProducer{
			URL:    a.String("url", 0, ""),
			Body:   bodyArg(a, "body", 1),
			Header: headerArg(a),
			Client: s.streamClient(),
		}
		// The session outlives the request that started it.
		return s.streams.Start(context.Background(), p), nil
	})

	register("stream_poll", nil, func(s *Server, _ context.Context, a Args) (any, error) {
		return s.streams.Poll(a.Int("id", 0, 0)), nil
	})

	register("stream_close", nil, func(s *Server, _ context.Context, a Args) (any, error) {
		return s.streams.Close(a.Int("id", 0, 0)), nil
	})

	register("mail_send", checkMailHost, func(s *Server, _ context.Context, a Args) (any, error) {
		cfg, err := mailer.FromEnv()
		if err != nil {
			return nil, err
		}
		msg := mailer.Message{
			To:      a.Strings("to", 0),
			Subject: a.String("subject", 1, ""),
			Body:    a.String("body", 2, ""),
			HTML:    a.String("html", 3, ""),
			From:    a.String("from", 4, ""),
		}
		if r, ok := a.Get("to", 0); ok && r.Type == gjson.String {
			msg.To = mailer.Recipients(r.Str)
		}
		if err := mailer.Send(cfg, s.mail, msg); err != nil {
			return nil, err
		}
		return true, nil
	})
}

// checkMailHost gates mail on the SMTP host under the http permission.
func checkMailHost(s *Server, _ Args) error {
	cfg, err := mailer.FromEnv()
	if err != nil {
		return err
	}
	return s.perms.Check(sovereignty.HTTP(sovereignty.DomainOf(cfg.Host)))
}

// bodyArg sends strings verbatim and any other JSON value as its encoding.
func bodyArg(a Args, name string, pos int) []byte {
	r, ok := a.Get(name, pos)
	if !ok || r.Type == gjson.Null {
		return nil
	}
	if r.Type == gjson.String {
		return []byte(r.Str)
	}
	return []byte(r.Raw)
}

func headerArg(a Args) http.Header {
	h := http.Header{}
	if r, ok := a.Get("headers", -1); ok && r.IsObject() {
		r.ForEach(func(k, v gjson.Result) bool {
			h.Set(k.Str, v.String())
			return true
		})
	}
	return h
}

func (s *Server) streamClient() *http.Client {
	c := *s.client
	c.Timeout = stream.StreamTimeout
	return &c
}

// fetch performs a host HTTP request. JSON response bodies are returned
// decoded, anything else as text.
func (s *Server) fetch(ctx context.Context, method, url string, body []byte, a Args) (*httpResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	for k, vs := range headerArg(a) {
		req.Header[k] = vs
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		if gjson.ValidBytes(body) {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		}
	}
	if req.Header.Get("User-Agent") == "" && s.manifest.Network.UserAgent != "" {
		req.Header.Set("User-Agent", s.manifest.Network.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()
	limit := s.maxBody()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("HTTP error: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("HTTP error: response exceeds %d bytes", limit)
	}

	out := &httpResponse{Status: resp.StatusCode, Body: string(data), Headers: map[string]string{}}
	for k := range resp.Header {
		out.Headers[k] = resp.Header.Get(k)
	}
	if len(data) > 0 && gjson.ValidBytes(data) {
		out.Body = json.RawMessage(data)
	}
	return out, nil
}
