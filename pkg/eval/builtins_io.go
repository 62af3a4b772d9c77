package eval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"poly/pkg/sovereignty"
	"poly/pkg/stream"
)

const (
	httpGetTimeout  = 30 * time.Second
	httpPostTimeout = 300 * time.Second
)

func init() {
	register("read_file", builtinReadFile)
	register("write_file", builtinWriteFile)
	register("file_exists", func(in *Interpreter, args ...Object) Object {
		path, ok := stringArg(args, 0)
		if !ok {
			return newError("file_exists() requires a path")
		}
		if err := in.checkPath(sovereignty.FsRead, path); err != nil {
			return err
		}
		_, statErr := os.Stat(in.resolvePath(path))
		return nativeBoolToBooleanObject(statErr == nil)
	})
	register("open", builtinOpen, "path", "mode", "content")

	register("http_get", builtinHTTPGet)
	register("http_post", builtinHTTPPost, "url", "body", "content_type")
	register("http_post_json", builtinHTTPPostJSON, "url", "data")

	register("http_stream_start", builtinStreamStart, "url", "body")
	register("http_stream_poll", func(in *Interpreter, args ...Object) Object {
		id, ok := intArg(args, 0)
		if !ok {
			return newError("http_stream_poll() requires a session id")
		}
		p := in.streams.Poll(id)
		result := NewDict()
		result.SetString("chunks", stringList(p.Chunks...))
		result.SetString("done", nativeBoolToBooleanObject(p.Done))
		if p.Error != "" {
			result.SetString("error", NewString(p.Error))
		} else {
			result.SetString("error", NULL)
		}
		return result
	})
	register("http_stream_close", func(in *Interpreter, args ...Object) Object {
		id, ok := intArg(args, 0)
		if !ok {
			return newError("http_stream_close() requires a session id")
		}
		return nativeBoolToBooleanObject(in.streams.Close(id))
	})
}

// checkPath gates a filesystem operation on the permission engine.
func (in *Interpreter) checkPath(kind sovereignty.Kind, path string) *ErrorObj {
	if err := in.perms.CheckPath(kind, in.resolvePath(path)); err != nil {
		return newError("%s", err)
	}
	return nil
}

func (in *Interpreter) checkURL(url string) *ErrorObj {
	if err := in.perms.CheckURL(url); err != nil {
		return newError("%s", err)
	}
	return nil
}

func (in *Interpreter) check(p sovereignty.Permission) *ErrorObj {
	if err := in.perms.Check(p); err != nil {
		return newError("%s", err)
	}
	return nil
}

// resolvePath expands scope variables such as $documents and makes a
// relative path relative to the script directory.
func (in *Interpreter) resolvePath(path string) string {
	if in.perms != nil {
		path = in.perms.ExpandScope(path)
	}
	if !filepath.IsAbs(path) && in.baseDir != "" {
		path = filepath.Join(in.baseDir, path)
	}
	return path
}

func builtinReadFile(in *Interpreter, args ...Object) Object {
	path, ok := stringArg(args, 0)
	if !ok {
		return newError("read_file() requires a path")
	}
	if err := in.checkPath(sovereignty.FsRead, path); err != nil {
		return err
	}
	data, err := os.ReadFile(in.resolvePath(path))
	if err != nil {
		return newError("Failed to read file: %s", err)
	}
	return NewString(string(data))
}

func builtinWriteFile(in *Interpreter, args ...Object) Object {
	path, ok1 := stringArg(args, 0)
	if !ok1 || len(args) < 2 {
		return newError("write_file() requires a path and content")
	}
	content := args[1].Inspect()
	if err := in.checkPath(sovereignty.FsWrite, path); err != nil {
		return err
	}
	if err := os.WriteFile(in.resolvePath(path), []byte(content), 0o644); err != nil {
		return newError("Failed to write file: %s", err)
	}
	return TRUE
}

// builtinOpen reads a file in mode "r" and writes or appends content in
// modes "w" and "a".
func builtinOpen(in *Interpreter, args ...Object) Object {
	path, ok := stringArg(args, 0)
	if !ok {
		return newError("open() requires a path")
	}
	mode := "r"
	if m, ok := arg(args, 1); ok {
		mode = m.Inspect()
	}
	switch strings.TrimSuffix(mode, "b") {
	case "r":
		return builtinReadFile(in, args[0])
	case "w":
		content, _ := arg(args, 2)
		if content == nil {
			content = NewString("")
		}
		return builtinWriteFile(in, args[0], content)
	case "a":
		if err := in.checkPath(sovereignty.FsWrite, path); err != nil {
			return err
		}
		content := ""
		if c, ok := arg(args, 2); ok {
			content = c.Inspect()
		}
		f, err := os.OpenFile(in.resolvePath(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return newError("Failed to write file: %s", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return newError("Failed to write file: %s", err)
		}
		return TRUE
	}
	return newError("open() invalid mode '%s'", mode)
}

type httpResult struct {
	status int
	body   string
}

func (in *Interpreter) doHTTP(method, url string, body []byte, contentType string, timeout time.Duration) (httpResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return httpResult{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return httpResult{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResult{}, fmt.Errorf("read body: %w", err)
	}
	in.log.Debug().Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("http")
	return httpResult{status: resp.StatusCode, body: string(data)}, nil
}

func responseDict(status int, body Object) *Dict {
	d := NewDict()
	d.SetString("status", NewInteger(int64(status)))
	d.SetString("body", body)
	return d
}

func builtinHTTPGet(in *Interpreter, args ...Object) Object {
	url, ok := stringArg(args, 0)
	if !ok {
		return newError("http_get() requires a URL")
	}
	if err := in.checkURL(url); err != nil {
		return err
	}
	res, err := in.doHTTP(http.MethodGet, url, nil, "", httpGetTimeout)
	if err != nil {
		return newError("HTTP request failed: %s", err)
	}
	return responseDict(res.status, NewString(res.body))
}

func builtinHTTPPost(in *Interpreter, args ...Object) Object {
	url, ok := stringArg(args, 0)
	if !ok {
		return newError("http_post() requires a URL")
	}
	body := ""
	if b, ok := arg(args, 1); ok {
		body = b.Inspect()
	}
	ctype := "application/json"
	if c, ok := arg(args, 2); ok {
		ctype = c.Inspect()
	}
	if err := in.checkURL(url); err != nil {
		return err
	}
	res, err := in.doHTTP(http.MethodPost, url, []byte(body), ctype, httpPostTimeout)
	if err != nil {
		return newError("HTTP request failed: %s", err)
	}
	return responseDict(res.status, NewString(res.body))
}

// builtinHTTPPostJSON encodes data as the request body and decodes a JSON
// response body, leaving any other body as a string.
func builtinHTTPPostJSON(in *Interpreter, args ...Object) Object {
	url, ok := stringArg(args, 0)
	if !ok {
		return newError("http_post_json() requires a URL")
	}
	var data Object = NULL
	if d, ok := arg(args, 1); ok {
		data = d
	}
	payload, err := ToJSON(data)
	if err != nil {
		return newError("JSON stringify error: %s", err)
	}
	if err := in.checkURL(url); err != nil {
		return err
	}
	res, err := in.doHTTP(http.MethodPost, url, payload, "application/json", httpPostTimeout)
	if err != nil {
		return newError("HTTP request failed: %s", err)
	}
	var body Object = NewString(res.body)
	if gjson.Valid(res.body) {
		if decoded, err := FromJSON([]byte(res.body)); err == nil {
			body = decoded
		}
	}
	return responseDict(res.status, body)
}

func builtinStreamStart(in *Interpreter, args ...Object) Object {
	url, ok := stringArg(args, 0)
	if !ok {
		return newError("http_stream_start() requires a URL")
	}
	var body []byte
	if b, ok := arg(args, 1); ok {
		if s, isString := b.(*String); isString {
			body = []byte(s.Value)
		} else {
			encoded, err := ToJSON(b)
			if err != nil {
				return newError("JSON stringify error: %s", err)
			}
			body = encoded
		}
	}
	if err := in.checkURL(url); err != nil {
		return err
	}
	id := in.streams.Start(context.Background(), &stream.HTTPLineProducer{URL: url, Body: body, Client: in.streamClient()})
	return NewInteger(id)
}

// streamClient reuses the interpreter's transport with the long streaming
// timeout.
func (in *Interpreter) streamClient() *http.Client {
	c := *in.client
	c.Timeout = stream.StreamTimeout
	return &c
}
