package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StreamTimeout bounds a whole streaming request.
const StreamTimeout = 300 * time.Second

const maxLineSize = 16 << 20

// HTTPLineProducer POSTs a JSON body and emits every non-empty line of the
// response, which is expected to be newline-delimited JSON.
type HTTPLineProducer struct {
	URL    string
	Body   []byte
	Header http.Header
	Client *http.Client
}

func (p *HTTPLineProducer) Produce(ctx context.Context, emit func(string) bool) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: StreamTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("Client error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("Request error: %w", err)
	}
	defer resp.Body.Close()

	return EmitLines(ctx, resp.Body, emit)
}

// EmitLines pushes each non-empty line of r. It stops without error when
// emit reports the session is gone or ctx is cancelled.
func EmitLines(ctx context.Context, r io.Reader, emit func(string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !emit(line) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("Read error: %w", err)
	}
	return nil
}
