package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"poly/pkg/stream"
)

var providerBaseURLs = map[string]string{
	"ollama":    "http://localhost:11434",
	"openai":    "https://api.openai.com",
	"anthropic": "https://api.anthropic.com",
	"custom":    "http://localhost:8080",
}

const anthropicVersion = "2023-06-01"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	System      string
	Messages    []chatMessage
	Temperature float64
	MaxTokens   int64
}

type tokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type chatResponse struct {
	Content      string      `json:"content"`
	Thinking     string      `json:"thinking,omitempty"`
	Model        string      `json:"model"`
	Usage        *tokenUsage `json:"usage,omitempty"`
	Streamed     bool        `json:"streamed"`
	Provider     string      `json:"provider"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

func parseChatRequest(a Args) (chatRequest, error) {
	req := chatRequest{
		Provider:    strings.ToLower(a.String("provider", -1, "ollama")),
		APIKey:      a.String("apiKey", -1, a.String("api_key", -1, "")),
		Model:       a.String("model", -1, ""),
		System:      a.String("system", -1, ""),
		Temperature: 0.7,
		MaxTokens:   a.Int("maxTokens", -1, a.Int("max_tokens", -1, 0)),
	}
	if r, ok := a.Get("temperature", -1); ok && r.Type == gjson.Number {
		req.Temperature = r.Float()
	}
	base, known := providerBaseURLs[req.Provider]
	if !known {
		return req, fmt.Errorf("Unknown AI provider: %s", req.Provider)
	}
	req.BaseURL = strings.TrimRight(a.String("baseUrl", -1, a.String("base_url", -1, base)), "/")
	if req.Model == "" {
		return req, fmt.Errorf("missing argument: model")
	}
	if r, ok := a.Get("messages", -1); ok {
		r.ForEach(func(_, m gjson.Result) bool {
			req.Messages = append(req.Messages, chatMessage{Role: m.Get("role").String(), Content: m.Get("content").String()})
			return true
		})
	}
	if prompt := a.String("prompt", -1, ""); prompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	}
	if len(req.Messages) == 0 {
		return req, fmt.Errorf("missing argument: messages")
	}
	return req, nil
}

// endpoint is the URL a chat request is sent to. Ollama streams on the
// same endpoint it answers on.
func (r chatRequest) endpoint() string {
	switch r.Provider {
	case "ollama":
		return r.BaseURL + "/api/chat"
	case "anthropic":
		return r.BaseURL + "/v1/messages"
	}
	return r.BaseURL + "/v1/chat/completions"
}

func (r chatRequest) body(streaming bool) ([]byte, error) {
	messages := r.Messages
	payload := map[string]any{"model": r.Model, "stream": streaming}
	switch r.Provider {
	case "ollama":
		if r.System != "" {
			messages = append([]chatMessage{{Role: "system", Content: r.System}}, messages...)
		}
		opts := map[string]any{"temperature": r.Temperature}
		if r.MaxTokens > 0 {
			opts["num_predict"] = r.MaxTokens
		}
		payload["options"] = opts
	case "anthropic":
		if r.System != "" {
			payload["system"] = r.System
		}
		maxTokens := r.MaxTokens
		if maxTokens == 0 {
			maxTokens = 4096
		}
		payload["max_tokens"] = maxTokens
		payload["temperature"] = r.Temperature
	default:
		if r.System != "" {
			messages = append([]chatMessage{{Role: "system", Content: r.System}}, messages...)
		}
		if r.MaxTokens > 0 {
			payload["max_tokens"] = r.MaxTokens
		}
		payload["temperature"] = r.Temperature
	}
	payload["messages"] = messages
	return json.Marshal(payload)
}

func (r chatRequest) header() http.Header {
	h := http.Header{}
	switch {
	case r.APIKey == "":
	case r.Provider == "anthropic":
		h.Set("x-api-key", r.APIKey)
		h.Set("anthropic-version", anthropicVersion)
	default:
		h.Set("Authorization", "Bearer "+r.APIKey)
	}
	return h
}

// parse reads a non-streaming chat response of the request's provider.
func (r chatRequest) parse(data []byte) chatResponse {
	doc := gjson.ParseBytes(data)
	out := chatResponse{Model: r.Model, Provider: r.Provider}
	if m := doc.Get("model").String(); m != "" {
		out.Model = m
	}
	switch r.Provider {
	case "ollama":
		out.Content = doc.Get("message.content").String()
		out.Thinking = doc.Get("message.thinking").String()
		prompt, completion := doc.Get("prompt_eval_count").Int(), doc.Get("eval_count").Int()
		out.Usage = &tokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
		out.FinishReason = doc.Get("done_reason").String()
	case "anthropic":
		var text, thinking strings.Builder
		doc.Get("content").ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				text.WriteString(block.Get("text").String())
			case "thinking":
				thinking.WriteString(block.Get("thinking").String())
			}
			return true
		})
		out.Content, out.Thinking = text.String(), thinking.String()
		in, outTok := doc.Get("usage.input_tokens").Int(), doc.Get("usage.output_tokens").Int()
		out.Usage = &tokenUsage{PromptTokens: in, CompletionTokens: outTok, TotalTokens: in + outTok}
		out.FinishReason = doc.Get("stop_reason").String()
	default:
		out.Content = doc.Get("choices.0.message.content").String()
		out.Thinking = doc.Get("choices.0.message.reasoning_content").String()
		out.FinishReason = doc.Get("choices.0.finish_reason").String()
		if u := doc.Get("usage"); u.Exists() {
			out.Usage = &tokenUsage{
				PromptTokens:     u.Get("prompt_tokens").Int(),
				CompletionTokens: u.Get("completion_tokens").Int(),
				TotalTokens:      u.Get("total_tokens").Int(),
			}
		}
	}
	return out
}

func checkChatURL(s *Server, a Args) error {
	req, err := parseChatRequest(a)
	if err != nil {
		return err
	}
	return s.perms.CheckURL(req.endpoint())
}

func registerAIOps() {
	register("ai_chat", checkChatURL, func(s *Server, ctx context.Context, a Args) (any, error) {
		req, err := parseChatRequest(a)
		if err != nil {
			return nil, err
		}
		return s.chat(ctx, req)
	})

	register("ai_stream_start", checkChatURL, func(s *Server, _ context.Context, a Args) (any, error) {
		req, err := parseChatRequest(a)
		if err != nil {
			return nil, err
		}
		body, err := req.body(true)
		if err != nil {
			return nil, err
		}
		p := &stream.HTTPLineProducer{URL: req.endpoint(), Body: body, Header: req.header(), Client: s.streamClient()}
		return s.streams.Start(context.Background(), p), nil
	})

	register("ai_models", func(s *Server, a Args) error {
		return s.perms.CheckURL(a.String("baseUrl", -1, providerBaseURLs["ollama"]))
	}, func(s *Server, ctx context.Context, a Args) (any, error) {
		return s.ollamaModels(ctx, strings.TrimRight(a.String("baseUrl", -1, providerBaseURLs["ollama"]), "/"))
	})
}

func (s *Server) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := req.body(false)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("AI error: %w", err)
	}
	httpReq.Header = req.header()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.streamClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("AI error: Request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("AI error: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = gjson.GetBytes(data, "error").String()
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("AI error: %s", msg)
	}
	out := req.parse(data)
	return &out, nil
}

func (s *Server) ollamaModels(ctx context.Context, base string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("AI error: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AI error: Failed to connect to Ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("AI error: Ollama not available")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("AI error: %w", err)
	}
	models := []string{}
	for _, m := range gjson.GetBytes(data, "models.#.name").Array() {
		models = append(models, m.String())
	}
	return models, nil
}
