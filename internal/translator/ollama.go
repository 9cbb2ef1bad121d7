package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/valpere/subtran/internal/conversation"
)

const DefaultOllamaURL = "http://localhost:11434"

type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// encodeMessages converts turns to the chat wire shape shared by Ollama and
// OpenRouter, rejecting roles neither API accepts.
func encodeMessages(backend string, turns []conversation.Turn) ([]ollamaMessage, error) {
	out := make([]ollamaMessage, 0, len(turns))
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, newFailure(FailureRequest, backend, fmt.Errorf("message %d has unknown role %q", i, t.Role))
		}
		out = append(out, ollamaMessage{Role: string(t.Role), Content: t.Content})
	}
	return out, nil
}

type ollamaChatRequest struct {
	Model     string          `json:"model"`
	Messages  []ollamaMessage `json:"messages"`
	Options   *Options        `json:"options,omitempty"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
}

type ollamaChatResponse struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// NewOllamaBackend talks to an Ollama server's /api/chat endpoint. A zero
// timeout leaves requests unbounded, matching the transport default.
func NewOllamaBackend(baseURL string, timeout time.Duration) *OllamaBackend {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *OllamaBackend) Name() string {
	return string(BackendOllama)
}

func (s *OllamaBackend) Chat(ctx context.Context, req Request) (string, error) {
	messages, err := encodeMessages(s.Name(), req.Messages)
	if err != nil {
		return "", err
	}
	body := ollamaChatRequest{
		Model:     req.Model,
		Messages:  messages,
		Stream:    req.Stream,
		KeepAlive: req.KeepAlive,
	}
	if !req.Options.IsZero() {
		opts := req.Options
		body.Options = &opts
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", newFailure(FailureTransport, s.Name(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f := newFailure(FailureStatus, s.Name(), errors.New(statusDetail(resp.Body)))
		f.StatusCode = resp.StatusCode
		return "", f
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", newFailure(FailureResponseShape, s.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	if chatResp.Error != "" {
		return "", newFailure(FailureResponseShape, s.Name(), fmt.Errorf("backend error: %s", chatResp.Error))
	}
	if chatResp.Message == nil || chatResp.Message.Content == nil {
		return "", newFailure(FailureResponseShape, s.Name(), errors.New("response is missing message or content"))
	}

	return *chatResp.Message.Content, nil
}

// IsAvailable checks that the server answers on /api/tags.
func (s *OllamaBackend) IsAvailable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("Ollama not available: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// statusDetail extracts a short description from an error response body.
func statusDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && len(errResp.Error) > 0 {
		var msg string
		if json.Unmarshal(errResp.Error, &msg) == nil {
			return msg
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(errResp.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty body"
	}
	return text
}
