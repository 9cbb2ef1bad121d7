package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type openRouterRequest struct {
	Model             string          `json:"model"`
	Messages          []ollamaMessage `json:"messages"`
	Stream            bool            `json:"stream"`
	Temperature       *float64        `json:"temperature,omitempty"`
	TopP              *float64        `json:"top_p,omitempty"`
	TopK              int             `json:"top_k,omitempty"`
	RepetitionPenalty *float64        `json:"repetition_penalty,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenRouterBackend talks to an OpenAI-compatible chat completions API.
func NewOpenRouterBackend(apiKey, baseURL string, timeout time.Duration) *OpenRouterBackend {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	return &OpenRouterBackend{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *OpenRouterBackend) Name() string {
	return string(BackendOpenRouter)
}

func (s *OpenRouterBackend) Chat(ctx context.Context, req Request) (string, error) {
	if s.apiKey == "" {
		return "", newFailure(FailureRequest, s.Name(), errors.New("OpenRouter API key required"))
	}

	messages, err := encodeMessages(s.Name(), req.Messages)
	if err != nil {
		return "", err
	}
	body := openRouterRequest{
		Model:             req.Model,
		Messages:          messages,
		Stream:            req.Stream,
		Temperature:       req.Options.Temperature,
		TopP:              req.Options.TopP,
		TopK:              req.Options.TopK,
		RepetitionPenalty: req.Options.RepeatPenalty,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	httpReq.Header.Set("HTTP-Referer", "https://github.com/valpere/subtran")
	httpReq.Header.Set("X-Title", "SubTran")

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

	var orResp openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&orResp); err != nil {
		return "", newFailure(FailureResponseShape, s.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	if len(orResp.Choices) == 0 {
		return "", newFailure(FailureResponseShape, s.Name(), errors.New("empty response from API"))
	}
	content := orResp.Choices[0].Message.Content
	if content == nil {
		return "", newFailure(FailureResponseShape, s.Name(),
			fmt.Errorf("choice has no content (finish_reason=%q)", orResp.Choices[0].FinishReason))
	}

	return *content, nil
}
