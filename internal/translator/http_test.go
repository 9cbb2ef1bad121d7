package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"

	"github.com/valpere/subtran/internal/conversation"
)

func sampleRequest() Request {
	temp := 0.7
	return Request{
		Model: "qwen2:7b-instruct-q5_K_M",
		Messages: []conversation.Turn{
			{Role: conversation.RoleSystem, Content: "translate"},
			{Role: conversation.RoleUser, Content: "こんにちは"},
		},
		Options:   Options{NumCtx: 8192, Temperature: &temp},
		KeepAlive: "10m",
	}
}

func requireFailure(t *testing.T, err error, kind FailureKind) *Failure {
	t.Helper()
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %T: %v", err, err)
	}
	if f.Kind != kind {
		t.Fatalf("expected failure kind %v, got %v (%v)", kind, f.Kind, f)
	}
	return f
}

func TestOllamaBackend_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "qwen2:7b-instruct-q5_K_M" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if req["stream"] != false {
			t.Errorf("expected stream=false, got %v", req["stream"])
		}
		if req["keep_alive"] != "10m" {
			t.Errorf("expected keep_alive=10m, got %v", req["keep_alive"])
		}
		msgs, _ := req["messages"].([]interface{})
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		first := msgs[0].(map[string]interface{})
		if first["role"] != "system" || first["content"] != "translate" {
			t.Errorf("unexpected first message %v", first)
		}
		opts, _ := req["options"].(map[string]interface{})
		if opts["num_ctx"] != float64(8192) || opts["temperature"] != 0.7 {
			t.Errorf("unexpected options %v", opts)
		}
		if _, present := opts["top_k"]; present {
			t.Error("unset options must be omitted")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "你好"},
			"done":    true,
		})
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}

	reply, err := svc.Chat(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "你好" {
		t.Errorf("expected '你好', got %q", reply)
	}
}

func TestOllamaBackend_Chat_OmitsEmptyOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if _, present := req["options"]; present {
			t.Error("expected options to be omitted")
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
	req := sampleRequest()
	req.Options = Options{}

	if _, err := svc.Chat(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOllamaBackend_Chat_SendsZeroNumGPU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Options map[string]interface{} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gpu, present := req.Options["num_gpu"]
		if !present || gpu != float64(0) {
			t.Errorf("expected num_gpu=0 in options, got %v", req.Options)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
	cpuOnly := 0
	req := sampleRequest()
	req.Options = Options{NumGPU: &cpuOnly}

	if _, err := svc.Chat(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChat_UnknownRoleRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request with an unknown role should not be sent")
	}))
	defer server.Close()

	req := sampleRequest()
	req.Messages = append(req.Messages, conversation.Turn{Role: "narrator", Content: "..."})

	backends := []Backend{
		&OllamaBackend{baseURL: server.URL, client: server.Client()},
		&OpenRouterBackend{apiKey: "k", baseURL: server.URL, client: server.Client()},
	}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := b.Chat(context.Background(), req)
			f := requireFailure(t, err, FailureRequest)
			if !strings.Contains(f.Error(), "narrator") {
				t.Errorf("expected role in error, got %q", f.Error())
			}
		})
	}
}

func TestOllamaBackend_Chat_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}

	_, err := svc.Chat(context.Background(), sampleRequest())
	f := requireFailure(t, err, FailureStatus)
	if f.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", f.StatusCode)
	}
	if !strings.Contains(f.Error(), "model 'nope' not found") {
		t.Errorf("expected backend message in error, got %q", f.Error())
	}
}

func TestOllamaBackend_Chat_MissingContent(t *testing.T) {
	bodies := map[string]string{
		"no message":   `{"done":true}`,
		"no content":   `{"message":{"role":"assistant"}}`,
		"inline error": `{"error":"out of memory"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
			_, err := svc.Chat(context.Background(), sampleRequest())
			requireFailure(t, err, FailureResponseShape)
		})
	}
}

func TestOllamaBackend_Chat_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureResponseShape)
}

func TestOllamaBackend_Chat_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	svc := NewOllamaBackend(url, 0)
	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureTransport)
}

func TestOllamaBackend_Chat_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"late"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
	_, err := svc.Chat(ctx, sampleRequest())
	requireFailure(t, err, FailureTransport)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestOllamaBackend_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	svc := &OllamaBackend{baseURL: server.URL, client: server.Client()}
	if err := svc.IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewOllamaBackend_Defaults(t *testing.T) {
	svc := NewOllamaBackend("", 0)
	if svc.baseURL != DefaultOllamaURL {
		t.Errorf("expected default URL, got %q", svc.baseURL)
	}
	if svc.client.Timeout != 0 {
		t.Errorf("expected no client timeout, got %v", svc.client.Timeout)
	}
	if svc.Name() != "ollama" {
		t.Errorf("expected 'ollama', got %q", svc.Name())
	}
}

func TestOpenRouterBackend_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req openRouterRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[1].Content != "こんにちは" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("expected temperature 0.7")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"你好"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	svc := &OpenRouterBackend{apiKey: "test-key", baseURL: server.URL, client: server.Client()}

	reply, err := svc.Chat(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "你好" {
		t.Errorf("expected '你好', got %q", reply)
	}
}

func TestOpenRouterBackend_Chat_NoAPIKey(t *testing.T) {
	svc := NewOpenRouterBackend("", "", 0)
	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureRequest)
}

func TestOpenRouterBackend_Chat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	svc := &OpenRouterBackend{apiKey: "k", baseURL: server.URL, client: server.Client()}
	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureResponseShape)
}

func TestOpenRouterBackend_Chat_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	svc := &OpenRouterBackend{apiKey: "k", baseURL: server.URL, client: server.Client()}
	_, err := svc.Chat(context.Background(), sampleRequest())
	f := requireFailure(t, err, FailureStatus)
	if !strings.Contains(f.Error(), "rate limited") {
		t.Errorf("expected nested error message, got %q", f.Error())
	}
}

func TestGoogleBackend_Chat_NoUserTurn(t *testing.T) {
	svc := NewGoogleBackend("", "ja", "zh-CN")
	req := Request{Messages: []conversation.Turn{{Role: conversation.RoleSystem, Content: "sys"}}}

	_, err := svc.Chat(context.Background(), req)
	requireFailure(t, err, FailureRequest)
}

func TestGoogleBackend_Chat_InvalidTarget(t *testing.T) {
	svc := NewGoogleBackend("", "ja", "not a language!")
	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureRequest)
}

type stubTranslateClient struct {
	translateFunc func(inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	closed        int
}

func (c *stubTranslateClient) Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error) {
	return c.translateFunc(inputs, target, opts)
}

func (c *stubTranslateClient) Close() error {
	c.closed++
	return nil
}

func TestGoogleBackend_Chat_ReusesClient(t *testing.T) {
	stub := &stubTranslateClient{translateFunc: func(inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error) {
		if target.String() != "zh-CN" || opts.Source.String() != "ja" {
			t.Errorf("unexpected languages %v <- %v", target, opts.Source)
		}
		return []translate.Translation{{Text: "译:" + inputs[0]}}, nil
	}}
	svc := NewGoogleBackend("", "ja", "zh-CN")
	dials := 0
	svc.dial = func(ctx context.Context) (textTranslator, error) {
		dials++
		return stub, nil
	}

	for _, line := range []string{"こんにちは", "さようなら", "ありがとう"} {
		req := Request{Messages: []conversation.Turn{{Role: conversation.RoleUser, Content: line}}}
		reply, err := svc.Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "译:"+line {
			t.Errorf("unexpected reply %q", reply)
		}
	}
	if dials != 1 {
		t.Errorf("client created %d times, want 1", dials)
	}

	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if stub.closed != 1 {
		t.Errorf("client closed %d times, want 1", stub.closed)
	}
}

func TestGoogleBackend_Chat_RetriesFailedDial(t *testing.T) {
	stub := &stubTranslateClient{translateFunc: func(inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error) {
		return []translate.Translation{{Text: "ok"}}, nil
	}}
	svc := NewGoogleBackend("", "auto", "en")
	dials := 0
	svc.dial = func(ctx context.Context) (textTranslator, error) {
		dials++
		if dials == 1 {
			return nil, errors.New("no credentials")
		}
		return stub, nil
	}

	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureTransport)

	if reply, err := svc.Chat(context.Background(), sampleRequest()); err != nil || reply != "ok" {
		t.Fatalf("expected second call to connect, got %q, %v", reply, err)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}
}

func TestGoogleBackend_Chat_EmptyResult(t *testing.T) {
	svc := NewGoogleBackend("", "ja", "en")
	svc.dial = func(ctx context.Context) (textTranslator, error) {
		return &stubTranslateClient{translateFunc: func([]string, language.Tag, *translate.Options) ([]translate.Translation, error) {
			return nil, nil
		}}, nil
	}

	_, err := svc.Chat(context.Background(), sampleRequest())
	requireFailure(t, err, FailureResponseShape)
}

func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		in      string
		want    BackendKind
		wantErr bool
	}{
		{"ollama", BackendOllama, false},
		{" OpenRouter ", BackendOpenRouter, false},
		{"google", BackendGoogle, false},
		{"systran", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackendKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackendKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseBackendKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
