package translator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/valpere/subtran/internal/conversation"
)

type stubBackend struct {
	chatFunc func(ctx context.Context, req Request) (string, error)
	requests []Request
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Chat(ctx context.Context, req Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.chatFunc(ctx, req)
}

func TestClient_Translate_Success(t *testing.T) {
	backend := &stubBackend{chatFunc: func(ctx context.Context, req Request) (string, error) {
		last, _ := req.LastUser()
		return strings.ToUpper(last), nil
	}}
	temp := 0.7
	cfg := RequestConfig{Model: "m", Options: Options{Temperature: &temp}, KeepAlive: "10m"}
	client := NewClient(backend, cfg)

	s := conversation.New("sys")
	s.AppendUser("hello")

	res := client.Translate(context.Background(), s)
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Reply != "HELLO" {
		t.Errorf("expected HELLO, got %q", res.Reply)
	}
	if s.Len() != 3 || s.LastContent() != "HELLO" {
		t.Errorf("reply not appended: %+v", s.Turns())
	}
	if s.Turns()[2].Role != conversation.RoleAssistant {
		t.Errorf("expected assistant role, got %q", s.Turns()[2].Role)
	}

	if len(backend.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(backend.requests))
	}
	req := backend.requests[0]
	if req.Model != "m" || req.KeepAlive != "10m" || req.Stream {
		t.Errorf("request config not applied: %+v", req)
	}
	if req.Options.Temperature == nil || *req.Options.Temperature != 0.7 {
		t.Error("options not forwarded")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != conversation.RoleSystem {
		t.Errorf("expected full transcript, got %+v", req.Messages)
	}
}

func TestClient_Translate_Failure(t *testing.T) {
	backend := &stubBackend{chatFunc: func(ctx context.Context, req Request) (string, error) {
		return "", newFailure(FailureResponseShape, "stub", errors.New("response is missing message or content"))
	}}
	client := NewClient(backend, RequestConfig{Model: "m"})

	s := conversation.New("sys")
	s.AppendUser("hello")

	res := client.Translate(context.Background(), s)
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Failure.Kind != FailureResponseShape {
		t.Errorf("expected response shape failure, got %v", res.Failure.Kind)
	}
	if s.Len() != 3 {
		t.Fatalf("expected diagnostic turn, got %d turns", s.Len())
	}
	last := s.Turns()[2]
	if last.Role != conversation.RoleAssistant {
		t.Errorf("diagnostic turn must be assistant, got %q", last.Role)
	}
	if !strings.HasPrefix(last.Content, FailurePrefix) || !strings.Contains(last.Content, "response shape") {
		t.Errorf("unexpected diagnostic %q", last.Content)
	}
	if len(backend.requests) != 1 {
		t.Errorf("expected no retry, got %d calls", len(backend.requests))
	}
}

func TestClient_Translate_PlainErrorIsTransport(t *testing.T) {
	backend := &stubBackend{chatFunc: func(ctx context.Context, req Request) (string, error) {
		return "", errors.New("connection refused")
	}}
	client := NewClient(backend, RequestConfig{})

	s := conversation.New("sys")
	s.AppendUser("hello")

	res := client.Translate(context.Background(), s)
	if res.OK() || res.Failure.Kind != FailureTransport {
		t.Fatalf("expected transport failure, got %+v", res)
	}
	if !strings.Contains(s.LastContent(), "connection refused") {
		t.Errorf("diagnostic should carry the cause, got %q", s.LastContent())
	}
}

func TestClient_Translate_ReplyFilter(t *testing.T) {
	backend := &stubBackend{chatFunc: func(ctx context.Context, req Request) (string, error) {
		return "  raw  ", nil
	}}
	client := NewClient(backend, RequestConfig{}, WithReplyFilter(strings.TrimSpace))

	s := conversation.New("sys")
	s.AppendUser("x")

	res := client.Translate(context.Background(), s)
	if res.Reply != "raw" || s.LastContent() != "raw" {
		t.Errorf("filter not applied: reply=%q last=%q", res.Reply, s.LastContent())
	}
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Kind: FailureStatus, Backend: "ollama", StatusCode: 500, Err: errors.New("boom")}
	if got := f.Error(); got != "status: ollama: http 500: boom" {
		t.Errorf("unexpected message %q", got)
	}
	f = newFailure(FailureTransport, "ollama", errors.New("dial"))
	if got := f.Error(); got != "transport: ollama: dial" {
		t.Errorf("unexpected message %q", got)
	}
}
