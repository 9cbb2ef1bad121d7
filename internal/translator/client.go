package translator

import (
	"context"
	"errors"
	"time"

	"github.com/valpere/subtran/internal/conversation"
)

// FailurePrefix starts every diagnostic turn written in place of a reply.
const FailurePrefix = "translation failed: "

// Client sends a session's transcript to a Backend and records the outcome
// in the session.
type Client struct {
	backend Backend
	cfg     RequestConfig
	filter  func(string) string
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithReplyFilter transforms every successful reply before it is recorded.
func WithReplyFilter(filter func(string) string) ClientOption {
	return func(c *Client) {
		c.filter = filter
	}
}

// NewClient constructs a client for backend using cfg on every request.
func NewClient(backend Backend, cfg RequestConfig, opts ...ClientOption) *Client {
	c := &Client{backend: backend, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend the client talks to.
func (c *Client) Backend() Backend {
	return c.backend
}

// Translate sends the full transcript of s. On success the reply is appended
// as an assistant turn. On failure a diagnostic assistant turn is appended
// instead, so the transcript stays well formed, and the Failure is returned.
// It never retries.
func (c *Client) Translate(ctx context.Context, s *conversation.Session) Result {
	start := time.Now()
	req := Request{
		Model:     c.cfg.Model,
		Messages:  s.Turns(),
		Options:   c.cfg.Options,
		KeepAlive: c.cfg.KeepAlive,
		Stream:    false,
	}

	reply, err := c.backend.Chat(ctx, req)
	if err != nil {
		failure := asFailure(c.backend.Name(), err)
		s.AppendAssistant(FailureMessage(failure))
		return Result{Failure: failure, Latency: time.Since(start)}
	}

	if c.filter != nil {
		reply = c.filter(reply)
	}
	s.AppendAssistant(reply)
	return Result{Reply: reply, Latency: time.Since(start)}
}

// FailureMessage renders the diagnostic text recorded for f.
func FailureMessage(f *Failure) string {
	return FailurePrefix + f.Error()
}

func asFailure(backend string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return newFailure(FailureTransport, backend, err)
}
