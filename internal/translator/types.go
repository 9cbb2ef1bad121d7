package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/subtran/internal/conversation"
)

// BackendKind names an inference backend implementation.
type BackendKind string

const (
	BackendOllama     BackendKind = "ollama"
	BackendOpenRouter BackendKind = "openrouter"
	BackendGoogle     BackendKind = "google"
)

// ParseBackendKind maps a configuration value to a BackendKind.
func ParseBackendKind(name string) (BackendKind, error) {
	switch kind := BackendKind(strings.ToLower(strings.TrimSpace(name))); kind {
	case BackendOllama, BackendOpenRouter, BackendGoogle:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want ollama, openrouter or google)", name)
	}
}

// Options is the sampling configuration forwarded to the backend. Zero
// values are left to the backend's own defaults. Fields where zero is a
// meaningful setting are pointers so an explicit 0 is still sent.
type Options struct {
	NumCtx        int      `mapstructure:"num_ctx" json:"num_ctx,omitempty"`
	Temperature   *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	TopK          int      `mapstructure:"top_k" json:"top_k,omitempty"`
	TopP          *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
	RepeatPenalty *float64 `mapstructure:"repeat_penalty" json:"repeat_penalty,omitempty"`
	NumBatch      int      `mapstructure:"num_batch" json:"num_batch,omitempty"`
	NumThread     int      `mapstructure:"num_thread" json:"num_thread,omitempty"`
	NumGPU        *int     `mapstructure:"num_gpu" json:"num_gpu,omitempty"`
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return o == Options{}
}

// RequestConfig is the fixed per-run part of every request.
type RequestConfig struct {
	Model     string  `mapstructure:"model" json:"model"`
	Options   Options `mapstructure:"options" json:"options"`
	KeepAlive string  `mapstructure:"keep_alive" json:"keep_alive"`
}

// Request is what a Backend receives: the whole transcript plus RequestConfig.
type Request struct {
	Model     string
	Messages  []conversation.Turn
	Options   Options
	KeepAlive string
	Stream    bool
}

// LastUser returns the content of the newest user turn in the request.
func (r Request) LastUser() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == conversation.RoleUser {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

// Backend performs one non-streaming chat round trip and returns the reply
// text. Errors should be *Failure values; anything else is treated as a
// transport failure.
type Backend interface {
	Name() string
	Chat(ctx context.Context, req Request) (string, error)
}

// FailureKind classifies why a translation call did not produce a reply.
type FailureKind int

const (
	// FailureTransport: backend unreachable or the round trip failed.
	FailureTransport FailureKind = iota + 1
	// FailureStatus: backend answered with a non-success status.
	FailureStatus
	// FailureResponseShape: reply missing expected fields or undecodable.
	FailureResponseShape
	// FailureRequest: the request could not be built (missing key, no user turn).
	FailureRequest
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureStatus:
		return "status"
	case FailureResponseShape:
		return "response shape"
	case FailureRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Failure is the typed reason a backend call failed.
type Failure struct {
	Kind       FailureKind
	Backend    string
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: http %d: %v", f.Kind, f.Backend, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Backend, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind FailureKind, backend string, err error) *Failure {
	return &Failure{Kind: kind, Backend: backend, Err: err}
}

// Result is the outcome of Client.Translate: either Reply or Failure is set.
type Result struct {
	Reply   string
	Failure *Failure
	Latency time.Duration
}

// OK reports whether the call produced a reply.
func (r Result) OK() bool {
	return r.Failure == nil
}
