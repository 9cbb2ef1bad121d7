package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// textTranslator is the part of *translate.Client the backend uses.
type textTranslator interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// GoogleBackend uses Cloud Translation. The API is stateless, so only the
// newest user turn is sent; earlier turns serve no purpose for it.
type GoogleBackend struct {
	credentials string
	sourceLang  string
	targetLang  string

	dial   func(ctx context.Context) (textTranslator, error)
	mu     sync.Mutex
	client textTranslator
}

// NewGoogleBackend returns a backend that connects on the first Chat and
// reuses that client until Close.
func NewGoogleBackend(credentials, sourceLang, targetLang string) *GoogleBackend {
	s := &GoogleBackend{
		credentials: credentials,
		sourceLang:  sourceLang,
		targetLang:  targetLang,
	}
	s.dial = s.newClient
	return s
}

func (s *GoogleBackend) Name() string {
	return string(BackendGoogle)
}

func (s *GoogleBackend) newClient(ctx context.Context) (textTranslator, error) {
	var opts []option.ClientOption
	if s.credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentials))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// connection returns the shared client, creating it if needed. A failed
// attempt is not cached so the next line can try again.
func (s *GoogleBackend) connection(ctx context.Context) (textTranslator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *GoogleBackend) Chat(ctx context.Context, req Request) (string, error) {
	text, ok := req.LastUser()
	if !ok {
		return "", newFailure(FailureRequest, s.Name(), errors.New("no user turn to translate"))
	}

	targetTag, err := language.Parse(s.targetLang)
	if err != nil {
		return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("invalid target language: %w", err))
	}
	opts := &translate.Options{Format: translate.Text}
	if s.sourceLang != "" && s.sourceLang != "auto" {
		sourceTag, err := language.Parse(s.sourceLang)
		if err != nil {
			return "", newFailure(FailureRequest, s.Name(), fmt.Errorf("invalid source language: %w", err))
		}
		opts.Source = sourceTag
	}

	client, err := s.connection(ctx)
	if err != nil {
		return "", newFailure(FailureTransport, s.Name(), fmt.Errorf("failed to create client: %w", err))
	}

	translations, err := client.Translate(ctx, []string{text}, targetTag, opts)
	if err != nil {
		return "", newFailure(FailureTransport, s.Name(), fmt.Errorf("translation failed: %w", err))
	}
	if len(translations) == 0 {
		return "", newFailure(FailureResponseShape, s.Name(), errors.New("no translation returned"))
	}

	return translations[0].Text, nil
}

// Close releases the client, if one was created.
func (s *GoogleBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
