// Package llm defines the language-model provider boundary and its backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultTimeout = 120 * time.Second

var (
	// ErrProviderFailure wraps every transport, authentication, rate-limit
	// and decoding failure returned by a backend.
	ErrProviderFailure = errors.New("provider failure")
	// ErrUnknownProvider is returned by New for an unrecognized backend name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the per-call generation parameters.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Provider sends a conversation to a language model and returns the
// generated text. Implementations make a single blocking call and do not retry.
type Provider interface {
	Respond(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, messages []Message, opts Options) (string, error)

// Respond calls f.
func (f Func) Respond(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

// Config holds the settings shared by the HTTP backends.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// Provider names accepted by New.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameOllama    = "ollama"
)

// New creates the backend registered under name.
func New(name string, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameOpenAI, "":
		return NewOpenAI(cfg), nil
	case NameAnthropic:
		return NewAnthropic(cfg), nil
	case NameOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// failure wraps err as a provider failure with a short operation label.
func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderFailure, op, err)
}

// statusFailure reports a non-2xx response.
func statusFailure(backend string, status int, body []byte) error {
	return fmt.Errorf("%w: %s error (status %d): %s", ErrProviderFailure, backend, status, strings.TrimSpace(string(body)))
}
