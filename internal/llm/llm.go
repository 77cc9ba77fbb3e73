// Package llm streams chat completions from an OpenAI-compatible model
// endpoint (Groq by default, plain OpenAI or a local Ollama otherwise).
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/umsafe/umsafe/pkg/models"
)

// Typed failures the HTTP layer maps to client-facing statuses.
var (
	// ErrRateLimited means the upstream returned 429.
	ErrRateLimited = errors.New("model rate limited")

	// ErrProviderConfig means the upstream rejected our credentials or
	// quota (401, 402, 403).
	ErrProviderConfig = errors.New("model provider rejected credentials or quota")
)

// UpstreamError wraps a non-2xx upstream status with its body snippet.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("model upstream status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	switch e.Status {
	case 429:
		return ErrRateLimited
	case 401, 402, 403:
		return ErrProviderConfig
	}
	return nil
}

// Backend streams a chat completion. onDelta is called once per content
// delta, in order; returning an error from onDelta aborts the stream.
type Backend interface {
	StreamChat(ctx context.Context, system string, messages []models.InboundMessage, onDelta func(delta string) error) error
}
