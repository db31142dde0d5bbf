// Package ai wraps the generative model providers behind a single
// prompt-in, text-out interface.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no API key is available for the provider.
	ErrNotConfigured = errors.New("generative model not configured")
	// ErrUnavailable means the provider is rate limited or its breaker is open.
	ErrUnavailable = errors.New("generative model temporarily unavailable")
	// ErrEmptyResponse means the provider answered without any text.
	ErrEmptyResponse = errors.New("generative model returned no text")
)

// Generator answers a fully built prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// Closer is implemented by generators holding a client connection.
type Closer interface {
	Close() error
}
