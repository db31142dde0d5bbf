package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds chat store operations.
	DefaultTimeout = 10 * time.Second

	// ShortTimeout bounds session lookups and status checks.
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
