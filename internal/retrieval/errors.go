package retrieval

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by operations that need a built index.
var ErrNotReady = errors.New("index not ready")

var errCorruptState = errors.New("corrupt index state")

// ConfigError reports invalid chunking parameters.
type ConfigError struct {
	ChunkSize int
	Overlap   int
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunk configuration (size=%d, overlap=%d): %s", e.ChunkSize, e.Overlap, e.Reason)
}

// ValidateChunkParams checks that size > 0 and 0 <= overlap < size.
func ValidateChunkParams(chunkSize, overlap int) error {
	switch {
	case chunkSize <= 0:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "chunk size must be positive"}
	case overlap < 0:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "overlap must not be negative"}
	case overlap >= chunkSize:
		return &ConfigError{ChunkSize: chunkSize, Overlap: overlap, Reason: "overlap must be smaller than chunk size"}
	}
	return nil
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
