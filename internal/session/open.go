package session

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"rag-docqa-platform/internal/config"
)

// OpenBackend builds the snapshot backend selected by SESSION_BACKEND. rdb
// is only used for the redis backend and must be non-nil in that case.
func OpenBackend(cfg *config.Config, rdb *redis.Client) (Backend, error) {
	switch cfg.SessionBackend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis session backend requires a Redis connection")
		}
		return NewRedisBackend(rdb), nil
	default:
		return NewDiskBackend(cfg.SessionDir)
	}
}
