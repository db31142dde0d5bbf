package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix   = "rag:session:"
	redisIndexKey = "rag:sessions"
)

// RedisBackend keeps the snapshot bytes under one key and a version counter
// plus timestamp in a companion hash.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func dataKey(id string) string { return redisPrefix + id + ":data" }
func metaKey(id string) string { return redisPrefix + id + ":meta" }

func (r *RedisBackend) Save(ctx context.Context, id string, data []byte) (SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return SnapshotInfo{}, err
	}
	now := time.Now().UTC()

	var version *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, dataKey(id), data, 0)
		version = pipe.HIncrBy(ctx, metaKey(id), "version", 1)
		pipe.HSet(ctx, metaKey(id), "updated_at", now.UnixNano())
		pipe.SAdd(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save session %s: %w", id, err)
	}
	return SnapshotInfo{ID: id, Version: version.Val(), UpdatedAt: now}, nil
}

func (r *RedisBackend) Load(ctx context.Context, id string) ([]byte, SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return nil, SnapshotInfo{}, err
	}
	var data *redis.StringCmd
	var meta *redis.MapStringStringCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		data = pipe.Get(ctx, dataKey(id))
		meta = pipe.HGetAll(ctx, metaKey(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, SnapshotInfo{}, fmt.Errorf("load session %s: %w", id, err)
	}
	raw, err := data.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, SnapshotInfo{}, ErrNotFound
		}
		return nil, SnapshotInfo{}, err
	}
	return raw, parseMeta(id, meta.Val()), nil
}

func (r *RedisBackend) Stat(ctx context.Context, id string) (SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return SnapshotInfo{}, err
	}
	meta, err := r.rdb.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return SnapshotInfo{}, err
	}
	if len(meta) == 0 {
		return SnapshotInfo{}, ErrNotFound
	}
	return parseMeta(id, meta), nil
}

func (r *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, dataKey(id), metaKey(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	return err
}

func (r *RedisBackend) List(ctx context.Context) ([]SnapshotInfo, error) {
	ids, err := r.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotInfo, 0, len(ids))
	for _, id := range ids {
		info, err := r.Stat(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func parseMeta(id string, meta map[string]string) SnapshotInfo {
	info := SnapshotInfo{ID: id}
	if v, err := strconv.ParseInt(meta["version"], 10, 64); err == nil {
		info.Version = v
	}
	if ts, err := strconv.ParseInt(meta["updated_at"], 10, 64); err == nil {
		info.UpdatedAt = time.Unix(0, ts).UTC()
	}
	return info
}
