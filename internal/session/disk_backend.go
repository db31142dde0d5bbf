package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	snapshotExt = ".snap"
	lockExt     = ".lock"
)

// DiskBackend stores one snapshot file per session. Writers of the same
// session are serialised with a file lock so the server and the worker can
// share a directory.
type DiskBackend struct {
	dir         string
	lockTimeout time.Duration
}

func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &DiskBackend{dir: dir, lockTimeout: 10 * time.Second}, nil
}

func (d *DiskBackend) path(id string) string { return filepath.Join(d.dir, id+snapshotExt) }

func (d *DiskBackend) Save(ctx context.Context, id string, data []byte) (SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return SnapshotInfo{}, err
	}
	unlock, err := d.lock(ctx, id)
	if err != nil {
		return SnapshotInfo{}, err
	}
	defer unlock()

	tmp, err := os.CreateTemp(d.dir, id+".*.tmp")
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return SnapshotInfo{}, fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return SnapshotInfo{}, fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return SnapshotInfo{}, err
	}
	if err := os.Rename(tmp.Name(), d.path(id)); err != nil {
		return SnapshotInfo{}, fmt.Errorf("replace snapshot: %w", err)
	}
	return d.Stat(ctx, id)
}

func (d *DiskBackend) Load(ctx context.Context, id string) ([]byte, SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return nil, SnapshotInfo{}, err
	}
	info, err := d.Stat(ctx, id)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	data, err := os.ReadFile(d.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, SnapshotInfo{}, ErrNotFound
		}
		return nil, SnapshotInfo{}, err
	}
	return data, info, nil
}

func (d *DiskBackend) Stat(_ context.Context, id string) (SnapshotInfo, error) {
	if err := ValidateID(id); err != nil {
		return SnapshotInfo{}, err
	}
	fi, err := os.Stat(d.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SnapshotInfo{}, ErrNotFound
		}
		return SnapshotInfo{}, err
	}
	return fileInfo(id, fi), nil
}

func (d *DiskBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	unlock, err := d.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	_ = os.Remove(filepath.Join(d.dir, id+lockExt))
	return nil
}

func (d *DiskBackend) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var out []SnapshotInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileInfo(strings.TrimSuffix(name, snapshotExt), fi))
	}
	return out, nil
}

func (d *DiskBackend) lock(ctx context.Context, id string) (func(), error) {
	l := flock.New(filepath.Join(d.dir, id+lockExt))
	ctx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()

	locked, err := l.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", id, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock session %s: busy", id)
	}
	return func() { _ = l.Unlock() }, nil
}

func fileInfo(id string, fi os.FileInfo) SnapshotInfo {
	mod := fi.ModTime()
	// size is folded in so two saves inside one mtime tick still differ
	return SnapshotInfo{ID: id, Version: mod.UnixNano() ^ fi.Size(), UpdatedAt: mod}
}
