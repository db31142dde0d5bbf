package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rag-docqa-platform/internal/logger"
)

type entry struct {
	session    *Session
	version    int64
	lastAccess time.Time
}

// Manager is the Store used by the services: an in-memory map of decoded
// sessions in front of a snapshot Backend. A cached session is reloaded when
// the backend reports a newer version, which is how rebuilds done by the
// worker process become visible to the server.
type Manager struct {
	backend Backend
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend, now: time.Now, entries: make(map[string]*entry)}
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	info, err := m.backend.Stat(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.forget(id)
		}
		return nil, err
	}

	m.mu.Lock()
	if e, ok := m.entries[id]; ok && e.version == info.Version {
		e.lastAccess = m.now()
		s := e.session
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	data, info, err := m.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	// A Put may have landed while the backend was being read.
	m.mu.Lock()
	if e, ok := m.entries[id]; ok && e.version > info.Version {
		e.lastAccess = m.now()
		s = e.session
		m.mu.Unlock()
		return s, nil
	}
	m.entries[id] = &entry{session: s, version: info.Version, lastAccess: m.now()}
	m.mu.Unlock()

	logger.Debug("Session loaded from backend", "session_id", id, "version", info.Version, "documents", len(s.Documents))
	return s, nil
}

// Put persists s and makes it the current session for its id.
func (m *Manager) Put(ctx context.Context, s *Session) error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	info, err := m.backend.Save(ctx, s.ID, data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[s.ID] = &entry{session: s, version: info.Version, lastAccess: m.now()}
	m.mu.Unlock()
	return nil
}

// List returns every stored session id, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	infos, err := m.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := m.backend.Delete(ctx, id); err != nil {
		return err
	}
	m.forget(id)
	return nil
}

// Sweep removes sessions not used or rebuilt within ttl and returns their ids.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) ([]string, error) {
	infos, err := m.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := m.now().Add(-ttl)

	var removed []string
	for _, info := range infos {
		last := info.UpdatedAt
		m.mu.RLock()
		if e, ok := m.entries[info.ID]; ok && e.lastAccess.After(last) {
			last = e.lastAccess
		}
		m.mu.RUnlock()

		if last.After(cutoff) {
			continue
		}
		if err := m.Delete(ctx, info.ID); err != nil {
			logger.Warn("Failed to remove expired session", "session_id", info.ID, "error", err)
			continue
		}
		removed = append(removed, info.ID)
	}
	return removed, nil
}

// Cached reports how many sessions are decoded in memory.
func (m *Manager) Cached() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}
