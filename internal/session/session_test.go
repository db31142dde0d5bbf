package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-docqa-platform/internal/retrieval"
)

func buildSession(t *testing.T, id string, texts ...string) *Session {
	t.Helper()
	chunker, err := retrieval.NewChunker(retrieval.DefaultChunkSize, retrieval.DefaultChunkOverlap)
	require.NoError(t, err)

	var docs []Document
	for i, text := range texts {
		name := string(rune('a'+i)) + ".txt"
		pages := []retrieval.Page{{Number: 1, Start: 0, End: len([]rune(text)), Text: text}}
		docs = append(docs, Document{
			Name:    name,
			Content: []byte(text),
			Pages:   pages,
			Chunks:  chunker.Chunk(name, pages),
		})
	}
	bundle, err := retrieval.NewBuilder().Build(context.Background(), RetrievalDocuments(docs))
	require.NoError(t, err)
	return &Session{ID: id, Documents: docs, Bundle: bundle, BuiltAt: time.Now().UTC().Truncate(time.Millisecond)}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("3f2a9c0e4b1d4e5f"))
	assert.NoError(t, ValidateID("my-session_01"))
	assert.ErrorIs(t, ValidateID(""), ErrInvalidID)
	assert.ErrorIs(t, ValidateID("../etc/passwd"), ErrInvalidID)
	assert.ErrorIs(t, ValidateID("a b"), ErrInvalidID)
}

func TestCodec_RoundTrip(t *testing.T) {
	s := buildSession(t, "abc", "el contrato de arrendamiento vence en marzo", "weather report for the valley")

	data, err := Encode(s)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.Documents, got.Documents)
	assert.True(t, s.BuiltAt.Equal(got.BuiltAt))
	require.True(t, got.Ready())

	opts := retrieval.DefaultSearchOptions()
	assert.Equal(t,
		retrieval.Search(context.Background(), "arrendamiento", s.Bundle, opts),
		retrieval.Search(context.Background(), "arrendamiento", got.Bundle, opts))
}

func TestCodec_NotReadySession(t *testing.T) {
	s := &Session{ID: "empty", Bundle: retrieval.NotReady{}}

	data, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, got.Ready())
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a snapshot"))
	assert.Error(t, err)
	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestDiskBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)

	_, _, err = b.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	info, err := b.Save(ctx, "s1", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "s1", info.ID)

	data, loaded, err := b.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
	assert.Equal(t, info.Version, loaded.Version)

	_, err = b.Save(ctx, "s2", []byte("two"))
	require.NoError(t, err)
	infos, err := b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	require.NoError(t, b.Delete(ctx, "s1"))
	_, err = b.Stat(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, b.Delete(ctx, "s1"))

	_, err = b.Save(ctx, "../escape", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestManager_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	m := NewManager(b)

	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	s := buildSession(t, "s1", "uno dos tres cuatro")
	require.NoError(t, m.Put(ctx, s))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, s, got, "cached pointer is returned while the version is unchanged")

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, m.Delete(ctx, "s1"))
	_, err = m.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Cached())
}

func TestManager_SeesRebuildFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	serverBackend, err := NewDiskBackend(dir)
	require.NoError(t, err)
	workerBackend, err := NewDiskBackend(dir)
	require.NoError(t, err)
	server := NewManager(serverBackend)
	worker := NewManager(workerBackend)

	require.NoError(t, server.Put(ctx, buildSession(t, "shared", "primera version")))
	first, err := server.Get(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, first.Documents, 1)

	rebuilt := buildSession(t, "shared", "segunda version del documento", "otro documento mas largo que el primero")
	require.NoError(t, worker.Put(ctx, rebuilt))

	second, err := server.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, second.Documents, 2)
	assert.NotSame(t, first, second)
}

// versionedBackend keeps snapshots in memory with a counter version and runs
// afterLoad once, between reading a snapshot and returning it.
type versionedBackend struct {
	mu        sync.Mutex
	version   int64
	data      map[string][]byte
	versions  map[string]int64
	afterLoad func()
}

func newVersionedBackend() *versionedBackend {
	return &versionedBackend{data: map[string][]byte{}, versions: map[string]int64{}}
}

func (b *versionedBackend) Save(_ context.Context, id string, data []byte) (SnapshotInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	b.data[id] = data
	b.versions[id] = b.version
	return SnapshotInfo{ID: id, Version: b.version, UpdatedAt: time.Now()}, nil
}

func (b *versionedBackend) Load(ctx context.Context, id string) ([]byte, SnapshotInfo, error) {
	b.mu.Lock()
	data, ok := b.data[id]
	info := SnapshotInfo{ID: id, Version: b.versions[id]}
	hook := b.afterLoad
	b.afterLoad = nil
	b.mu.Unlock()
	if !ok {
		return nil, SnapshotInfo{}, ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return data, info, nil
}

func (b *versionedBackend) Stat(_ context.Context, id string) (SnapshotInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.versions[id]
	if !ok {
		return SnapshotInfo{}, ErrNotFound
	}
	return SnapshotInfo{ID: id, Version: v}, nil
}

func (b *versionedBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, id)
	delete(b.versions, id)
	return nil
}

func (b *versionedBackend) List(_ context.Context) ([]SnapshotInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var infos []SnapshotInfo
	for id, v := range b.versions {
		infos = append(infos, SnapshotInfo{ID: id, Version: v})
	}
	return infos, nil
}

func TestManager_GetKeepsNewerPutDuringLoad(t *testing.T) {
	ctx := context.Background()
	b := newVersionedBackend()

	old := buildSession(t, "race", "version anterior")
	data, err := Encode(old)
	require.NoError(t, err)
	_, err = b.Save(ctx, "race", data)
	require.NoError(t, err)

	m := NewManager(b)
	newer := buildSession(t, "race", "version nueva", "documento agregado")
	b.afterLoad = func() { require.NoError(t, m.Put(ctx, newer)) }

	got, err := m.Get(ctx, "race")
	require.NoError(t, err)
	assert.Same(t, newer, got)

	again, err := m.Get(ctx, "race")
	require.NoError(t, err)
	assert.Same(t, newer, again, "older snapshot must not replace the cached entry")
}

func TestManager_Sweep(t *testing.T) {
	ctx := context.Background()
	b, err := NewDiskBackend(t.TempDir())
	require.NoError(t, err)
	m := NewManager(b)

	require.NoError(t, m.Put(ctx, buildSession(t, "old", "texto viejo")))

	removed, err := m.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err = m.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, removed)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
