package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-docqa-platform/internal/config"
)

type fakeGenerator struct {
	name   string
	closed atomic.Bool
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) { return f.name, nil }
func (f *fakeGenerator) Provider() string                                 { return "fake" }
func (f *fakeGenerator) Model() string                                    { return f.name }
func (f *fakeGenerator) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestProvider(t *testing.T, build func(context.Context, string) (Generator, error)) (*Provider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_key")
	return &Provider{
		cfg:         &config.Config{},
		keys:        config.NewAPIKeyStore(path, ""),
		build:       build,
		retireAfter: 50 * time.Millisecond,
	}, path
}

func TestProvider_ReconfigureKeepsKeyWhenBuildFails(t *testing.T) {
	p, path := newTestProvider(t, func(context.Context, string) (Generator, error) {
		return nil, errors.New("invalid key")
	})

	err := p.Reconfigure(context.Background(), "sk-bad")
	require.Error(t, err)
	assert.False(t, p.Configured())
	assert.False(t, p.keys.Configured())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "key file must not be written")

	assert.Error(t, p.Reconfigure(context.Background(), "   "))
}

func TestProvider_ReconfigureRetiresOldGenerator(t *testing.T) {
	first := &fakeGenerator{name: "first"}
	second := &fakeGenerator{name: "second"}
	gens := []*fakeGenerator{first, second}
	p, path := newTestProvider(t, func(context.Context, string) (Generator, error) {
		g := gens[0]
		gens = gens[1:]
		return g, nil
	})

	require.NoError(t, p.Reconfigure(context.Background(), "key-one"))
	inFlight, err := p.Current()
	require.NoError(t, err)

	require.NoError(t, p.Reconfigure(context.Background(), " key-two "))
	assert.False(t, first.closed.Load(), "replaced generator stays usable for in-flight calls")

	text, err := inFlight.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	text, err = p.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	assert.Eventually(t, first.closed.Load, time.Second, 10*time.Millisecond)
	assert.False(t, second.closed.Load())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "key-two", string(saved))
}
