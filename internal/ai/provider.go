package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rag-docqa-platform/internal/config"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/telemetry"
)

const defaultRetireAfter = time.Minute

// Provider holds the active Generator and rebuilds it when the API key
// changes. It is safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	cfg     *config.Config
	keys    *config.APIKeyStore
	metrics *telemetry.Metrics
	current Generator

	// build creates a generator for a key; replaced in tests.
	build func(ctx context.Context, key string) (Generator, error)
	// retireAfter delays closing a replaced generator so calls that already
	// picked it up can finish.
	retireAfter time.Duration
}

// NewProvider builds the generator for the configured provider. A missing
// key is not an error: Current reports ErrNotConfigured until one is set.
func NewProvider(ctx context.Context, cfg *config.Config, keys *config.APIKeyStore, metrics *telemetry.Metrics) (*Provider, error) {
	p := &Provider{cfg: cfg, keys: keys, metrics: metrics, retireAfter: defaultRetireAfter}
	if cfg.LLMTimeout > 0 {
		p.retireAfter = cfg.LLMTimeout
	}
	p.build = p.buildForConfig
	if !keys.Configured() {
		logger.Warn("Generative model API key not configured", "provider", cfg.LLMProvider)
		return p, nil
	}
	g, err := p.build(ctx, keys.Get())
	if err != nil {
		return nil, err
	}
	p.swap(g)
	return p, nil
}

// NewStaticProvider wraps a fixed generator, mostly for tests and the CLI.
func NewStaticProvider(g Generator) *Provider {
	return &Provider{current: g}
}

// Current returns the active generator or ErrNotConfigured.
func (p *Provider) Current() (Generator, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil, ErrNotConfigured
	}
	return p.current, nil
}

// Configured reports whether a generator is available.
func (p *Provider) Configured() bool {
	_, err := p.Current()
	return err == nil
}

// Generate delegates to the active generator.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	g, err := p.Current()
	if err != nil {
		return "", err
	}
	return g.Generate(ctx, prompt)
}

// Reconfigure builds a generator for key and, once that succeeds, persists
// the key and swaps the generator in. A key that fails to build is not saved.
func (p *Provider) Reconfigure(ctx context.Context, key string) error {
	if p.keys == nil || p.build == nil {
		return fmt.Errorf("provider has no key store")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}

	g, err := p.build(ctx, key)
	if err != nil {
		return err
	}
	if err := p.keys.Set(key); err != nil {
		closeGenerator(g)
		return err
	}
	p.swap(g)
	return nil
}

func (p *Provider) swap(g Generator) {
	p.mu.Lock()
	old := p.current
	p.current = g
	p.mu.Unlock()

	if old != nil {
		time.AfterFunc(p.retireAfter, func() { closeGenerator(old) })
	}
	logger.Info("Generative model configured", "provider", g.Provider(), "model", g.Model())
}

func (p *Provider) buildForConfig(ctx context.Context, key string) (Generator, error) {
	switch p.cfg.LLMProvider {
	case "openai":
		return NewOpenAIClient(key, p.cfg.OpenAIModel, "tier1", p.metrics)
	default:
		return NewGeminiClient(ctx, key, p.cfg.GeminiModel, "free", p.metrics)
	}
}

func closeGenerator(g Generator) {
	if c, ok := g.(Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close generator", "error", err)
		}
	}
}

// Close releases the active generator.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.current.(Closer); ok {
		return c.Close()
	}
	return nil
}
