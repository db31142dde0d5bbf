package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RetrievalFile is the optional YAML overlay for retrieval tuning. Fields
// left out of the file keep their environment value.
type RetrievalFile struct {
	ChunkSize           *int     `yaml:"chunk_size,omitempty"`
	ChunkOverlap        *int     `yaml:"chunk_overlap,omitempty"`
	TopK                *int     `yaml:"top_k,omitempty"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold,omitempty"`
	BuildTimeout        string   `yaml:"build_timeout,omitempty"`
	QueryTimeout        string   `yaml:"query_timeout,omitempty"`
}

// LoadRetrievalFile reads an overlay. A missing file yields an empty overlay.
func LoadRetrievalFile(path string) (*RetrievalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &RetrievalFile{}, nil
		}
		return nil, err
	}
	var rf RetrievalFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rf, nil
}

// SaveRetrievalFile writes the retrieval settings of cfg to path.
func SaveRetrievalFile(path string, cfg *Config) error {
	rf := RetrievalFile{
		ChunkSize:           &cfg.ChunkSize,
		ChunkOverlap:        &cfg.ChunkOverlap,
		TopK:                &cfg.TopK,
		SimilarityThreshold: &cfg.SimilarityThreshold,
		BuildTimeout:        cfg.BuildTimeout.String(),
		QueryTimeout:        cfg.QueryTimeout.String(),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Apply copies the fields present in the overlay onto cfg.
func (rf *RetrievalFile) Apply(cfg *Config) error {
	if rf.ChunkSize != nil {
		cfg.ChunkSize = *rf.ChunkSize
	}
	if rf.ChunkOverlap != nil {
		cfg.ChunkOverlap = *rf.ChunkOverlap
	}
	if rf.TopK != nil {
		cfg.TopK = *rf.TopK
	}
	if rf.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *rf.SimilarityThreshold
	}
	if rf.BuildTimeout != "" {
		d, err := time.ParseDuration(rf.BuildTimeout)
		if err != nil {
			return fmt.Errorf("build_timeout: %w", err)
		}
		cfg.BuildTimeout = d
	}
	if rf.QueryTimeout != "" {
		d, err := time.ParseDuration(rf.QueryTimeout)
		if err != nil {
			return fmt.Errorf("query_timeout: %w", err)
		}
		cfg.QueryTimeout = d
	}
	return nil
}

func applyRetrievalFile(cfg *Config, path string) error {
	rf, err := LoadRetrievalFile(path)
	if err != nil {
		return fmt.Errorf("retrieval config: %w", err)
	}
	return rf.Apply(cfg)
}
