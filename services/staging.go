package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StagedFile is an upload written to the staging directory for the worker.
type StagedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// StageUploads writes files into a fresh batch directory under dir.
func StageUploads(dir string, files []UploadedFile) ([]StagedFile, error) {
	batch := filepath.Join(dir, uuid.NewString())
	if err := os.MkdirAll(batch, 0o700); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	staged := make([]StagedFile, 0, len(files))
	for i, f := range files {
		// the index keeps duplicate upload names apart
		path := filepath.Join(batch, fmt.Sprintf("%02d_%s", i, filepath.Base(f.Name)))
		if err := os.WriteFile(path, f.Content, 0o600); err != nil {
			_ = os.RemoveAll(batch)
			return nil, fmt.Errorf("stage %s: %w", f.Name, err)
		}
		staged = append(staged, StagedFile{Name: f.Name, Path: path})
	}
	return staged, nil
}

// LoadStaged reads staged files back into memory.
func LoadStaged(staged []StagedFile) ([]UploadedFile, error) {
	files := make([]UploadedFile, 0, len(staged))
	for _, s := range staged {
		content, err := os.ReadFile(s.Path)
		if err != nil {
			return nil, fmt.Errorf("read staged %s: %w", s.Name, err)
		}
		files = append(files, UploadedFile{Name: s.Name, Content: content})
	}
	return files, nil
}

// RemoveStaged deletes the batch directories holding staged.
func RemoveStaged(staged []StagedFile) error {
	dirs := make(map[string]bool)
	for _, s := range staged {
		dirs[filepath.Dir(s.Path)] = true
	}
	for d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			return err
		}
	}
	return nil
}
