package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

// FileStore keeps the snapshot document in a single JSON file on disk,
// the local equivalent of the browser storage slot this service replaces.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]models.Complaint, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Complaint{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *FileStore) Save(_ context.Context, complaints []models.Complaint) error {
	raw, err := encode(complaints)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o644)
}
