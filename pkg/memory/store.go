package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store persists a single opaque document. Persona state lives in one.
type Store interface {
	// Save replaces the stored document.
	Save(data []byte) error

	// Load returns the stored document, or nil if nothing was saved yet.
	Load() ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// FileStore keeps the document in a file on disk.
type FileStore struct {
	FilePath string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{FilePath: path}
}

// Save writes to a temp file and renames it over the target so readers
// never see a half-written document.
func (s *FileStore) Save(data []byte) error {
	dir := filepath.Dir(s.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmp := s.FilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads the file. A missing file is not an error.
func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Close is a no-op for files.
func (s *FileStore) Close() error {
	return nil
}

var _ Store = (*FileStore)(nil)
