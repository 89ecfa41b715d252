package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleveque/tongue-service/internal/model"
)

// ErrPhotoNotFound is returned when a photo file is missing on disk.
var ErrPhotoNotFound = errors.New("photo not found")

// FileSystem handles reading and writing analysis photos on disk.
// Photos are stored at: {baseDir}/{analysisID}/{variant}
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating photo directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// PhotoPath returns the filesystem path for one variant of an analysis photo.
func (fs *FileSystem) PhotoPath(id string, variant model.PhotoVariant) string {
	return filepath.Join(fs.baseDir, id, string(variant))
}

// AnalysisDir returns the directory for an analysis' photos.
func (fs *FileSystem) AnalysisDir(id string) string {
	return filepath.Join(fs.baseDir, id)
}

// Read returns the raw bytes of a stored photo.
func (fs *FileSystem) Read(id string, variant model.PhotoVariant) ([]byte, error) {
	data, err := os.ReadFile(fs.PhotoPath(id, variant))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", id, variant, ErrPhotoNotFound)
		}
		return nil, fmt.Errorf("reading photo file: %w", err)
	}
	return data, nil
}

// Write saves a photo variant, creating the analysis directory if needed.
func (fs *FileSystem) Write(id string, variant model.PhotoVariant, data []byte) error {
	if err := os.MkdirAll(fs.AnalysisDir(id), 0755); err != nil {
		return fmt.Errorf("creating analysis directory: %w", err)
	}
	if err := os.WriteFile(fs.PhotoPath(id, variant), data, 0644); err != nil {
		return fmt.Errorf("writing photo file: %w", err)
	}
	return nil
}

// Delete removes all photo files for an analysis.
func (fs *FileSystem) Delete(id string) error {
	return os.RemoveAll(fs.AnalysisDir(id))
}
