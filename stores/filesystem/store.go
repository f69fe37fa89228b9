package filesystem

import (
	"context"
	"docsync-server/core"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based blob store rooted at basePath.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// path resolves key inside basePath and rejects anything that escapes it.
func (s *fsStore) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("%w: key %q", core.ErrInvalidIdentifier, key)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, key))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes storage root", core.ErrInvalidIdentifier, key)
	}
	return absFile, nil
}

func (s *fsStore) Get(ctx context.Context, key string) ([]byte, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Blob file not found")
			return nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read blob file")
		return nil, err
	}

	log.Debug("Blob retrieved successfully")
	return data, nil
}

// Put writes to a temporary file first so a crash never leaves a truncated
// snapshot behind.
func (s *fsStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+key+".*")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		log.WithError(err).Error("Failed to write blob file")
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		log.WithError(err).Error("Failed to move blob file into place")
		return err
	}

	log.Debug("Blob stored successfully")
	return nil
}
