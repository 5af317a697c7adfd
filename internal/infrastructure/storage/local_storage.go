package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/fiscal"
	infraconfig "github.com/erp/marketsync/internal/infrastructure/config"
)

var _ fiscal.ArtifactStore = (*LocalArtifactStore)(nil)

// LocalArtifactStore keeps artifacts as files in one directory
type LocalArtifactStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalArtifactStore creates the directory when missing
func NewLocalArtifactStore(dir string, logger *zap.Logger) (*LocalArtifactStore, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalArtifactStore{dir: dir, logger: logger}, nil
}

// Put writes data atomically and returns the file path
func (s *LocalArtifactStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store artifact %s: %w", name, err)
	}

	s.logger.Debug("Artifact stored", zap.String("path", target))
	return target, nil
}

// Get reads a stored artifact
func (s *LocalArtifactStore) Get(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", fiscal.ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	return data, nil
}

// Dir returns the storage directory
func (s *LocalArtifactStore) Dir() string {
	return s.dir
}

// NewArtifactStore builds the store selected by cfg.Type. Local storage
// writes under dir.
func NewArtifactStore(cfg *infraconfig.StorageConfig, dir string, logger *zap.Logger) (fiscal.ArtifactStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Type {
	case "", "local":
		return NewLocalArtifactStore(dir, logger)
	case "s3":
		return NewS3ArtifactStore(cfg, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// ErrInvalidName is returned for names that are empty or contain a path
var ErrInvalidName = errors.New("storage: invalid artifact name")

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
