package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/internal/application/port"
)

// LocalBlobStoreConfig configures a filesystem blob store
type LocalBlobStoreConfig struct {
	BaseDir       string
	PublicBaseURL string // e.g. http://localhost:8080/blobs
	PathPrefix    string // URL segment in front of the storage id, e.g. "image/upload"
}

// LocalBlobStore implements port.BlobStore on the local filesystem. Files are published
// as PublicBaseURL/PathPrefix/<storage id>.
type LocalBlobStore struct {
	cfg    LocalBlobStoreConfig
	logger *zap.Logger
}

// NewLocalBlobStore creates the base directory if needed
func NewLocalBlobStore(cfg LocalBlobStoreConfig, logger *zap.Logger) (*LocalBlobStore, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("blob store base directory is required")
	}
	if _, err := url.Parse(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("invalid public base url: %w", err)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.PathPrefix = strings.Trim(cfg.PathPrefix, "/")
	return &LocalBlobStore{cfg: cfg, logger: logger}, nil
}

// Save writes content under a fresh storage id that keeps the original extension
func (s *LocalBlobStore) Save(ctx context.Context, filename, contentType string, content []byte) (*port.StoredBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	storageID := uuid.NewString() + extensionOf(filename, contentType)
	fullPath, err := s.pathFor(storageID)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	s.logger.Debug("Blob saved",
		zap.String("storage_id", storageID),
		zap.Int("size", len(content)))

	return &port.StoredBlob{
		URL:         s.URLFor(storageID),
		StorageID:   storageID,
		ContentType: contentType,
		Size:        int64(len(content)),
	}, nil
}

// Delete removes a blob. Deleting a missing blob succeeds.
func (s *LocalBlobStore) Delete(ctx context.Context, storageID string) error {
	fullPath, err := s.pathFor(storageID)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	s.logger.Debug("Blob deleted", zap.String("storage_id", storageID))
	return nil
}

// URLFor returns the public URL of a storage id
func (s *LocalBlobStore) URLFor(storageID string) string {
	if s.cfg.PathPrefix == "" {
		return s.cfg.PublicBaseURL + "/" + storageID
	}
	return s.cfg.PublicBaseURL + "/" + s.cfg.PathPrefix + "/" + storageID
}

// Dir is the directory blobs are written to
func (s *LocalBlobStore) Dir() string {
	return s.cfg.BaseDir
}

// pathFor resolves a storage id and checks it stays inside the base directory
func (s *LocalBlobStore) pathFor(storageID string) (string, error) {
	if storageID == "" || strings.ContainsAny(storageID, `/\`) {
		return "", fmt.Errorf("invalid storage id: %q", storageID)
	}

	absBase, err := filepath.Abs(s.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.cfg.BaseDir, storageID))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory: %s", storageID)
	}
	return absPath, nil
}

func extensionOf(filename, contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ""
}

var _ port.BlobStore = (*LocalBlobStore)(nil)
