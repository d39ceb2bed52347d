package filestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"case-rag/internal/config"
	"case-rag/internal/models"
)

// ObjectStore keeps the raw uploaded files.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// New returns the object store selected by storage.backend.
func New(ctx context.Context, cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalStore(cfg.LocalRoot)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", models.ErrInvalidInput, cfg.Backend)
	}
}

// DocumentKey is the object key of a raw upload.
func DocumentKey(caseID, documentID, fileName string) string {
	return path.Join("cases", cleanSegment(caseID), cleanSegment(documentID), cleanSegment(fileName))
}

func cleanSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
