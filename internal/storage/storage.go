// Package storage archives uploaded spreadsheets and generated workbooks.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"careplan/internal/config"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("storage: object not found")

type Category string

const (
	CategoryBulkUpload Category = "bulk-upload"
	CategoryExport     Category = "export"
)

// Storage is implemented by every archive backend.
type Storage interface {
	// Put stores the content and returns the generated key.
	Put(ctx context.Context, obj Object) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type Object struct {
	Category    Category
	OwnerID     uuid.UUID
	Filename    string
	ContentType string
	Body        io.Reader
}

// New returns the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageTypeLocal:
		basePath := cfg.LocalPath
		if basePath == "" {
			basePath = "./uploads"
		}
		return NewLocalStorage(basePath)
	case config.StorageTypeS3:
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		return nil, fmt.Errorf("storage: unknown storage type: %s", cfg.Type)
	}
}

// objectKey lays keys out as category/yyyy/mm/owner/uuid_filename.
func objectKey(obj Object, now time.Time) string {
	return fmt.Sprintf("%s/%d/%02d/%s/%s_%s",
		obj.Category,
		now.Year(),
		now.Month(),
		obj.OwnerID.String(),
		uuid.New().String(),
		sanitizeFilename(obj.Filename),
	)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(filename string) string {
	filename = filenameReplacer.Replace(strings.TrimSpace(filename))
	if filename == "" {
		return "file"
	}
	return filename
}
