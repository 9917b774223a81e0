package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Retrieve and GetMetadata when no object
// exists under the given key.
var ErrObjectNotFound = errors.New("object not found")

// Storage defines the interface for document storage operations.
type Storage interface {
	// Put writes an object under the given key. Implementations that support
	// encryption at rest apply it to every write.
	Put(ctx context.Context, key string, content io.Reader, contentType string) error

	// Retrieve gets an object by storage key.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns a time-limited URL for downloading the object.
	GetURL(ctx context.Context, key string, expiration time.Duration) (string, error)

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetMetadata returns object metadata.
	GetMetadata(ctx context.Context, key string) (ObjectMetadata, error)
}

type ObjectMetadata struct {
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

type StorageConfig struct {
	Type      StorageType
	LocalPath string
	S3        *S3Config
}

type S3Config struct {
	Bucket      string
	Region      string
	KMSKeyAlias string
}
