// Package storage abstracts durable object storage for submitted meal
// images. The submission path stores the image before the analysis job
// is enqueued, so workers always reference an already-durable URL.
//
// Two adapters implement the Storage interface: an S3-compatible
// backend (MinIO in development, any S3 endpoint in production) and an
// in-memory backend for tests. The adapter is chosen by configuration
// at construction time and owned by the process that constructs it;
// there are no package-level singletons.
package storage

import (
	"context"
	"fmt"
)

// Storage is the capability set required from an image store.
//
// Initialize must be called once before Store/Delete; it establishes
// the client and ensures the backing bucket exists. FileURL is a pure
// function of the object name and is usable before Initialize.
type Storage interface {
	Initialize(ctx context.Context) error
	Store(ctx context.Context, data []byte, name, contentType string) (string, error)
	FileURL(name string) string
	Delete(ctx context.Context, name string) error
}

// Config selects and parameterizes the concrete adapter.
type Config struct {
	// Backend is "s3" or "memory".
	Backend string

	// S3-compatible settings (ignored by the memory backend).
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// New constructs the adapter named by cfg.Backend.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3(cfg), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
