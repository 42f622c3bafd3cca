package storage

import (
	"context"
)

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// PutObject stores body under objectKey, replacing any existing object.
	PutObject(ctx context.Context, objectKey string, contentType string, body []byte) error
}
