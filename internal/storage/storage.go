// Package storage provides run-scoped scratch space and optional persistent
// publishing of rendered videos.
// It defines the Storage interface (port) and implementations for local disk
// and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for scratch space and video publishing.
type Storage interface {
	// NewWorkspace creates an empty, private directory for one render.
	// The caller must Close the workspace; Close removes the directory
	// and everything written into it.
	NewWorkspace(ctx context.Context, prefix string) (*Workspace, error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
