package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// workspacePrefix marks directories created by NewWorkspace so Sweep never
// touches anything else under the root.
const workspacePrefix = "ws-"

// LocalStorage implements the Storage interface using local disk.
// Each workspace is a fresh subdirectory of a configurable root. It does not
// support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where workspaces are created.
// If tempDir is empty, os.TempDir()/lyricvid is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "lyricvid")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// NewWorkspace creates a new workspace directory under the temp root.
func (s *LocalStorage) NewWorkspace(ctx context.Context, prefix string) (*Workspace, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir, err := os.MkdirTemp(s.tempDir, workspacePrefix+sanitize(prefix)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Sweep removes workspaces last modified before olderThan. Workspaces are
// normally removed by their run; Sweep reclaims those left behind by a
// crashed process. It returns the number of workspaces removed and the first
// error encountered.
func (s *LocalStorage) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		return 0, fmt.Errorf("read temp directory: %w", err)
	}

	removed := 0
	var firstErr error
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workspacePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.tempDir, entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove stale workspace %s: %w", entry.Name(), err)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// sanitize keeps prefix usable inside a directory name pattern.
func sanitize(prefix string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix)
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
