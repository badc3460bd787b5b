package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidName is returned when a workspace file name would escape the
// workspace directory.
var ErrInvalidName = errors.New("invalid workspace file name")

// Workspace is a scratch directory owned by a single render. Files are
// addressed by plain names relative to the directory.
type Workspace struct {
	dir string

	closeOnce sync.Once
	closeErr  error
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(w.dir, name), nil
}

// Create creates name for writing. It fails if name already exists.
func (w *Workspace) Create(name string) (*os.File, error) {
	p, err := w.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600) // #nosec G304 - name is validated above
	if err != nil {
		return nil, fmt.Errorf("create workspace file: %w", err)
	}
	return f, nil
}

// SaveTemp copies data into name and returns its path and size.
func (w *Workspace) SaveTemp(ctx context.Context, name string, data io.Reader) (string, int64, error) {
	select {
	case <-ctx.Done():
		return "", 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := w.Create(name)
	if err != nil {
		return "", 0, err
	}

	fileName := f.Name()
	n, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	return fileName, n, nil
}

// Close removes the workspace directory and its contents. It is safe to
// call more than once; later calls return the first result.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.closeErr = fmt.Errorf("remove workspace %s: %w", w.dir, err)
		}
	})
	return w.closeErr
}
