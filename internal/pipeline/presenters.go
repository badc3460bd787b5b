package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maauso/lyricvid/internal/storage"
)

// FilePresenter copies the video to a destination path.
type FilePresenter struct {
	Dest string
}

// Present implements Presenter.
func (p *FilePresenter) Present(_ context.Context, video *VideoOutput) error {
	if err := os.MkdirAll(filepath.Dir(p.Dest), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	src, err := video.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(p.Dest)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy video: %w", err)
	}
	return dst.Close()
}

// PublishPresenter uploads the video to object storage. After a successful
// Present, URL returns where it was published. A PublishPresenter serves a
// single run.
type PublishPresenter struct {
	store  storage.Storage
	prefix string
	url    string
}

// NewPublishPresenter returns a presenter that uploads under prefix.
func NewPublishPresenter(store storage.Storage, prefix string) *PublishPresenter {
	return &PublishPresenter{store: store, prefix: prefix}
}

// Present implements Presenter.
func (p *PublishPresenter) Present(ctx context.Context, video *VideoOutput) error {
	src, err := video.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	key := video.RunID + ".mp4"
	if p.prefix != "" {
		key = p.prefix + "/" + key
	}

	url, err := p.store.UploadToS3(ctx, key, src)
	if err != nil {
		return fmt.Errorf("publish video: %w", err)
	}
	p.url = url
	return nil
}

// URL returns the published location, empty before a successful Present.
func (p *PublishPresenter) URL() string {
	return p.url
}
