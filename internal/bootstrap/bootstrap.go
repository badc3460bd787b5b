// Package bootstrap provides dependency initialization for the lyric video generator.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/lyricvid/internal/audio"
	"github.com/maauso/lyricvid/internal/config"
	"github.com/maauso/lyricvid/internal/media"
	"github.com/maauso/lyricvid/internal/pipeline"
	"github.com/maauso/lyricvid/internal/storage"
)

// StaleWorkspaceAge is how old a leftover workspace must be before startup
// removes it.
const StaleWorkspaceAge = time.Hour

// Dependencies holds all initialized dependencies for the HTTP server and CLI.
type Dependencies struct {
	Generator *pipeline.Generator
	// Publisher is the S3-backed store, nil when S3 is not configured.
	Publisher storage.Storage
}

// sweeper is implemented by stores that can reclaim abandoned workspaces.
type sweeper interface {
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, publisher, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	if sw, ok := store.(sweeper); ok {
		removed, err := sw.Sweep(ctx, time.Now().Add(-StaleWorkspaceAge))
		if err != nil {
			logger.Warn("stale workspace sweep incomplete", slog.String("error", err.Error()))
		}
		if removed > 0 {
			logger.Info("removed stale workspaces", slog.Int("count", removed))
		}
	}

	// Initialize ffprobe and ffmpeg collaborators
	prober := audio.NewFFprobeProber(cfg.FFprobePath)
	composer := media.NewFFmpegComposer(cfg.FFmpegPath,
		media.WithThreads(cfg.EncodeThreads),
		media.WithPreset(cfg.EncodePreset),
	)

	gen := pipeline.NewGenerator(store, prober, composer, logger)

	return &Dependencies{
		Generator: gen,
		Publisher: publisher,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// The second result is non-nil only when S3 publishing is available.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil, nil
}
