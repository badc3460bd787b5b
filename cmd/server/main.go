// Command server serves the lyric video generator over HTTP: the upload form,
// synchronous video generation and caption timing previews.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/lyricvid/internal/bootstrap"
	"github.com/maauso/lyricvid/internal/config"
	"github.com/maauso/lyricvid/internal/server"
)

const (
	// uploadTimeout bounds reading a request, audio upload included.
	uploadTimeout = 2 * time.Minute
	// renderTimeout bounds writing a response; the video is encoded before
	// the first byte is written.
	renderTimeout = 10 * time.Minute
	// drainTimeout is how long in-flight renders may finish after a signal.
	drainTimeout = 2 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting lyric video server",
		slog.Int("port", cfg.Port),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
		slog.String("ffprobe_path", cfg.FFprobePath),
		slog.String("font", cfg.FontName),
		slog.String("encode_preset", cfg.EncodePreset),
		slog.Int("encode_threads", cfg.EncodeThreads),
		slog.Int("max_upload_mb", cfg.MaxUploadMB),
		slog.Int("max_concurrent_renders", cfg.MaxConcurrentRenders),
		slog.Bool("publishing", cfg.S3Enabled()),
	)

	// Stale run workspaces from a previous process are swept here.
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := newHTTPServer(newHandler(cfg, deps, logger))
	return serve(ctx, srv, ln, logger)
}

// newHandler wires the generator into the routed, middleware-wrapped handler.
func newHandler(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger) http.Handler {
	opts := []server.HandlerOption{
		server.WithFont(cfg.FontName),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		server.WithMaxConcurrentRenders(cfg.MaxConcurrentRenders),
	}
	if deps.Publisher != nil {
		opts = append(opts, server.WithPublisher(deps.Publisher))
	}

	handlers := server.NewHandlers(deps.Generator, logger, opts...)
	return server.NewRouter(handlers, logger, server.DefaultConfig())
}

func newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  uploadTimeout,
		WriteTimeout: renderTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// serve runs srv on ln until ctx is cancelled, then lets in-flight renders
// finish for up to drainTimeout.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("accepting render requests", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested, draining renders")
	case err := <-errCh:
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain renders: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
