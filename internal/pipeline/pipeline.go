// Package pipeline runs one lyric video generation: it collects the inputs,
// segments and times the lyrics, renders the caption overlay, composes and
// encodes the video and hands it to a Presenter.
//
// A run owns a private workspace that is removed on every exit path, after
// the presenter has returned. Runs share no mutable state, so a Generator may
// serve concurrent requests.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/maauso/lyricvid/internal/audio"
	"github.com/maauso/lyricvid/internal/caption"
	"github.com/maauso/lyricvid/internal/lyrics"
	"github.com/maauso/lyricvid/internal/media"
	"github.com/maauso/lyricvid/internal/pipeline/runid"
	"github.com/maauso/lyricvid/internal/storage"
	"github.com/maauso/lyricvid/internal/style"
	"github.com/maauso/lyricvid/internal/timing"
)

// Workspace file names.
const (
	videoFile   = "video.mp4"
	overlayBase = "captions"
)

// Request contains the inputs of one generation.
type Request struct {
	// Audio is the uploaded audio stream; nil when no file was supplied.
	Audio io.Reader
	// AudioName is the original filename, used only for its extension.
	AudioName string
	// Lyrics is the raw pasted lyric text.
	Lyrics string
	// Style is the visual configuration of the render.
	Style style.Config
}

// VideoOutput is the encoded video of a run. It lives in the run's
// workspace and is valid only during Presenter.Present.
type VideoOutput struct {
	RunID string
	// Path is the local path of the encoded mp4.
	Path string
	// Size is the encoded size in bytes.
	Size int64
	// Duration is the audio (and video) length in seconds.
	Duration float64
	// EffectivePerLine is the seconds each caption was given.
	EffectivePerLine float64
	Captions         []caption.Caption
}

// Open opens the encoded video for reading.
func (v *VideoOutput) Open() (io.ReadCloser, error) {
	f, err := os.Open(v.Path) // #nosec G304 - path is inside the run's workspace
	if err != nil {
		return nil, fmt.Errorf("open video output: %w", err)
	}
	return f, nil
}

// Presenter delivers a finished video to the user.
type Presenter interface {
	Present(ctx context.Context, video *VideoOutput) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, video *VideoOutput) error

// Present implements Presenter.
func (f PresenterFunc) Present(ctx context.Context, video *VideoOutput) error {
	return f(ctx, video)
}

// Result summarises a delivered run.
type Result struct {
	RunID            string
	Duration         float64
	EffectivePerLine float64
	Captions         []caption.Caption
	Size             int64
	Elapsed          time.Duration
}

// Generator executes generation runs.
type Generator struct {
	store    storage.Storage
	prober   audio.Prober
	composer media.Composer
	renderer caption.Renderer
	logger   *slog.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(
	store storage.Storage,
	prober audio.Prober,
	composer media.Composer,
	logger *slog.Logger,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		store:    store,
		prober:   prober,
		composer: composer,
		renderer: caption.NewASSRenderer(),
		logger:   logger,
	}
}

// Collect checks that a request carries both audio and lyrics and a style in
// bounds. It performs no format checks; unreadable audio surfaces later as a
// decode error.
func Collect(req Request) error {
	if req.Audio == nil {
		return validationError("collect", ErrMissingAudio)
	}
	if strings.TrimSpace(req.Lyrics) == "" {
		return validationError("collect", ErrMissingLyrics)
	}
	if err := req.Style.Validate(); err != nil {
		return validationError("collect", err)
	}
	return nil
}

// Generate runs the whole pipeline for req and hands the encoded video to
// presenter. Any stage failure aborts the run; the returned error is a
// *Error for validation, decode and encode failures. Temporary files are
// removed before Generate returns, whatever the outcome.
func (g *Generator) Generate(ctx context.Context, req Request, presenter Presenter) (*Result, error) {
	started := time.Now()
	runID := runid.Generate()
	logger := g.logger.With(slog.String("run_id", runID))

	if err := Collect(req); err != nil {
		logger.Warn("generation rejected", slog.String("error", err.Error()))
		return nil, err
	}

	lines := lyrics.Segment(req.Lyrics)
	if len(lines) == 0 {
		return nil, validationError("segment", ErrMissingLyrics)
	}

	ws, err := g.store.NewWorkspace(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}
	defer g.release(logger, ws)

	asset, err := g.loadAudio(ctx, ws, req)
	if err != nil {
		return nil, err
	}

	logger.Info("audio decoded",
		slog.Int64("bytes", asset.Size),
		slog.Float64("duration_sec", asset.Duration),
		slog.Int("lines", len(lines)),
	)

	intervals := timing.Allocate(len(lines), asset.Duration, req.Style.SecondsPerLine)
	captions := caption.Build(lines, intervals)
	perLine := timing.EffectivePerLine(len(lines), asset.Duration, req.Style.SecondsPerLine)

	if len(captions) < len(lines) {
		logger.Info("track exhausted before all lines",
			slog.Int("captions", len(captions)),
			slog.Int("lines", len(lines)),
		)
	}

	overlayPath, err := g.renderOverlay(ws, captions, req.Style)
	if err != nil {
		return nil, err
	}

	videoPath, err := ws.Path(videoFile)
	if err != nil {
		return nil, encodeError("compose", err)
	}

	in := media.DefaultComposeInput()
	in.Background = req.Style.Background
	in.Duration = asset.Duration
	in.AudioPath = asset.Path
	in.OverlayPath = overlayPath
	in.OutputPath = videoPath

	encodeStart := time.Now()
	if err := g.composer.Compose(ctx, in); err != nil {
		logger.Error("encoding failed", slog.String("error", err.Error()))
		return nil, encodeError("compose", err)
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, encodeError("compose", fmt.Errorf("stat encoded video: %w", err))
	}

	logger.Info("video encoded",
		slog.Int64("bytes", info.Size()),
		slog.Duration("encode_time", time.Since(encodeStart)),
	)

	video := &VideoOutput{
		RunID:            runID,
		Path:             videoPath,
		Size:             info.Size(),
		Duration:         asset.Duration,
		EffectivePerLine: perLine,
		Captions:         captions,
	}

	if err := presenter.Present(ctx, video); err != nil {
		logger.Error("presentation failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("present video: %w", err)
	}

	elapsed := time.Since(started)
	logger.Info("generation completed",
		slog.Int("captions", len(captions)),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		RunID:            runID,
		Duration:         asset.Duration,
		EffectivePerLine: perLine,
		Captions:         captions,
		Size:             info.Size(),
		Elapsed:          elapsed,
	}, nil
}

// loadAudio stores the upload in ws and measures it.
func (g *Generator) loadAudio(ctx context.Context, ws *storage.Workspace, req Request) (*audio.Asset, error) {
	path, size, err := ws.SaveTemp(ctx, "audio"+audio.Suffix(req.AudioName), req.Audio)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	if size == 0 {
		return nil, validationError("collect", ErrMissingAudio)
	}

	duration, err := g.prober.Duration(ctx, path)
	if err != nil {
		return nil, decodeError("decode", err)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, decodeError("decode", fmt.Errorf("%w: %v", ErrZeroDuration, duration))
	}

	return &audio.Asset{
		Path:     path,
		Name:     req.AudioName,
		Size:     size,
		Duration: duration,
	}, nil
}

// renderOverlay writes the caption document into ws and returns its path.
func (g *Generator) renderOverlay(ws *storage.Workspace, captions []caption.Caption, st style.Config) (string, error) {
	f, err := ws.Create(overlayBase + g.renderer.Ext())
	if err != nil {
		return "", encodeError("render", err)
	}

	if err := g.renderer.Render(f, captions, st); err != nil {
		_ = f.Close()
		return "", encodeError("render", err)
	}
	if err := f.Close(); err != nil {
		return "", encodeError("render", err)
	}
	return f.Name(), nil
}

// release removes the run's workspace. Failures are logged only: by the time
// it runs the outcome has already been delivered.
func (g *Generator) release(logger *slog.Logger, ws *storage.Workspace) {
	if err := ws.Close(); err != nil {
		cleanupErr := &Error{Kind: KindCleanup, Stage: "cleanup", Err: err}
		logger.Warn("workspace cleanup failed",
			slog.String("dir", ws.Dir()),
			slog.String("error", cleanupErr.Error()),
		)
	}
}
