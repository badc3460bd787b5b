package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/maauso/lyricvid/internal/style"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidFrameRate is returned when the frame rate is not positive.
	ErrInvalidFrameRate = errors.New("invalid frame rate: must be positive")
	// ErrMissingPath is returned when an input or output path is empty.
	ErrMissingPath = errors.New("missing input or output path")
)

// FFmpegComposer implements Composer using the ffmpeg CLI. The filter graph
// is built with ffmpeg-go; execution goes through exec.CommandContext so
// callers can cancel long encodes.
type FFmpegComposer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// threads is the encoder thread count.
	threads int
	// preset is the libx264 speed preset.
	preset string
}

// ComposerOption is a function that configures an FFmpegComposer.
type ComposerOption func(*FFmpegComposer)

// WithThreads sets the encoder thread count. Non-positive values are ignored.
func WithThreads(n int) ComposerOption {
	return func(c *FFmpegComposer) {
		if n > 0 {
			c.threads = n
		}
	}
}

// WithPreset sets the libx264 preset (e.g. "ultrafast", "medium").
func WithPreset(preset string) ComposerOption {
	return func(c *FFmpegComposer) {
		if preset != "" {
			c.preset = preset
		}
	}
}

// NewFFmpegComposer creates a new FFmpegComposer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegComposer(ffmpegPath string, opts ...ComposerOption) *FFmpegComposer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	c := &FFmpegComposer{
		ffmpegPath: ffmpegPath,
		threads:    2,
		preset:     "medium",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose implements Composer.
func (c *FFmpegComposer) Compose(ctx context.Context, in ComposeInput) error {
	args, err := c.buildArgs(in)
	if err != nil {
		return err
	}
	return c.runFFmpeg(ctx, args)
}

// buildArgs returns the ffmpeg arguments for in:
//
//	input 0: lavfi color source at the frame size and rate
//	input 1: the audio track
//	[0] ass=<overlay> -> video, 1:a -> audio, cut to the audio duration
func (c *FFmpegComposer) buildArgs(in ComposeInput) ([]string, error) {
	if in.Width <= 0 || in.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, in.Width, in.Height)
	}
	if in.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFrameRate, in.FrameRate)
	}
	if in.Duration <= 0 {
		return nil, fmt.Errorf("%w: got %.3f", ErrInvalidDuration, in.Duration)
	}
	if in.AudioPath == "" || in.OverlayPath == "" || in.OutputPath == "" {
		return nil, ErrMissingPath
	}

	background := ffmpeg.Input(
		fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", in.Background.FFmpeg(), in.Width, in.Height, in.FrameRate),
		ffmpeg.KwArgs{"f": "lavfi"},
	)
	track := ffmpeg.Input(in.AudioPath)

	video := background.Filter("ass", ffmpeg.Args{in.OverlayPath})

	out := ffmpeg.Output([]*ffmpeg.Stream{video, track.Audio()}, in.OutputPath, ffmpeg.KwArgs{
		"c:v":      style.VideoCodec,
		"preset":   c.preset,
		"pix_fmt":  "yuv420p",
		"r":        in.FrameRate,
		"c:a":      style.AudioCodec,
		"threads":  c.threads,
		"t":        fmt.Sprintf("%.3f", in.Duration),
		"movflags": "+faststart",
	}).OverWriteOutput()

	return out.GetArgs(), nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (c *FFmpegComposer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Composer = (*FFmpegComposer)(nil)
