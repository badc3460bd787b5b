// Package media composes the final lyric video: a solid background, the
// burned-in caption overlay and the original audio, encoded with ffmpeg.
package media

import (
	"context"

	"github.com/maauso/lyricvid/internal/style"
)

// ComposeInput describes one composition. All paths are local files.
type ComposeInput struct {
	// Background is the solid frame color.
	Background style.RGB
	// Width and Height are the frame size in pixels.
	Width  int
	Height int
	// FrameRate is the output frame rate.
	FrameRate int
	// Duration is the output length in seconds (the audio duration).
	Duration float64
	// AudioPath is the source audio track.
	AudioPath string
	// OverlayPath is the rendered caption document burned into the frames.
	OverlayPath string
	// OutputPath is where the encoded video is written.
	OutputPath string
}

// DefaultComposeInput returns an input with the fixed frame parameters set.
func DefaultComposeInput() ComposeInput {
	return ComposeInput{
		Width:     style.Width,
		Height:    style.Height,
		FrameRate: style.FrameRate,
	}
}

// Composer defines the interface for building and encoding the video.
type Composer interface {
	// Compose overlays the caption document on a solid background clip,
	// attaches the audio and encodes the result to in.OutputPath.
	// It blocks until encoding finishes.
	Compose(ctx context.Context, in ComposeInput) error
}
