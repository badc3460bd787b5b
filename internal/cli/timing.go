package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/lyricvid/internal/caption"
	"github.com/maauso/lyricvid/internal/lyrics"
	"github.com/maauso/lyricvid/internal/pipeline"
	"github.com/maauso/lyricvid/internal/style"
)

// ErrInvalidDuration is returned for a negative --duration.
var ErrInvalidDuration = errors.New("duration must not be negative")

func newTimingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timing",
		Short: "Print the caption timing of a lyric sheet as SRT",
		Long: `Compute how the lyric lines are spread over a track of the given
duration, without any audio or rendering, and print the result as SubRip.

Examples:
  lyricvid timing --lyrics song.txt --duration 183.5
  cat song.txt | lyricvid timing --lyrics - --duration 60 --seconds-per-line 3`,
		Args: cobra.NoArgs,
		RunE: runTiming,
	}

	cmd.Flags().String("lyrics", "", "Lyrics text file, one line per caption (- for stdin)")
	cmd.Flags().Float64("duration", 0, "Track duration in seconds")
	cmd.Flags().Float64("seconds-per-line", style.DefaultSecondsPerLine, "Requested seconds per lyric line")
	_ = cmd.MarkFlagRequired("lyrics")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

func runTiming(cmd *cobra.Command, _ []string) error {
	lyricsPath, _ := cmd.Flags().GetString("lyrics")
	duration, _ := cmd.Flags().GetFloat64("duration")
	perLine, _ := cmd.Flags().GetFloat64("seconds-per-line")

	if duration < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidDuration, duration)
	}
	if err := style.ValidateSecondsPerLine(perLine); err != nil {
		return fmt.Errorf("--seconds-per-line: %w", err)
	}

	text, err := readLyrics(cmd.InOrStdin(), lyricsPath)
	if err != nil {
		return err
	}
	if len(lyrics.Segment(text)) == 0 {
		return pipeline.ErrMissingLyrics
	}

	return caption.WriteSRT(cmd.OutOrStdout(), caption.Track(text, duration, perLine))
}

// readLyrics reads the lyric sheet from path, or from stdin for "-".
func readLyrics(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read lyrics from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - user-supplied input file
	if err != nil {
		return "", fmt.Errorf("read lyrics: %w", err)
	}
	return string(data), nil
}
