package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/lyricvid/internal/bootstrap"
	"github.com/maauso/lyricvid/internal/caption"
	"github.com/maauso/lyricvid/internal/config"
	"github.com/maauso/lyricvid/internal/pipeline"
	"github.com/maauso/lyricvid/internal/style"
)

func newRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a lyric video from an audio file and a lyric sheet",
		Long: `Render a 1280x720 lyric video: the audio track over a solid background
with one centred caption per non-blank lyric line.

Each line is shown for --seconds-per-line seconds, compressed evenly when the
track is too short to fit them all.

Examples:
  lyricvid render --audio song.mp3 --lyrics song.txt --out song.mp4
  lyricvid render --audio song.wav --lyrics song.txt --out song.mp4 --bg-color "#000" --font-size 60 --srt song.srt`,
		Args: cobra.NoArgs,
		RunE: runRender,
	}

	cmd.Flags().String("audio", "", "Audio file (mp3, wav, m4a, ...)")
	cmd.Flags().String("lyrics", "", "Lyrics text file, one line per caption (- for stdin)")
	cmd.Flags().StringP("out", "o", "", "Output mp4 path")
	cmd.Flags().String("bg-color", style.DefaultBg, "Background color (#RRGGBB or #RGB)")
	cmd.Flags().Int("font-size", style.DefaultFontSize, "Caption font size")
	cmd.Flags().String("font-color", style.DefaultColor, "Caption color (#RRGGBB or #RGB)")
	cmd.Flags().Float64("seconds-per-line", style.DefaultSecondsPerLine, "Requested seconds per lyric line")
	cmd.Flags().String("font", "", "Caption font family (default FONT_NAME)")
	cmd.Flags().String("srt", "", "Also write the caption timing as SRT to this path")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("lyrics")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	audioPath, _ := cmd.Flags().GetString("audio")
	lyricsPath, _ := cmd.Flags().GetString("lyrics")
	outPath, _ := cmd.Flags().GetString("out")
	srtPath, _ := cmd.Flags().GetString("srt")
	verbose, _ := cmd.Flags().GetBool("verbose")

	st, err := styleFromFlags(cmd)
	if err != nil {
		return err
	}

	text, err := readLyrics(cmd.InOrStdin(), lyricsPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if st.Font == "" {
		st.Font = cfg.FontName
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	audioFile, err := os.Open(audioPath) // #nosec G304 - user-supplied input file
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = audioFile.Close() }()

	req := pipeline.Request{
		Audio:     audioFile,
		AudioName: filepath.Base(audioPath),
		Lyrics:    text,
		Style:     st,
	}

	res, err := deps.Generator.Generate(ctx, req, &pipeline.FilePresenter{Dest: outPath})
	if err != nil {
		return describe(err)
	}

	if srtPath != "" {
		if err := writeSRTFile(srtPath, res.Captions); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d captions, %.2fs per line, %.2fs, %d bytes\n",
		outPath, len(res.Captions), res.EffectivePerLine, res.Duration, res.Size)
	return nil
}

// styleFromFlags builds and validates the render style.
func styleFromFlags(cmd *cobra.Command) (style.Config, error) {
	bgColor, _ := cmd.Flags().GetString("bg-color")
	fontColor, _ := cmd.Flags().GetString("font-color")
	fontSize, _ := cmd.Flags().GetInt("font-size")
	perLine, _ := cmd.Flags().GetFloat64("seconds-per-line")
	font, _ := cmd.Flags().GetString("font")

	bg, err := style.ParseHexColor(bgColor)
	if err != nil {
		return style.Config{}, fmt.Errorf("--bg-color: %w", err)
	}
	fg, err := style.ParseHexColor(fontColor)
	if err != nil {
		return style.Config{}, fmt.Errorf("--font-color: %w", err)
	}

	st := style.Config{
		Background:     bg,
		FontColor:      fg,
		FontSize:       fontSize,
		SecondsPerLine: perLine,
		Font:           font,
	}

	// Font is resolved from the configuration later.
	resolved := st
	resolved.Font = style.DefaultFont
	if err := resolved.Validate(); err != nil {
		return style.Config{}, err
	}
	return st, nil
}

func writeSRTFile(path string, captions []caption.Caption) error {
	f, err := os.Create(path) // #nosec G304 - user-supplied output file
	if err != nil {
		return fmt.Errorf("create SRT file: %w", err)
	}
	if err := caption.WriteSRT(f, captions); err != nil {
		_ = f.Close()
		return fmt.Errorf("write SRT file: %w", err)
	}
	return f.Close()
}

// describe turns a pipeline failure into a message for the terminal.
func describe(err error) error {
	switch pipeline.KindOf(err) {
	case pipeline.KindValidation:
		return fmt.Errorf("please provide an audio file and lyrics: %w", err)
	case pipeline.KindDecode:
		return fmt.Errorf("could not read the audio file: %w", err)
	case pipeline.KindEncode:
		return fmt.Errorf("video encoding failed: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted: %w", err)
	}
	return err
}
