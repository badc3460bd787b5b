// Package cli implements the lyricvid command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand returns the lyricvid command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lyricvid",
		Short: "Lyric video generator",
		Long: `Lyricvid turns an audio track and its lyrics into a video with one
caption per lyric line, evenly timed across the track on a solid background.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newRenderCommand())
	root.AddCommand(newTimingCommand())

	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCommand().Execute()
}
