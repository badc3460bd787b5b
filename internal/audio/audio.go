// Package audio describes the uploaded audio track of a render and how its
// duration is measured.
package audio

import (
	"context"
	"path/filepath"
	"strings"
)

// Asset is the audio track of one render, stored in the run's workspace.
type Asset struct {
	// Path is the on-disk location of the audio bytes.
	Path string
	// Name is the original filename supplied by the user, if any.
	Name string
	// Size is the number of bytes stored.
	Size int64
	// Duration is the decoded track length in seconds.
	Duration float64
}

// Prober measures the duration of an audio file.
type Prober interface {
	// Duration returns the playable length of the file at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// knownExts are the container extensions the upload form advertises.
var knownExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".flac": true,
}

// Suffix returns the file suffix used when storing an upload named name.
// Unknown or missing extensions fall back to ".audio"; ffprobe sniffs the
// container from content either way.
func Suffix(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if knownExts[ext] {
		return ext
	}
	return ".audio"
}
