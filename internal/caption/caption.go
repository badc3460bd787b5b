// Package caption builds the timed caption track of a lyric video and renders
// it into subtitle documents the compositor can burn into the frames.
package caption

import (
	"github.com/maauso/lyricvid/internal/lyrics"
	"github.com/maauso/lyricvid/internal/timing"
)

// Caption is one lyric line shown during [Start, End) seconds of the track.
type Caption struct {
	// Index is the 1-based position of the caption in the track.
	Index int     `json:"index"`
	Start float64 `json:"start_sec"`
	End   float64 `json:"end_sec"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (c Caption) Duration() float64 {
	return c.End - c.Start
}

// Build pairs lines with their intervals. Lines past the last interval are
// dropped; that happens only when the allocator ran out of track.
func Build(lines []lyrics.Line, intervals []timing.Interval) []Caption {
	n := min(len(lines), len(intervals))
	captions := make([]Caption, n)
	for i := range n {
		captions[i] = Caption{
			Index: i + 1,
			Start: intervals[i].Start,
			End:   intervals[i].End,
			Text:  string(lines[i]),
		}
	}
	return captions
}

// Track segments text and allocates it across duration in one step.
func Track(text string, duration, secondsPerLine float64) []Caption {
	lines := lyrics.Segment(text)
	return Build(lines, timing.Allocate(len(lines), duration, secondsPerLine))
}
