// Package timing distributes lyric lines across an audio track.
//
// Every line gets the same slot length: the requested seconds per line, or
// less when the track is too short for all lines at that length. Lines are
// compressed uniformly rather than cut off at the end of the track.
package timing

import "math"

// snapEpsilon is the distance (seconds) under which an interval end is
// treated as equal to the track duration.
const snapEpsilon = 1e-9

// Interval is a half-open caption slot [Start, End) in seconds.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// EffectivePerLine returns min(requested, duration / max(1, lineCount)).
func EffectivePerLine(lineCount int, duration, requested float64) float64 {
	return math.Min(requested, duration/float64(max(1, lineCount)))
}

// Allocate returns contiguous, non-overlapping intervals covering the start
// of [0, duration], one per line. It stops early once the track is exhausted,
// so the result never holds more than lineCount intervals and never ends past
// duration. A zero duration yields a single (0, 0) interval.
func Allocate(lineCount int, duration, requested float64) []Interval {
	if lineCount <= 0 {
		return []Interval{}
	}

	per := EffectivePerLine(lineCount, duration, requested)
	intervals := make([]Interval, 0, lineCount)

	current := 0.0
	for range lineCount {
		end := current + per
		if end > duration || duration-end < snapEpsilon {
			end = duration
		}
		intervals = append(intervals, Interval{Start: current, End: end})
		current = end
		if current >= duration {
			break
		}
	}

	return intervals
}
