// Package lyrics splits pasted lyric text into the ordered lines shown as captions.
package lyrics

import "strings"

// Line is one non-empty, trimmed line of lyric text.
type Line string

// Segment splits raw lyric text on line breaks, trims every line and drops
// the lines that are blank after trimming. Order is preserved.
// Both "\n" and "\r\n" (and lone "\r") are treated as line breaks.
func Segment(text string) []Line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := make([]Line, 0, strings.Count(text, "\n")+1)
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lines = append(lines, Line(trimmed))
	}
	return lines
}

// Join renders lines back into newline separated text.
func Join(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

// Strings converts lines to plain strings.
func Strings(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}
