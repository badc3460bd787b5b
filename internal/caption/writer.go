package caption

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/maauso/lyricvid/internal/style"
)

// Renderer turns a caption track into a drawable overlay document.
type Renderer interface {
	// Render writes the captions styled with st to w.
	Render(w io.Writer, captions []Caption, st style.Config) error
	// Ext is the file extension of the produced document, including the dot.
	Ext() string
}

// ASSRenderer renders captions as an Advanced SubStation Alpha script sized
// to the output frame. Text is centred on both axes and wrapped to the frame
// width.
type ASSRenderer struct {
	Title string
	// MarginH is the left/right margin in pixels used for wrapping.
	MarginH int
}

// NewASSRenderer returns an ASSRenderer with the default title and margins.
func NewASSRenderer() *ASSRenderer {
	return &ASSRenderer{
		Title:   "Lyric Video",
		MarginH: 40,
	}
}

// Ext implements Renderer.
func (r *ASSRenderer) Ext() string { return ".ass" }

// Render implements Renderer.
func (r *ASSRenderer) Render(w io.Writer, captions []Caption, st style.Config) error {
	bw := bufio.NewWriter(w)

	// script info section
	fmt.Fprintf(bw, "[Script Info]\n")
	fmt.Fprintf(bw, "Title: %s\n", r.Title)
	fmt.Fprintf(bw, "ScriptType: v4.00+\n")
	fmt.Fprintf(bw, "WrapStyle: 0\n")
	fmt.Fprintf(bw, "ScaledBorderAndShadow: yes\n")
	fmt.Fprintf(bw, "PlayResX: %d\n", style.Width)
	fmt.Fprintf(bw, "PlayResY: %d\n\n", style.Height)

	// v4+ styles section; alignment 5 is middle-centre, border style 1 with
	// no outline or shadow keeps the plain look of a solid background
	fmt.Fprintf(bw, "[V4+ Styles]\n")
	fmt.Fprintf(bw, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Default,%s,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,1,0,0,5,%d,%d,0,1\n\n",
		st.Font, st.FontSize,
		st.FontColor.ASS(), st.FontColor.ASS(),
		st.Background.ASS(), st.Background.ASS(),
		r.MarginH, r.MarginH)

	// events section
	fmt.Fprintf(bw, "[Events]\n")
	fmt.Fprintf(bw, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range captions {
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTime(c.Start),
			formatASSTime(c.End),
			escapeASSText(c.Text))
	}

	return bw.Flush()
}

// WriteSRT writes captions as a SubRip document.
func WriteSRT(w io.Writer, captions []Caption) error {
	bw := bufio.NewWriter(w)
	for i, c := range captions {
		fmt.Fprintf(bw, "%d\n", i+1)
		fmt.Fprintf(bw, "%s --> %s\n", formatSRTTime(c.Start), formatSRTTime(c.End))
		bw.WriteString(c.Text)
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}

// formatASSTime formats seconds as h:mm:ss.cc.
func formatASSTime(sec float64) string {
	cs := int64(math.Round(sec * 100))
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

// formatSRTTime formats seconds as hh:mm:ss,mmm.
func formatSRTTime(sec float64) string {
	ms := int64(math.Round(sec * 1000))
	h := ms / 3600000
	m := (ms / 60000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// A word joiner after each backslash keeps libass from reading lyric text
// such as `C:\New` as an override sequence.
var assEscaper = strings.NewReplacer(
	`\`, "\\\u2060",
	"{", `\{`,
	"}", `\}`,
	"\r\n", `\N`,
	"\n", `\N`,
)

func escapeASSText(text string) string {
	return assEscaper.Replace(text)
}

var _ Renderer = (*ASSRenderer)(nil)
