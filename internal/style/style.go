// Package style holds the visual parameters of one lyric video render.
package style

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Render constants shared by the caption renderer and the compositor.
const (
	Width        = 1280
	Height       = 720
	FrameRate    = 24
	VideoCodec   = "libx264"
	AudioCodec   = "aac"
	DefaultFont  = "Arial"
	DefaultBg    = "#222244"
	DefaultColor = "#FFFFFF"
)

// Bounds and defaults of the user-adjustable parameters.
const (
	MinFontSize           = 20
	MaxFontSize           = 80
	DefaultFontSize       = 40
	MinSecondsPerLine     = 2
	MaxSecondsPerLine     = 10
	DefaultSecondsPerLine = 4
)

// ErrInvalidColor is returned when a color is not #RGB or #RRGGBB.
var ErrInvalidColor = errors.New("invalid color: expected #RRGGBB or #RGB")

// ErrOutOfRange is returned when a font size or seconds-per-line value is
// outside its bounds.
var ErrOutOfRange = errors.New("value out of range")

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// ParseHexColor parses "#RRGGBB" or "#RGB" (case-insensitive).
func ParseHexColor(s string) (RGB, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseHexColor is like ParseHexColor but panics on error.
func MustParseHexColor(s string) RGB {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex returns the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// FFmpeg returns the color in ffmpeg's 0xRRGGBB notation.
func (c RGB) FFmpeg() string {
	return fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B)
}

// ASS returns the color in ASS &HAABBGGRR notation, fully opaque.
func (c RGB) ASS() string {
	return fmt.Sprintf("&H00%02X%02X%02X", c.B, c.G, c.R)
}

// Config is the style of one render. It is not modified once a run starts.
type Config struct {
	Background     RGB
	FontColor      RGB
	FontSize       int
	SecondsPerLine float64
	Font           string `validate:"required"`
}

// Default returns the defaults of the generator form.
func Default() Config {
	return Config{
		Background:     MustParseHexColor(DefaultBg),
		FontColor:      MustParseHexColor(DefaultColor),
		FontSize:       DefaultFontSize,
		SecondsPerLine: DefaultSecondsPerLine,
		Font:           DefaultFont,
	}
}

var (
	validate = validator.New()

	fontSizeRule       = fmt.Sprintf("min=%d,max=%d", MinFontSize, MaxFontSize)
	secondsPerLineRule = fmt.Sprintf("min=%d,max=%d", MinSecondsPerLine, MaxSecondsPerLine)
)

// Validate checks the font size and seconds-per-line bounds and that a font
// is set.
func (c Config) Validate() error {
	if validate.Var(c.FontSize, fontSizeRule) != nil {
		return fmt.Errorf("style: %w: font size must be between %d and %d, got %d",
			ErrOutOfRange, MinFontSize, MaxFontSize, c.FontSize)
	}
	if err := ValidateSecondsPerLine(c.SecondsPerLine); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("style: %w", err)
	}
	return nil
}

// ValidateSecondsPerLine checks a requested seconds-per-line value.
func ValidateSecondsPerLine(v float64) error {
	if math.IsNaN(v) || validate.Var(v, secondsPerLineRule) != nil {
		return fmt.Errorf("%w: seconds per line must be between %d and %d, got %g",
			ErrOutOfRange, MinSecondsPerLine, MaxSecondsPerLine, v)
	}
	return nil
}
