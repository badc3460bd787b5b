// Package server provides the HTTP server for the lyric video generator.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/maauso/lyricvid/internal/caption"

// GenerateVideoForm is the multipart form of POST /videos, minus the audio
// file part. Empty numeric and color fields fall back to the style defaults.
// Numeric bounds are checked by style.Config.Validate.
type GenerateVideoForm struct {
	// Lyrics is the pasted lyric text, one caption per non-blank line.
	Lyrics string
	// BgColor is the background color as #RRGGBB or #RGB.
	BgColor string `validate:"hexcolor"`
	// FontColor is the caption color as #RRGGBB or #RGB.
	FontColor string `validate:"hexcolor"`
	// FontSize is the caption font size in points.
	FontSize int
	// SecondsPerLine is the requested display time per lyric line.
	SecondsPerLine float64
	// Publish uploads the video to S3 and returns its URL instead of the bytes.
	Publish bool
}

// PreviewRequest is the HTTP request body for POST /captions/preview.
type PreviewRequest struct {
	// Lyrics is the pasted lyric text.
	Lyrics string `json:"lyrics" validate:"required"`
	// DurationSec is the audio length to allocate across.
	DurationSec float64 `json:"duration_sec" validate:"gte=0"`
	// SecondsPerLine is the requested display time per line; 0 means the default.
	SecondsPerLine float64 `json:"seconds_per_line"`
}

// PreviewResponse is the HTTP response of a caption timing preview.
type PreviewResponse struct {
	// EffectiveSecondsPerLine is the time each caption actually gets.
	EffectiveSecondsPerLine float64 `json:"effective_seconds_per_line"`
	// Captions is the timed caption track.
	Captions []caption.Caption `json:"captions"`
}

// PublishResponse is the HTTP response of a published video.
type PublishResponse struct {
	// RunID identifies the generation run.
	RunID string `json:"run_id"`
	// VideoURL is the S3 URL of the output video.
	VideoURL string `json:"video_url"`
	// DurationSec is the video length.
	DurationSec float64 `json:"duration_sec"`
	// EffectiveSecondsPerLine is the time each caption was given.
	EffectiveSecondsPerLine float64 `json:"effective_seconds_per_line"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
