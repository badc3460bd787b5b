package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/lyricvid/internal/caption"
	"github.com/maauso/lyricvid/internal/lyrics"
	"github.com/maauso/lyricvid/internal/pipeline"
	"github.com/maauso/lyricvid/internal/storage"
	"github.com/maauso/lyricvid/internal/style"
	"github.com/maauso/lyricvid/internal/timing"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
	publishPrefix         = "videos"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// indexPage is the data of the generator form.
type indexPage struct {
	BgColor           string
	FontColor         string
	FontSize          int
	MinFontSize       int
	MaxFontSize       int
	SecondsPerLine    float64
	MinSecondsPerLine float64
	MaxSecondsPerLine float64
	PublishEnabled    bool
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator *pipeline.Generator
	publisher storage.Storage
	validator *validator.Validate
	logger    *slog.Logger
	slots     chan struct{}
	maxUpload int64
	font      string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithPublisher enables publish=true uploads through store.
func WithPublisher(store storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.publisher = store
	}
}

// WithMaxConcurrentRenders sets how many generations run at once.
func WithMaxConcurrentRenders(n int) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.slots = make(chan struct{}, n)
		}
	}
}

// WithMaxUploadBytes caps the size of a POST /videos body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithFont sets the caption font family.
func WithFont(name string) HandlerOption {
	return func(h *Handlers) {
		if name != "" {
			h.font = name
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(generator *pipeline.Generator, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		generator: generator,
		validator: validator.New(),
		logger:    logger,
		slots:     make(chan struct{}, 1),
		maxUpload: defaultMaxUploadBytes,
		font:      style.DefaultFont,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Index handles GET / requests with the generator form.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	defaults := style.Default()
	page := indexPage{
		BgColor:           defaults.Background.Hex(),
		FontColor:         defaults.FontColor.Hex(),
		FontSize:          defaults.FontSize,
		MinFontSize:       style.MinFontSize,
		MaxFontSize:       style.MaxFontSize,
		SecondsPerLine:    defaults.SecondsPerLine,
		MinSecondsPerLine: style.MinSecondsPerLine,
		MaxSecondsPerLine: style.MaxSecondsPerLine,
		PublishEnabled:    h.publisher != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		h.logger.Error("failed to render index page", slog.String("error", err.Error()))
	}
}

// GenerateVideo handles POST /videos requests. It runs one generation
// synchronously and responds with the mp4, or with its URL when publishing.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Warn("failed to parse multipart form", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form, err := parseGenerateForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	st, err := h.styleFrom(form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if form.Publish && h.publisher == nil {
		writeError(w, http.StatusBadRequest, "publishing is not configured", "PUBLISH_UNAVAILABLE")
		return
	}

	req := pipeline.Request{
		Lyrics: form.Lyrics,
		Style:  st,
	}

	file, header, err := r.FormFile("audio")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Left nil; Collect reports the missing input.
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid audio upload", "INVALID_FORM")
		return
	default:
		defer func() { _ = file.Close() }()
		req.Audio = file
		req.AudioName = header.Filename
	}

	// Reject incomplete requests before waiting for a render slot.
	if err := pipeline.Collect(req); err != nil {
		h.writePipelineError(w, err)
		return
	}

	release, ok := h.acquire(r)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "too many videos are being generated, try again later", "BUSY")
		return
	}
	defer release()

	if form.Publish {
		h.publish(w, r, req)
		return
	}

	stream := &streamPresenter{w: w}
	if _, err := h.generator.Generate(r.Context(), req, stream); err != nil {
		if stream.started {
			// Headers are gone; the client sees a truncated body.
			h.logger.Error("video stream interrupted", slog.String("error", err.Error()))
			return
		}
		h.writePipelineError(w, err)
	}
}

func (h *Handlers) publish(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	presenter := pipeline.NewPublishPresenter(h.publisher, publishPrefix)
	res, err := h.generator.Generate(r.Context(), req, presenter)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PublishResponse{
		RunID:                   res.RunID,
		VideoURL:                presenter.URL(),
		DurationSec:             res.Duration,
		EffectiveSecondsPerLine: res.EffectivePerLine,
	})
}

// PreviewCaptions handles POST /captions/preview requests. It computes the
// caption timing for a known duration without any audio or rendering.
func (h *Handlers) PreviewCaptions(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	lines := lyrics.Segment(req.Lyrics)
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, pipeline.ErrMissingLyrics.Error(), "VALIDATION_ERROR")
		return
	}

	perLine := req.SecondsPerLine
	if perLine == 0 {
		perLine = style.DefaultSecondsPerLine
	}
	if err := style.ValidateSecondsPerLine(perLine); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	captions := caption.Build(lines, timing.Allocate(len(lines), req.DurationSec, perLine))

	if r.URL.Query().Get("format") == "srt" {
		w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := caption.WriteSRT(w, captions); err != nil {
			h.logger.Error("failed to write SRT response", slog.String("error", err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, PreviewResponse{
		EffectiveSecondsPerLine: timing.EffectivePerLine(len(lines), req.DurationSec, perLine),
		Captions:                captions,
	})
}

// acquire waits for a render slot until the request context ends.
func (h *Handlers) acquire(r *http.Request) (func(), bool) {
	select {
	case h.slots <- struct{}{}:
		return func() { <-h.slots }, true
	case <-r.Context().Done():
		return nil, false
	}
}

// styleFrom converts a form into a render style. Bounds are checked later by
// pipeline.Collect.
func (h *Handlers) styleFrom(form GenerateVideoForm) (style.Config, error) {
	bg, err := style.ParseHexColor(form.BgColor)
	if err != nil {
		return style.Config{}, err
	}
	fg, err := style.ParseHexColor(form.FontColor)
	if err != nil {
		return style.Config{}, err
	}
	return style.Config{
		Background:     bg,
		FontColor:      fg,
		FontSize:       form.FontSize,
		SecondsPerLine: form.SecondsPerLine,
		Font:           h.font,
	}, nil
}

// writePipelineError maps a failed generation to an HTTP error by kind.
func (h *Handlers) writePipelineError(w http.ResponseWriter, err error) {
	var pErr *pipeline.Error
	switch {
	case errors.As(err, &pErr) && pErr.Kind == pipeline.KindValidation:
		writeError(w, http.StatusBadRequest, pErr.Err.Error(), "VALIDATION_ERROR")
	case errors.As(err, &pErr) && pErr.Kind == pipeline.KindDecode:
		writeError(w, http.StatusUnprocessableEntity, "the audio file could not be decoded", "DECODE_FAILED")
	case errors.As(err, &pErr) && pErr.Kind == pipeline.KindEncode:
		writeError(w, http.StatusInternalServerError, "video encoding failed", "ENCODE_FAILED")
	case errors.Is(err, storage.ErrS3NotConfigured):
		writeError(w, http.StatusBadRequest, "publishing is not configured", "PUBLISH_UNAVAILABLE")
	default:
		h.logger.Error("video generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// parseGenerateForm reads the text fields of POST /videos, applying defaults
// to the empty ones.
func parseGenerateForm(r *http.Request) (GenerateVideoForm, error) {
	form := GenerateVideoForm{
		Lyrics:         r.FormValue("lyrics"),
		BgColor:        valueOr(r.FormValue("bg_color"), style.DefaultBg),
		FontColor:      valueOr(r.FormValue("font_color"), style.DefaultColor),
		FontSize:       style.DefaultFontSize,
		SecondsPerLine: style.DefaultSecondsPerLine,
	}

	if v := strings.TrimSpace(r.FormValue("font_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return form, fmt.Errorf("font_size must be an integer: %q", v)
		}
		form.FontSize = n
	}

	if v := strings.TrimSpace(r.FormValue("seconds_per_line")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return form, fmt.Errorf("seconds_per_line must be a number: %q", v)
		}
		form.SecondsPerLine = f
	}

	if v := r.FormValue("publish"); v != "" {
		publish, err := strconv.ParseBool(v)
		if err != nil && v != "on" {
			return form, fmt.Errorf("publish must be a boolean: %q", v)
		}
		form.Publish = publish || v == "on"
	}

	return form, nil
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// streamPresenter writes the video as the HTTP response body.
type streamPresenter struct {
	w       http.ResponseWriter
	started bool
}

// Present implements pipeline.Presenter.
func (p *streamPresenter) Present(_ context.Context, video *pipeline.VideoOutput) error {
	src, err := video.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	header := p.w.Header()
	header.Set("Content-Type", "video/mp4")
	header.Set("Content-Length", strconv.FormatInt(video.Size, 10))
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.mp4"`, video.RunID))
	header.Set("X-Run-ID", video.RunID)
	header.Set("X-Effective-Seconds-Per-Line", strconv.FormatFloat(video.EffectivePerLine, 'f', 3, 64))

	p.w.WriteHeader(http.StatusOK)
	p.started = true

	if _, err := io.Copy(p.w, src); err != nil {
		return fmt.Errorf("stream video: %w", err)
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// Verify interface implementation at compile time.
var _ pipeline.Presenter = (*streamPresenter)(nil)
