package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/lyricvid/internal/media"
	"github.com/maauso/lyricvid/internal/pipeline"
	"github.com/maauso/lyricvid/internal/storage"
)

// mockProber implements audio.Prober for testing.
type mockProber struct {
	mock.Mock
}

func (m *mockProber) Duration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

// mockComposer implements media.Composer for testing.
type mockComposer struct {
	mock.Mock
}

func (m *mockComposer) Compose(ctx context.Context, in media.ComposeInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

// mockPublisher is a LocalStorage whose S3 upload is mocked.
type mockPublisher struct {
	*storage.LocalStorage
	mock.Mock
}

func (m *mockPublisher) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, data)
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	store    *storage.LocalStorage
	prober   *mockProber
	composer *mockComposer
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return &testEnv{
		store:    store,
		prober:   &mockProber{},
		composer: &mockComposer{},
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func (e *testEnv) handlers(opts ...HandlerOption) *Handlers {
	gen := pipeline.NewGenerator(e.store, e.prober, e.composer, e.logger)
	return NewHandlers(gen, e.logger, opts...)
}

// encodes makes the composer mock write a fake mp4.
func (e *testEnv) encodes(content string) {
	e.composer.On("Compose", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(media.ComposeInput)
		_ = os.WriteFile(in.OutputPath, []byte(content), 0600)
	}).Return(nil)
}

// multipartRequest builds a POST /videos request. An empty audio skips the file part.
func multipartRequest(t *testing.T, fields map[string]string, audio string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if audio != "" {
		part, err := mw.CreateFormFile("audio", "song.mp3")
		require.NoError(t, err)
		_, err = part.Write([]byte(audio))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/videos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestEnv(t).handlers()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t)

	t.Run("renders form with defaults", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handlers().Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		body := rec.Body.String()
		assert.Contains(t, body, `action="/videos"`)
		assert.Contains(t, body, `value="#222244"`)
		assert.Contains(t, body, `value="#FFFFFF"`)
		assert.Contains(t, body, `min="20" max="80" value="40"`)
		assert.NotContains(t, body, `name="publish"`)
	})

	t.Run("offers publishing when configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handlers(WithPublisher(env.store)).Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Contains(t, rec.Body.String(), `name="publish"`)
	})
}

func TestGenerateVideo_Success(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Duration", mock.Anything, mock.Anything).Return(20.0, nil)
	env.encodes("mp4 data")
	h := env.handlers()

	req := multipartRequest(t, map[string]string{
		"lyrics":           "first line\nsecond line",
		"bg_color":         "#000",
		"font_size":        "60",
		"font_color":       "#ff0000",
		"seconds_per_line": "5",
	}, "fake audio")
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4 data", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Run-ID"), "run-"))
	assert.Equal(t, "5.000", rec.Header().Get("X-Effective-Seconds-Per-Line"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	env.composer.AssertCalled(t, "Compose", mock.Anything, mock.MatchedBy(func(in media.ComposeInput) bool {
		return in.Background.Hex() == "#000000" && in.Duration == 20.0
	}))

	entries, err := os.ReadDir(env.store.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateVideo_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		audio  string
	}{
		{"missing audio", map[string]string{"lyrics": "a line"}, ""},
		{"blank lyrics", map[string]string{"lyrics": "  \n \n"}, "fake audio"},
		{"font size too large", map[string]string{"lyrics": "a", "font_size": "100"}, "fake audio"},
		{"font size not a number", map[string]string{"lyrics": "a", "font_size": "big"}, "fake audio"},
		{"seconds per line too small", map[string]string{"lyrics": "a", "seconds_per_line": "1"}, "fake audio"},
		{"seconds per line NaN", map[string]string{"lyrics": "a", "seconds_per_line": "NaN"}, "fake audio"},
		{"invalid color", map[string]string{"lyrics": "a", "bg_color": "blue"}, "fake audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := env.handlers()
			rec := httptest.NewRecorder()

			h.GenerateVideo(rec, multipartRequest(t, tt.fields, tt.audio))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
			env.prober.AssertNotCalled(t, "Duration", mock.Anything, mock.Anything)
			env.composer.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateVideo_MissingAudioMessage(t *testing.T) {
	h := newTestEnv(t).handlers()
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a line"}, ""))

	assert.Equal(t, pipeline.ErrMissingAudio.Error(), decodeError(t, rec).Error)
}

func TestGenerateVideo_NotMultipart(t *testing.T) {
	h := newTestEnv(t).handlers()

	req := httptest.NewRequest(http.MethodPost, "/videos", strings.NewReader(`{"lyrics":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_FORM", decodeError(t, rec).Code)
}

func TestGenerateVideo_DecodeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Duration", mock.Anything, mock.Anything).Return(0.0, errors.New("invalid data found"))
	h := env.handlers()
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a"}, "not audio"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "DECODE_FAILED", decodeError(t, rec).Code)
}

func TestGenerateVideo_EncodeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Duration", mock.Anything, mock.Anything).Return(20.0, nil)
	env.composer.On("Compose", mock.Anything, mock.Anything).Return(errors.New("ffmpeg exited"))
	h := env.handlers()
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a"}, "fake audio"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ENCODE_FAILED", decodeError(t, rec).Code)

	entries, err := os.ReadDir(env.store.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateVideo_PublishUnavailable(t *testing.T) {
	env := newTestEnv(t)
	h := env.handlers()
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a", "publish": "true"}, "fake audio"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PUBLISH_UNAVAILABLE", decodeError(t, rec).Code)
	env.prober.AssertNotCalled(t, "Duration", mock.Anything, mock.Anything)
}

func TestGenerateVideo_Publish(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Duration", mock.Anything, mock.Anything).Return(20.0, nil)
	env.encodes("mp4 data")

	publisher := &mockPublisher{LocalStorage: env.store}
	publisher.On("UploadToS3", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "videos/run-")
	})).Return("https://bucket.s3.us-east-1.amazonaws.com/videos/run.mp4", nil)

	h := env.handlers(WithPublisher(publisher))
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a\nb", "publish": "on"}, "fake audio"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PublishResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/videos/run.mp4", resp.VideoURL)
	assert.Equal(t, 20.0, resp.DurationSec)
	assert.Equal(t, 4.0, resp.EffectiveSecondsPerLine)
	publisher.AssertExpectations(t)
}

func TestGenerateVideo_Busy(t *testing.T) {
	env := newTestEnv(t)
	h := env.handlers(WithMaxConcurrentRenders(1))

	// Occupy the only slot.
	h.slots <- struct{}{}
	defer func() { <-h.slots }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := multipartRequest(t, map[string]string{"lyrics": "a"}, "fake audio").WithContext(ctx)
	rec := httptest.NewRecorder()

	h.GenerateVideo(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "BUSY", decodeError(t, rec).Code)
	env.prober.AssertNotCalled(t, "Duration", mock.Anything, mock.Anything)
}

func TestGenerateVideo_RejectsInvalidRequestWhileBusy(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		audio  string
	}{
		{"missing audio", map[string]string{"lyrics": "a line"}, ""},
		{"blank lyrics", map[string]string{"lyrics": " \n "}, "fake audio"},
		{"font size too large", map[string]string{"lyrics": "a", "font_size": "81"}, "fake audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := env.handlers(WithMaxConcurrentRenders(1))

			h.slots <- struct{}{}
			defer func() { <-h.slots }()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			rec := httptest.NewRecorder()
			h.GenerateVideo(rec, multipartRequest(t, tt.fields, tt.audio).WithContext(ctx))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
			assert.Len(t, h.slots, 1)
		})
	}
}

func TestGenerateVideo_ReleasesSlot(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Duration", mock.Anything, mock.Anything).Return(20.0, nil)
	env.encodes("x")
	h := env.handlers(WithMaxConcurrentRenders(1))

	for range 2 {
		rec := httptest.NewRecorder()
		h.GenerateVideo(rec, multipartRequest(t, map[string]string{"lyrics": "a"}, "fake audio"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, h.slots)
}

func TestPreviewCaptions(t *testing.T) {
	h := newTestEnv(t).handlers()

	body := `{"lyrics":"one\n\ntwo\nthree","duration_sec":20,"seconds_per_line":4}`
	req := httptest.NewRequest(http.MethodPost, "/captions/preview", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.PreviewCaptions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4.0, resp.EffectiveSecondsPerLine)
	require.Len(t, resp.Captions, 3)
	assert.Equal(t, "two", resp.Captions[1].Text)
	assert.Equal(t, 4.0, resp.Captions[1].Start)
	assert.Equal(t, 8.0, resp.Captions[1].End)
	assert.Equal(t, 3, resp.Captions[2].Index)
}

func TestPreviewCaptions_CompressesToDuration(t *testing.T) {
	h := newTestEnv(t).handlers()

	// Seconds per line defaults to 4 when omitted.
	body := `{"lyrics":"a\nb\nc\nd\ne","duration_sec":10}`
	rec := httptest.NewRecorder()
	h.PreviewCaptions(rec, httptest.NewRequest(http.MethodPost, "/captions/preview", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2.0, resp.EffectiveSecondsPerLine)
	require.Len(t, resp.Captions, 5)
	assert.Equal(t, 10.0, resp.Captions[4].End)
}

func TestPreviewCaptions_SRT(t *testing.T) {
	h := newTestEnv(t).handlers()

	body := `{"lyrics":"hello\nworld","duration_sec":20,"seconds_per_line":4}`
	req := httptest.NewRequest(http.MethodPost, "/captions/preview?format=srt", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.PreviewCaptions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/x-subrip")
	assert.Equal(t,
		"1\n00:00:00,000 --> 00:00:04,000\nhello\n\n2\n00:00:04,000 --> 00:00:08,000\nworld\n\n",
		rec.Body.String())
}

func TestPreviewCaptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid JSON", `{"lyrics":`, "INVALID_JSON"},
		{"missing lyrics", `{"duration_sec":10}`, "VALIDATION_ERROR"},
		{"blank lyrics", `{"lyrics":"  \n\t","duration_sec":10}`, "VALIDATION_ERROR"},
		{"negative duration", `{"lyrics":"a","duration_sec":-1}`, "VALIDATION_ERROR"},
		{"seconds per line out of bounds", `{"lyrics":"a","duration_sec":10,"seconds_per_line":20}`, "VALIDATION_ERROR"},
		{"negative seconds per line", `{"lyrics":"a","duration_sec":10,"seconds_per_line":-4}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestEnv(t).handlers()
			rec := httptest.NewRecorder()

			h.PreviewCaptions(rec, httptest.NewRequest(http.MethodPost, "/captions/preview", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestRouter_Integration(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(env.handlers(), env.logger, DefaultConfig())

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/videos", http.StatusMethodNotAllowed},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	env := newTestEnv(t)

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(env.handlers(), env.logger, cfg)

	// Test with allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Run-ID")

	// Test with other origin
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Test OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/videos", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create a handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("12345"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"bytes":5`)
	assert.Contains(t, buf.String(), `"path":"/brew"`)
}
