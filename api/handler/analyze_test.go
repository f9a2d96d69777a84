package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pagelens/cache"
	"github.com/use-agent/pagelens/models"
	"github.com/use-agent/pagelens/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const psiDoc = `{"id":"https://example.com/","lighthouseResult":{"categories":{"performance":{"score":0.97}}}}`

// fakeReporter returns a canned report or error and records the URLs it saw.
type fakeReporter struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (f *fakeReporter) ProduceReport(ctx context.Context, url string) (*models.AnalysisReport, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(url) == "" {
		return nil, models.NewInvalidInputError("URL is required", nil)
	}
	return &models.AnalysisReport{
		URL:               url,
		Token:             "examplecom",
		DesktopScreenshot: models.ScreenshotArtifact{URL: "/screenshots/examplecom_desktop.png"},
		MobileScreenshot:  models.ScreenshotArtifact{URL: "/screenshots/examplecom_mobile.png"},
		Metrics:           json.RawMessage(psiDoc),
	}, nil
}

func (f *fakeReporter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*webhook.Event
	urls   []string
}

func (n *fakeNotifier) DeliverAsync(url, secret string, ev *webhook.Event) <-chan struct{} {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.urls = append(n.urls, url)
	n.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func engine(a *Analyzer) *gin.Engine {
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = false
	r.POST("/api/analyze", a.Post())
	r.GET("/api/analyze/*target", a.Get())
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPost_Success(t *testing.T) {
	rep := &fakeReporter{}
	w := post(engine(NewAnalyzer(rep, nil, nil)), `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.JSONEq(t, `"/screenshots/examplecom_desktop.png"`, string(raw["desktopScreenshotUrl"]))
	assert.JSONEq(t, `"/screenshots/examplecom_mobile.png"`, string(raw["mobileScreenshotUrl"]))
	assert.JSONEq(t, psiDoc, string(raw["pagespeedData"]))
	assert.NotContains(t, raw, "cacheStatus")

	var resp models.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 97, *resp.Summary.Scores.Performance)
}

func TestPost_MissingURL(t *testing.T) {
	for _, body := range []string{`{}`, `{"url":""}`, ``} {
		t.Run(body, func(t *testing.T) {
			w := post(engine(NewAnalyzer(&fakeReporter{}, nil, nil)), body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Code)
			assert.Equal(t, "URL is required", resp.Error)
		})
	}
}

func TestPost_MalformedBody(t *testing.T) {
	rep := &fakeReporter{}
	r := engine(NewAnalyzer(rep, nil, nil))

	for _, body := range []string{`{"url":`, `{"url":"https://example.com","max_age":-1}`, `{"url":"https://example.com","webhook_url":"not a url"}`} {
		w := post(r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, models.ErrCodeInvalidInput, decodeError(t, w).Code)
	}
	assert.Empty(t, rep.calls())
}

func TestPost_FailuresMapTo500(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"capture", models.NewCaptureError("Failed to analyze URL", errors.New("navigate_desktop: timeout")), models.ErrCodeCapture},
		{"metrics", models.NewMetricsError("PageSpeed Insights rejected the API key", map[string]any{"status": 403}, nil), models.ErrCodeMetrics},
		{"configuration", models.NewConfigurationError("PageSpeed API key is not configured."), models.ErrCodeConfiguration},
		{"unknown", errors.New("boom"), models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(engine(NewAnalyzer(&fakeReporter{err: tt.err}, nil, nil)), `{"url":"https://example.com"}`)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPost_MetricsDetailsForwarded(t *testing.T) {
	err := models.NewMetricsError("PageSpeed Insights rejected the API key", map[string]any{"status": 403, "message": "API key not valid."}, nil)
	w := post(engine(NewAnalyzer(&fakeReporter{err: err}, nil, nil)), `{"url":"https://example.com"}`)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	details, ok := raw["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "API key not valid.", details["message"])
}

func TestGet_ResolvesSegment(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/analyze/https%3A%2F%2Fexample.com%2Ffoo", "https://example.com/foo"},
		{"/api/analyze/https-example-com-docs-intro", "https://example.com/docs/intro"},
		{"/api/analyze/http-example-com", "http://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rep := &fakeReporter{}
			w := get(engine(NewAnalyzer(rep, nil, nil)), tt.path)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, []string{tt.want}, rep.calls())
		})
	}
}

func TestGet_InvalidSegment(t *testing.T) {
	rep := &fakeReporter{}
	r := engine(NewAnalyzer(rep, nil, nil))

	w := get(r, "/api/analyze/justoneword")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid URL", decodeError(t, w).Error)

	w = get(r, "/api/analyze/")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "URL is required", decodeError(t, w).Error)

	assert.Empty(t, rep.calls())
}

func TestAnalyze_CacheHitSkipsReporter(t *testing.T) {
	rep := &fakeReporter{}
	r := engine(NewAnalyzer(rep, cache.New(time.Hour), nil))

	var first models.AnalyzeResponse
	w := post(r, `{"url":"https://example.com","max_age":60}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "miss", first.CacheStatus)

	var second models.AnalyzeResponse
	w = post(r, `{"url":"example.com","max_age":60}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.DesktopScreenshotURL, second.DesktopScreenshotURL)

	assert.Len(t, rep.calls(), 1)

	// no max_age, no cache
	w = post(r, `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rep.calls(), 2)
}

type fakeShots struct {
	mu      sync.Mutex
	missing map[string]bool
}

func (f *fakeShots) Exists(publicURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missing[publicURL]
}

func TestAnalyze_CacheHitWithMissingScreenshotsRegenerates(t *testing.T) {
	rep := &fakeReporter{}
	shots := &fakeShots{missing: map[string]bool{}}
	r := engine(NewAnalyzer(rep, cache.New(time.Hour), nil).WithScreenshotChecker(shots))

	w := post(r, `{"url":"https://example.com","max_age":60}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = post(r, `{"url":"https://example.com","max_age":60}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rep.calls(), 1)

	// Retention removed the mobile image.
	shots.mu.Lock()
	shots.missing["/screenshots/examplecom_mobile.png"] = true
	shots.mu.Unlock()

	var resp models.AnalyzeResponse
	w = post(r, `{"url":"https://example.com","max_age":60}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "miss", resp.CacheStatus)
	assert.Len(t, rep.calls(), 2)
}

func TestAnalyze_Webhook(t *testing.T) {
	n := &fakeNotifier{}
	r := engine(NewAnalyzer(&fakeReporter{}, nil, n))

	w := post(r, `{"url":"https://example.com","webhook_url":"https://hooks.example.com/x","webhook_secret":"s"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.events, 1)
	assert.Equal(t, webhook.EventCompleted, n.events[0].Type)
	assert.Equal(t, "https://hooks.example.com/x", n.urls[0])
	assert.NotEmpty(t, n.events[0].ReportID)

	r = engine(NewAnalyzer(&fakeReporter{err: models.NewCaptureError("Failed to analyze URL", nil)}, nil, n))
	post(r, `{"url":"https://example.com","webhook_url":"https://hooks.example.com/x"}`)
	require.Len(t, n.events, 2)
	assert.Equal(t, webhook.EventFailed, n.events[1].Type)
	assert.IsType(t, models.ErrorResponse{}, n.events[1].Data)

	// no webhook_url, no event
	post(engine(NewAnalyzer(&fakeReporter{}, nil, n)), `{"url":"https://example.com"}`)
	assert.Len(t, n.events, 2)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrCodeInvalidInput))
	assert.Equal(t, http.StatusUnauthorized, statusFor(models.ErrCodeUnauthorized))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(models.ErrCodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrCodeCapture))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrCodeMetrics))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrCodeConfiguration))
}

type fixedSessions models.SessionStats

func (f fixedSessions) Stats() models.SessionStats { return models.SessionStats(f) }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/h", Health(fixedSessions{MaxSessions: 2, ActiveSessions: 2}, "fixture", time.Now()))

	w := get(r, "/h")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "fixture", resp.MetricsMode)
	assert.Equal(t, 2, resp.SessionStats.ActiveSessions)
}
