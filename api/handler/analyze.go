package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/pagelens/cache"
	"github.com/use-agent/pagelens/logging"
	"github.com/use-agent/pagelens/models"
	"github.com/use-agent/pagelens/pagespeed"
	"github.com/use-agent/pagelens/urltoken"
	"github.com/use-agent/pagelens/webhook"
)

// Reporter produces a report for a URL. *report.Orchestrator satisfies it.
type Reporter interface {
	ProduceReport(ctx context.Context, url string) (*models.AnalysisReport, error)
}

// Notifier delivers webhook events in the background. *webhook.Sender satisfies it.
type Notifier interface {
	DeliverAsync(url, secret string, event *webhook.Event) <-chan struct{}
}

// ScreenshotChecker reports whether a stored screenshot URL still resolves.
// *storage.LocalStore satisfies it.
type ScreenshotChecker interface {
	Exists(publicURL string) bool
}

// Analyzer serves both analyze routes through one response path so they
// share a single error policy.
type Analyzer struct {
	reporter Reporter
	cache    *cache.Cache
	notifier Notifier
	shots    ScreenshotChecker
}

// NewAnalyzer returns an Analyzer. cc and n may be nil.
func NewAnalyzer(r Reporter, cc *cache.Cache, n Notifier) *Analyzer {
	return &Analyzer{reporter: r, cache: cc, notifier: n}
}

// WithScreenshotChecker makes cache hits whose screenshots were removed from
// storage count as misses.
func (a *Analyzer) WithScreenshotChecker(sc ScreenshotChecker) *Analyzer {
	a.shots = sc
	return a
}

// Post returns a handler for POST /api/analyze.
func (a *Analyzer) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AnalyzeRequest
		// An empty body is treated as a request with no URL.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewInvalidInputError("Invalid request body", err))
			return
		}
		a.analyze(c, req)
	}
}

// Get returns a handler for GET /api/analyze/*target. The target is either
// a percent-encoded URL or the legacy dash-delimited form.
func (a *Analyzer) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		segment := strings.TrimPrefix(c.Param("target"), "/")
		target, err := urltoken.Resolve(segment)
		if err != nil {
			msg := "Invalid URL"
			if errors.Is(err, urltoken.ErrEmptyURL) {
				msg = "URL is required"
			}
			respondError(c, models.NewInvalidInputError(msg, err))
			return
		}
		a.analyze(c, models.AnalyzeRequest{URL: target})
	}
}

func (a *Analyzer) analyze(c *gin.Context, req models.AnalyzeRequest) {
	maxAge := time.Duration(req.MaxAge) * time.Second
	key, keyErr := urltoken.Normalize(req.URL)
	useCache := a.cache != nil && maxAge > 0 && keyErr == nil

	if useCache {
		if cached, hit := a.cache.Get(key, maxAge); hit && a.screenshotsPresent(cached) {
			cached.CacheStatus = "hit"
			a.notify(req, webhook.EventCompleted, cached)
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	rep, err := a.reporter.ProduceReport(c.Request.Context(), req.URL)
	if err != nil {
		re := models.AsReportError(err)
		body := re.ToResponse()
		a.notify(req, webhook.EventFailed, body)
		c.JSON(statusFor(re.Code), body)
		return
	}

	resp := &models.AnalyzeResponse{
		DesktopScreenshotURL: rep.DesktopScreenshot.URL,
		MobileScreenshotURL:  rep.MobileScreenshot.URL,
		PagespeedData:        rep.Metrics,
		Summary:              pagespeed.Summarize(rep.Metrics),
	}
	if useCache {
		a.cache.Set(key, resp)
		resp.CacheStatus = "miss"
	}

	a.notify(req, webhook.EventCompleted, resp)
	c.JSON(http.StatusOK, resp)
}

func (a *Analyzer) screenshotsPresent(resp *models.AnalyzeResponse) bool {
	if a.shots == nil {
		return true
	}
	return a.shots.Exists(resp.DesktopScreenshotURL) && a.shots.Exists(resp.MobileScreenshotURL)
}

func (a *Analyzer) notify(req models.AnalyzeRequest, eventType string, data any) {
	if a.notifier == nil || req.WebhookURL == "" {
		return
	}
	a.notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
		Type:      eventType,
		ReportID:  uuid.NewString(),
		URL:       req.URL,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

// respondError writes err as an error body with the status its code maps to.
func respondError(c *gin.Context, err error) {
	re := models.AsReportError(err)
	if re.Code == models.ErrCodeInternal {
		logging.FromContext(c.Request.Context()).Error("unhandled error", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(statusFor(re.Code), re.ToResponse())
}

// statusFor translates error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
