// Package capture drives a headless browser to screenshot a page at a
// desktop and a mobile viewport.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagelens/config"
	"github.com/use-agent/pagelens/logging"
	"github.com/use-agent/pagelens/models"
	"github.com/use-agent/pagelens/storage"
	"golang.org/x/sync/semaphore"
)

var (
	// DesktopViewport is the first capture of every report.
	DesktopViewport = models.Viewport{Name: "desktop", Width: 1280, Height: 800}

	// MobileViewport is captured after DesktopViewport on the same page.
	MobileViewport = models.Viewport{Name: "mobile", Width: 360, Height: 800, Mobile: true}
)

// Launcher starts an isolated browser session. Sessions are never pooled.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one running browser. Close must be safe to call more than
// once; calls after the first are no-ops returning nil.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Navigate returns once the network has gone idle.
type Page interface {
	SetViewport(v models.Viewport) error
	Navigate(url string) error
	Screenshot() ([]byte, error)
	Close() error
}

// Capturer runs the screenshot half of a report: launch, capture both
// viewports, persist, tear down. It is safe for concurrent use.
type Capturer struct {
	launcher    Launcher
	store       storage.Store
	timeout     time.Duration
	maxSessions int
	sem         *semaphore.Weighted
	active      atomic.Int32
}

// NewCapturer returns a Capturer. cfg.MaxSessions > 0 bounds concurrent
// sessions; further callers wait for a free slot or their context.
func NewCapturer(l Launcher, st storage.Store, cfg config.CaptureConfig) *Capturer {
	c := &Capturer{
		launcher:    l,
		store:       st,
		timeout:     cfg.Timeout,
		maxSessions: cfg.MaxSessions,
	}
	if cfg.MaxSessions > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxSessions))
	}
	return c
}

// Stats returns a snapshot of session usage.
func (c *Capturer) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    c.maxSessions,
		ActiveSessions: int(c.active.Load()),
	}
}

// Capture screenshots targetURL at DesktopViewport then MobileViewport and
// stores them as <token>_desktop.png and <token>_mobile.png.
//
// The page is re-navigated for the mobile shot so layout reflows at the new
// width. The page and session are closed before Capture returns on every
// path, including cancellation of ctx. All failures are CAPTURE_FAILED.
func (c *Capturer) Capture(ctx context.Context, targetURL, token string) (*models.ScreenshotSet, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, stepError("acquire_session", err)
		}
		defer c.sem.Release(1)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.active.Add(1)
	defer c.active.Add(-1)

	log := logging.FromContext(ctx).With("url", targetURL)

	session, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, stepError("launch", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("browser session close failed", "error", err)
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, stepError("open_page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("page close failed", "error", err)
		}
	}()

	desktop, err := c.shoot(ctx, page, targetURL, token, DesktopViewport)
	if err != nil {
		return nil, err
	}
	mobile, err := c.shoot(ctx, page, targetURL, token, MobileViewport)
	if err != nil {
		return nil, err
	}

	log.Info("screenshots captured", "token", token)
	return &models.ScreenshotSet{Token: token, Desktop: desktop, Mobile: mobile}, nil
}

func (c *Capturer) shoot(ctx context.Context, page Page, targetURL, token string, v models.Viewport) (models.ScreenshotArtifact, error) {
	var a models.ScreenshotArtifact

	if err := page.SetViewport(v); err != nil {
		return a, stepError("set_viewport_"+v.Name, err)
	}
	if err := page.Navigate(targetURL); err != nil {
		return a, stepError("navigate_"+v.Name, err)
	}
	img, err := page.Screenshot()
	if err != nil {
		return a, stepError("screenshot_"+v.Name, err)
	}

	name := FileName(token, v)
	url, err := c.store.Put(ctx, name, storage.ContentTypePNG, img)
	if err != nil {
		return a, stepError("store_"+v.Name, err)
	}

	return models.ScreenshotArtifact{Viewport: v, StoragePath: name, URL: url}, nil
}

// FileName is the stored name of a token's screenshot at viewport v.
func FileName(token string, v models.Viewport) string {
	return token + "_" + v.Name + ".png"
}

// stepError wraps a failure in the named step as a CAPTURE_FAILED error.
func stepError(step string, err error) *models.ReportError {
	msg := "Failed to analyze URL"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "Screenshot capture timed out"
	case errors.Is(err, context.Canceled):
		msg = "Screenshot capture canceled"
	}
	return models.NewCaptureError(msg, fmt.Errorf("%s: %w", step, err))
}
