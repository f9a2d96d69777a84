// Package report turns a URL into an AnalysisReport: two screenshots plus
// the metrics provider's document.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/pagelens/logging"
	"github.com/use-agent/pagelens/models"
	"github.com/use-agent/pagelens/pagespeed"
	"github.com/use-agent/pagelens/urltoken"
	"golang.org/x/sync/errgroup"
)

// ScreenshotTaker captures a URL at both viewports under one token.
// *capture.Capturer satisfies it.
type ScreenshotTaker interface {
	Capture(ctx context.Context, url, token string) (*models.ScreenshotSet, error)
}

// Orchestrator runs capture and metrics for one URL per call. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	capturer ScreenshotTaker
	metrics  pagespeed.Provider
	parallel bool
	now      func() time.Time
}

// NewOrchestrator returns an Orchestrator. With parallel set, the metrics
// call is issued alongside capture instead of after it.
func NewOrchestrator(capturer ScreenshotTaker, metrics pagespeed.Provider, parallel bool) *Orchestrator {
	return &Orchestrator{
		capturer: capturer,
		metrics:  metrics,
		parallel: parallel,
		now:      time.Now,
	}
}

// ProduceReport captures rawURL at the desktop and mobile viewports, then
// fetches its metrics. Either both halves succeed or an error is returned;
// there are no partial reports.
//
// Errors are INVALID_INPUT for a missing or malformed URL, CAPTURE_FAILED
// for any browser step, and METRICS_FAILED for the provider call. In
// sequential mode a capture failure means the provider is never called.
func (o *Orchestrator) ProduceReport(ctx context.Context, rawURL string) (*models.AnalysisReport, error) {
	start := o.now()

	target, err := urltoken.Normalize(rawURL)
	if err != nil {
		msg := "Invalid URL"
		if errors.Is(err, urltoken.ErrEmptyURL) {
			msg = "URL is required"
		}
		return nil, o.fail(ctx, start, rawURL, "validate", models.NewInvalidInputError(msg, err))
	}
	token := urltoken.Derive(target)

	var (
		shots *models.ScreenshotSet
		doc   json.RawMessage
	)
	if o.parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			shots, err = o.capturer.Capture(gctx, target, token)
			return err
		})
		g.Go(func() error {
			var err error
			doc, err = o.fetchMetrics(gctx, target)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, o.fail(ctx, start, target, "analyze", err)
		}
	} else {
		shots, err = o.capturer.Capture(ctx, target, token)
		if err != nil {
			return nil, o.fail(ctx, start, target, "capture", err)
		}
		doc, err = o.fetchMetrics(ctx, target)
		if err != nil {
			return nil, o.fail(ctx, start, target, "metrics", err)
		}
	}

	rep := &models.AnalysisReport{
		URL:               target,
		Token:             token,
		DesktopScreenshot: shots.Desktop,
		MobileScreenshot:  shots.Mobile,
		Metrics:           doc,
		CapturedAt:        start,
		Duration:          o.now().Sub(start),
	}
	reportDuration.WithLabelValues("success").Observe(rep.Duration.Seconds())
	logging.FromContext(ctx).Info("report produced", "url", target, "token", token, "duration", rep.Duration)
	return rep, nil
}

func (o *Orchestrator) fetchMetrics(ctx context.Context, target string) (json.RawMessage, error) {
	doc, err := o.metrics.Analyze(ctx, target)
	if err != nil {
		var re *models.ReportError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, models.NewMetricsError("Failed to fetch PageSpeed Insights data", nil, err)
	}
	return doc, nil
}

func (o *Orchestrator) fail(ctx context.Context, start time.Time, url, step string, err error) error {
	code := models.CodeOf(err)
	reportFailures.WithLabelValues(code).Inc()
	reportDuration.WithLabelValues("failure").Observe(o.now().Sub(start).Seconds())

	level := slog.LevelError
	if code == models.ErrCodeInvalidInput {
		level = slog.LevelWarn
	}
	logging.FromContext(ctx).Log(ctx, level, "report failed", "url", url, "step", step, "code", code, "error", err)
	return err
}
