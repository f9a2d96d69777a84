package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pagelens/config"
	"github.com/use-agent/pagelens/models"
	"github.com/ysmood/gson"
)

// RodLauncher launches one headless Chrome per session via go-rod.
type RodLauncher struct {
	browserCfg config.BrowserConfig
	captureCfg config.CaptureConfig
}

// NewRodLauncher returns a Launcher backed by a local Chromium.
func NewRodLauncher(browserCfg config.BrowserConfig, captureCfg config.CaptureConfig) *RodLauncher {
	return &RodLauncher{browserCfg: browserCfg, captureCfg: captureCfg}
}

// Launch starts Chrome and connects to it over CDP. Waiting for Chrome to
// come up is abandoned when ctx is done.
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ln := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless).
		NoSandbox(l.browserCfg.NoSandbox)

	if l.browserCfg.NoSandbox {
		ln.Set(flags.Flag("disable-setuid-sandbox"))
	}
	if l.browserCfg.BrowserBin != "" {
		ln = ln.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		ln = ln.Proxy(l.browserCfg.Proxy)
	}

	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("hide-scrollbars"))
	ln.Set(flags.Flag("no-first-run"))

	controlURL, err := ln.Launch()
	if err != nil {
		ln.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "pid", ln.PID())

	return &rodSession{launcher: ln, browser: browser, cfg: l.captureCfg}, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.CaptureConfig
	once     sync.Once
}

// NewPage opens a blank tab with stealth, extra headers and ad blocking
// installed before any navigation happens.
func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if len(s.cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(s.cfg.ExtraHeaders)}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	var router *rod.HijackRouter
	if s.cfg.BlockAds {
		router = setupAdBlock(page)
	}

	idle := s.cfg.IdleWindow
	if idle <= 0 {
		idle = 500 * time.Millisecond
	}

	return &rodPage{
		page:   page,
		p:      page.Context(ctx),
		idle:   idle,
		router: router,
	}, nil
}

// Close ends the CDP connection, kills the Chrome process and removes its
// profile directory. The unbound browser handle is used so teardown still
// works after the request context is gone.
func (s *rodSession) Close() error {
	var err error
	s.once.Do(func() {
		err = s.browser.Close()
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return err
}

type rodPage struct {
	page   *rod.Page // unbound, used for teardown
	p      *rod.Page // bound to the capture context
	idle   time.Duration
	router *rod.HijackRouter
	once   sync.Once
}

func (r *rodPage) SetViewport(v models.Viewport) error {
	return r.p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             v.Width,
		Height:            v.Height,
		DeviceScaleFactor: 1,
		Mobile:            v.Mobile,
	})
}

// Navigate loads url and waits until no request has been in flight for the
// idle window.
//
// The idle waiter must be registered before Navigate or in-flight requests
// are missed. Request interception (ad blocking) shares the Fetch domain
// with WaitRequestIdle, so with a router installed we wait for load plus a
// stable DOM instead.
func (r *rodPage) Navigate(url string) error {
	if r.router != nil {
		if err := r.p.Navigate(url); err != nil {
			return err
		}
		if err := r.p.WaitLoad(); err != nil {
			return err
		}
		if err := r.p.WaitDOMStable(r.idle, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
		}
		return r.p.GetContext().Err()
	}

	wait := r.p.WaitRequestIdle(r.idle, nil, nil, nil)
	if err := r.p.Navigate(url); err != nil {
		return err
	}
	wait()
	return r.p.GetContext().Err()
}

func (r *rodPage) Screenshot() ([]byte, error) {
	return r.p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (r *rodPage) Close() error {
	var err error
	r.once.Do(func() {
		if r.router != nil {
			_ = r.router.Stop()
		}
		err = r.page.Close()
	})
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
