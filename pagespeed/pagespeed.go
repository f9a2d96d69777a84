// Package pagespeed fetches performance scores for a URL, either live from
// the PageSpeed Insights API or from a static fixture.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/use-agent/pagelens/config"
	"github.com/use-agent/pagelens/models"
)

// Provider returns the scored performance document for a URL. The document
// is opaque to callers and forwarded as is.
type Provider interface {
	Analyze(ctx context.Context, url string) (json.RawMessage, error)
}

// Mode names accepted in PageSpeedConfig.Mode.
const (
	ModeLive    = "live"
	ModeFixture = "fixture"
)

// New builds the provider selected by cfg.Mode. Live mode without an API key
// fails here, at startup, with CONFIGURATION_ERROR.
func New(cfg config.PageSpeedConfig, httpClient *http.Client) (Provider, error) {
	switch cfg.Mode {
	case ModeLive, "":
		c, err := NewClient(cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ModeFixture:
		f, err := NewFixtureProvider(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, models.NewConfigurationError(fmt.Sprintf("unknown PageSpeed mode %q (want %q or %q)", cfg.Mode, ModeLive, ModeFixture))
	}
}
