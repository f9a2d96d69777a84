package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/pagelens/config"
	"github.com/use-agent/pagelens/models"
	"golang.org/x/time/rate"
)

const runPagespeedPath = "/pagespeedonline/v5/runPagespeed"

// maxBodyBytes caps the response read. Full Lighthouse documents with
// embedded screenshots run to a few MB.
const maxBodyBytes = 32 << 20

// categories are requested explicitly; the API returns only performance otherwise.
var categories = []string{"PERFORMANCE", "ACCESSIBILITY", "BEST_PRACTICES", "SEO"}

// Client calls the PageSpeed Insights v5 API.
// It uses net/http directly; the API is a single GET.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	strategy   string
	limiter    *rate.Limiter
}

// NewClient creates a live client. Pass nil to use a client with cfg.Timeout.
func NewClient(cfg config.PageSpeedConfig, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewConfigurationError("PageSpeed API key is not configured.")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	strategy := strings.ToUpper(cfg.Strategy)
	if strategy == "" {
		strategy = "DESKTOP"
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://www.googleapis.com"
	}

	c := &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimRight(base, "/") + runPagespeedPath,
		strategy:   strategy,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// apiErrorResponse is the Google API error envelope.
type apiErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Analyze runs a PageSpeed Insights analysis for targetURL and returns the
// response body unmodified. Every failure is METRICS_FAILED.
func (c *Client) Analyze(ctx context.Context, targetURL string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.NewMetricsError("PageSpeed Insights call canceled", nil, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(targetURL), nil)
	if err != nil {
		return nil, models.NewMetricsError("Failed to fetch PageSpeed Insights data", nil, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewMetricsError("Failed to fetch PageSpeed Insights data", nil, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewMetricsError("Failed to read PageSpeed Insights response", nil, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(resp.StatusCode, body)
	}

	if !json.Valid(body) {
		return nil, models.NewMetricsError("PageSpeed Insights returned invalid JSON", nil, nil)
	}
	return json.RawMessage(body), nil
}

func (c *Client) requestURL(targetURL string) string {
	q := url.Values{}
	q.Set("url", targetURL)
	q.Set("key", c.apiKey)
	q.Set("strategy", c.strategy)
	for _, cat := range categories {
		q.Add("category", cat)
	}
	return c.endpoint + "?" + q.Encode()
}

// classifyAPIError maps a non-200 response to METRICS_FAILED, carrying the
// provider's error object as details.
func classifyAPIError(statusCode int, body []byte) *models.ReportError {
	var details any = strings.TrimSpace(string(body))
	msg := "Failed to fetch PageSpeed Insights data"

	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		details = envelope.Error
		parts := make([]string, 0, len(envelope.Error.Errors))
		for _, e := range envelope.Error.Errors {
			if e.Message != "" {
				parts = append(parts, e.Message)
			}
		}
		if len(parts) == 0 && envelope.Error.Message != "" {
			parts = append(parts, envelope.Error.Message)
		}
		if len(parts) > 0 {
			details = map[string]any{
				"status":  statusCode,
				"message": strings.Join(parts, ", "),
				"error":   envelope.Error,
			}
		}
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		msg = "PageSpeed Insights rejected the API key"
	}
	return models.NewMetricsError(msg, details, fmt.Errorf("pagespeed API returned %d", statusCode))
}

// redactedError hides the API key that *url.Error quotes from the request
// URL while keeping the cause reachable through Unwrap.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), err: err}
}
