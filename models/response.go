package models

import "encoding/json"

// AnalyzeResponse is the success body for both analyze routes.
type AnalyzeResponse struct {
	DesktopScreenshotURL string `json:"desktopScreenshotUrl"`
	MobileScreenshotURL  string `json:"mobileScreenshotUrl"`

	// PagespeedData is exactly what the metrics provider returned.
	PagespeedData json.RawMessage `json:"pagespeedData"`

	// Summary is a typed digest of PagespeedData for simple clients.
	Summary *Summary `json:"summary,omitempty"`

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string `json:"cacheStatus,omitempty"`
}

// ErrorResponse is the error body for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	MetricsMode  string       `json:"metrics_mode"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session usage.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"` // 0 = unlimited
	ActiveSessions int `json:"active_sessions"`
}
