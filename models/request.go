package models

// AnalyzeRequest is the payload for POST /api/analyze.
type AnalyzeRequest struct {
	// URL is the page to analyze. Required; a missing scheme defaults to https.
	URL string `json:"url"`

	// MaxAge accepts a cached report younger than this many seconds.
	// 0 (default) always produces a fresh report.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0,max=86400"`

	// WebhookURL receives a report.completed or report.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
