package models

// Summary digests the metrics document into the scores and
// Core Web Vitals a report page renders.
type Summary struct {
	ID                   string         `json:"id,omitempty"`
	AnalysisUTCTimestamp string         `json:"analysisUTCTimestamp,omitempty"`
	RequestedURL         string         `json:"requestedUrl,omitempty"`
	FinalURL             string         `json:"finalUrl,omitempty"`
	Scores               CategoryScores `json:"scores"`
	Vitals               CoreWebVitals  `json:"vitals"`
}

// CategoryScores are Lighthouse category scores scaled to 0-100.
// Nil means the category was not present.
type CategoryScores struct {
	Performance   *int `json:"performance,omitempty"`
	Accessibility *int `json:"accessibility,omitempty"`
	BestPractices *int `json:"bestPractices,omitempty"`
	SEO           *int `json:"seo,omitempty"`
}

// CoreWebVitals are field-data percentiles from the loading experience.
type CoreWebVitals struct {
	LargestContentfulPaint *VitalMetric `json:"lcp,omitempty"`
	FirstContentfulPaint   *VitalMetric `json:"fcp,omitempty"`
	CumulativeLayoutShift  *VitalMetric `json:"cls,omitempty"`
	InteractionToNextPaint *VitalMetric `json:"inp,omitempty"`
	TimeToFirstByte        *VitalMetric `json:"ttfb,omitempty"`
}

// VitalMetric is one loading-experience metric.
type VitalMetric struct {
	Percentile float64 `json:"percentile"`
	Category   string  `json:"category,omitempty"` // FAST, AVERAGE, SLOW
}
