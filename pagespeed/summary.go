package pagespeed

import (
	"encoding/json"
	"math"

	"github.com/use-agent/pagelens/models"
)

// document is the subset of a PageSpeed Insights result that Summarize reads.
type document struct {
	ID                   string `json:"id"`
	AnalysisUTCTimestamp string `json:"analysisUTCTimestamp"`
	LoadingExperience    struct {
		Metrics map[string]struct {
			Percentile float64 `json:"percentile"`
			Category   string  `json:"category"`
		} `json:"metrics"`
	} `json:"loadingExperience"`
	LighthouseResult struct {
		RequestedURL string `json:"requestedUrl"`
		FinalURL     string `json:"finalUrl"`
		Categories   map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

// Summarize extracts category scores (0-100) and Core Web Vitals from a
// metrics document. Missing fields stay nil; a document that is not a JSON
// object yields nil.
func Summarize(raw json.RawMessage) *models.Summary {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	s := &models.Summary{
		ID:                   doc.ID,
		AnalysisUTCTimestamp: doc.AnalysisUTCTimestamp,
		RequestedURL:         doc.LighthouseResult.RequestedURL,
		FinalURL:             doc.LighthouseResult.FinalURL,
	}

	score := func(name string) *int {
		c, ok := doc.LighthouseResult.Categories[name]
		if !ok || c.Score == nil {
			return nil
		}
		v := int(math.Round(*c.Score * 100))
		return &v
	}
	s.Scores = models.CategoryScores{
		Performance:   score("performance"),
		Accessibility: score("accessibility"),
		BestPractices: score("best-practices"),
		SEO:           score("seo"),
	}

	vital := func(name string) *models.VitalMetric {
		m, ok := doc.LoadingExperience.Metrics[name]
		if !ok {
			return nil
		}
		return &models.VitalMetric{Percentile: m.Percentile, Category: m.Category}
	}
	s.Vitals = models.CoreWebVitals{
		LargestContentfulPaint: vital("LARGEST_CONTENTFUL_PAINT_MS"),
		FirstContentfulPaint:   vital("FIRST_CONTENTFUL_PAINT_MS"),
		CumulativeLayoutShift:  vital("CUMULATIVE_LAYOUT_SHIFT_SCORE"),
		InteractionToNextPaint: vital("INTERACTION_TO_NEXT_PAINT"),
		TimeToFirstByte:        vital("EXPERIMENTAL_TIME_TO_FIRST_BYTE"),
	}
	return s
}
