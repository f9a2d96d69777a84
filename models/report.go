package models

import (
	"encoding/json"
	"time"
)

// Viewport is a simulated browser window used for one screenshot.
type Viewport struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mobile bool   `json:"mobile"`
}

// ScreenshotArtifact is one persisted screenshot. Immutable after capture.
type ScreenshotArtifact struct {
	Viewport Viewport `json:"viewport"`

	// StoragePath is the store-relative file name, e.g. "examplecom_desktop.png".
	StoragePath string `json:"storage_path"`

	// URL is where the stored image can be fetched from.
	URL string `json:"url"`
}

// ScreenshotSet is the output of one capture session.
type ScreenshotSet struct {
	Token   string
	Desktop ScreenshotArtifact
	Mobile  ScreenshotArtifact
}

// AnalysisReport is produced once per request and not persisted
// beyond its screenshot files.
type AnalysisReport struct {
	URL               string
	Token             string
	DesktopScreenshot ScreenshotArtifact
	MobileScreenshot  ScreenshotArtifact

	// Metrics is the provider's document, forwarded unmodified.
	Metrics json.RawMessage

	CapturedAt time.Time
	Duration   time.Duration
}
