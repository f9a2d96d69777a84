package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportError_Unwrap(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := fmt.Errorf("capture: %w", NewCaptureError("navigation failed", cause))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeCapture, CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, ErrCodeConfiguration, CodeOf(NewConfigurationError("missing key")))
}

func TestToResponse(t *testing.T) {
	t.Run("explicit details win", func(t *testing.T) {
		details := map[string]any{"code": 403.0}
		resp := NewMetricsError("Failed to fetch PageSpeed Insights data", details, errors.New("status 403")).ToResponse()
		assert.Equal(t, "Failed to fetch PageSpeed Insights data", resp.Error)
		assert.Equal(t, ErrCodeMetrics, resp.Code)
		assert.Equal(t, details, resp.Details)
	})

	t.Run("cause becomes details", func(t *testing.T) {
		resp := NewCaptureError("Failed to analyze URL", errors.New("timeout")).ToResponse()
		assert.Equal(t, "timeout", resp.Details)
	})

	t.Run("no details", func(t *testing.T) {
		resp := NewInvalidInputError("URL is required", nil).ToResponse()
		assert.Nil(t, resp.Details)
	})
}
