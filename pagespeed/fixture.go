package pagespeed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/use-agent/pagelens/models"
)

//go:embed testdata/example.json
var embeddedFixture []byte

// FixtureProvider returns the same stored document for every URL.
// It stands in for the live API in local runs and tests.
type FixtureProvider struct {
	doc json.RawMessage
}

// NewFixtureProvider loads the document at path, or the embedded sample
// when path is empty.
func NewFixtureProvider(path string) (*FixtureProvider, error) {
	data := embeddedFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, models.NewConfigurationError(fmt.Sprintf("cannot read PageSpeed fixture %s: %v", path, err))
		}
		data = b
	}
	if !json.Valid(data) {
		return nil, models.NewConfigurationError(fmt.Sprintf("PageSpeed fixture %q is not valid JSON", path))
	}
	return &FixtureProvider{doc: json.RawMessage(data)}, nil
}

// Analyze returns a copy of the fixture document.
func (f *FixtureProvider) Analyze(ctx context.Context, _ string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewMetricsError("PageSpeed Insights call canceled", nil, err)
	}
	out := make(json.RawMessage, len(f.doc))
	copy(out, f.doc)
	return out, nil
}
