package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analyzeResponse mirrors the success and error bodies of POST /api/analyze.
type analyzeResponse struct {
	DesktopScreenshotURL string `json:"desktopScreenshotUrl"`
	MobileScreenshotURL  string `json:"mobileScreenshotUrl"`
	Summary              *struct {
		FinalURL string `json:"finalUrl"`
		Scores   struct {
			Performance   *int `json:"performance"`
			Accessibility *int `json:"accessibility"`
			BestPractices *int `json:"bestPractices"`
			SEO           *int `json:"seo"`
		} `json:"scores"`
		Vitals map[string]*struct {
			Percentile float64 `json:"percentile"`
			Category   string  `json:"category"`
		} `json:"vitals"`
	} `json:"summary"`
	CacheStatus string `json:"cacheStatus"`

	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	apiURL := os.Getenv("PAGELENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: the server runs without auth by default.
	apiKey := os.Getenv("PAGELENS_API_KEY")

	s := server.NewMCPServer(
		"pagelens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzeTool := mcp.NewTool("analyze_url",
		mcp.WithDescription("Capture desktop (1280x800) and mobile (360x800) screenshots of a web page and fetch its PageSpeed Insights scores and Core Web Vitals."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to analyze"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached report younger than this many seconds (default: 0, always fresh)"),
		),
	)
	s.AddTool(analyzeTool, handleAnalyzeURL(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAnalyzeURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{"url": url}
		if maxAge := request.GetInt("max_age", 0); maxAge > 0 {
			payload["max_age"] = maxAge
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+"/api/analyze", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var ar analyzeResponse
		if err := json.Unmarshal(respBody, &ar); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.StatusCode != http.StatusOK {
			msg := ar.Error
			if msg == "" {
				msg = resp.Status
			}
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", ar.Code, msg)), nil
		}

		return mcp.NewToolResultText(formatReport(url, &ar)), nil
	}
}

// formatReport renders a report as plain text for the model.
func formatReport(url string, ar *analyzeResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report for %s\n", url)
	if ar.CacheStatus != "" {
		fmt.Fprintf(&b, "Cache: %s\n", ar.CacheStatus)
	}
	fmt.Fprintf(&b, "\nDesktop screenshot: %s\nMobile screenshot: %s\n", ar.DesktopScreenshotURL, ar.MobileScreenshotURL)

	if ar.Summary == nil {
		return b.String()
	}
	if ar.Summary.FinalURL != "" && ar.Summary.FinalURL != url {
		fmt.Fprintf(&b, "Final URL: %s\n", ar.Summary.FinalURL)
	}

	b.WriteString("\nScores:\n")
	sc := ar.Summary.Scores
	for _, s := range []struct {
		name string
		v    *int
	}{
		{"Performance", sc.Performance},
		{"Accessibility", sc.Accessibility},
		{"Best practices", sc.BestPractices},
		{"SEO", sc.SEO},
	} {
		if s.v != nil {
			fmt.Fprintf(&b, "  %s: %d\n", s.name, *s.v)
		} else {
			fmt.Fprintf(&b, "  %s: n/a\n", s.name)
		}
	}

	if len(ar.Summary.Vitals) > 0 {
		b.WriteString("\nCore Web Vitals (75th percentile, field data):\n")
		for _, k := range []string{"lcp", "fcp", "cls", "inp", "ttfb"} {
			if v := ar.Summary.Vitals[k]; v != nil {
				fmt.Fprintf(&b, "  %s: %g (%s)\n", strings.ToUpper(k), v.Percentile, v.Category)
			}
		}
	}
	return b.String()
}
