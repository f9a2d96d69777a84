package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// It is built once by Load at process start and passed down explicitly.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Storage   StorageConfig
	PageSpeed PageSpeedConfig
	Report    ReportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how each headless Chrome session is launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (--no-sandbox --disable-setuid-sandbox).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to Chrome as --proxy-server.
	Proxy string
}

// CaptureConfig controls screenshot capture behavior.
type CaptureConfig struct {
	// Timeout bounds launch + both navigations + both screenshots.
	Timeout time.Duration // default: 60s

	// IdleWindow is how long the network must be quiet before a page is considered loaded.
	IdleWindow time.Duration // default: 500ms

	// MaxSessions caps concurrently running browser sessions. 0 means unlimited.
	MaxSessions int // default: 4

	// Stealth injects anti-automation-detection JS before navigation.
	Stealth bool // default: false

	// BlockAds aborts requests to well-known ad and tracking hosts.
	BlockAds bool // default: false

	// ExtraHeaders are sent with every navigation request.
	ExtraHeaders map[string]string
}

// StorageConfig selects and configures the screenshot store.
type StorageConfig struct {
	// Backend is "local" or "s3".
	Backend string // default: "local"

	// Dir is the local public static-asset directory.
	Dir string // default: "public"

	// PublicPrefix is the URL path under which Dir is served.
	PublicPrefix string // default: "/screenshots"

	// RetentionMaxAge deletes local screenshots older than this. 0 disables age eviction.
	RetentionMaxAge time.Duration // default: 24h

	// RetentionMaxFiles keeps at most this many local screenshots. 0 disables count eviction.
	RetentionMaxFiles int // default: 500

	// RetentionInterval is how often the retention sweep runs.
	RetentionInterval time.Duration // default: 10m

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	S3Prefix        string
}

// PageSpeedConfig configures the metrics provider.
type PageSpeedConfig struct {
	// Mode is "live" (PageSpeed Insights API) or "fixture" (static sample document).
	Mode string // default: "live"

	// APIKey is the PageSpeed Insights credential. Required in live mode.
	APIKey string

	// BaseURL is the Google APIs root.
	BaseURL string // default: "https://www.googleapis.com"

	// Strategy is "DESKTOP" or "MOBILE".
	Strategy string // default: "DESKTOP"

	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration // default: 90s

	// RequestsPerSecond throttles outbound calls to stay within the API quota.
	RequestsPerSecond float64 // default: 4

	// FixturePath overrides the embedded fixture document in fixture mode.
	FixturePath string
}

// ReportConfig controls the orchestration pipeline.
type ReportConfig struct {
	// ParallelMetrics fetches metrics concurrently with screenshot capture.
	ParallelMetrics bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 3
}

// CacheConfig controls the report cache.
type CacheConfig struct {
	// TTL is the hard lifetime of a cached report.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PAGELENS_HOST", "0.0.0.0"),
			Port: envIntOr("PAGELENS_PORT", 8080),
			Mode: envOr("PAGELENS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PAGELENS_HEADLESS", true),
			NoSandbox:  envBoolOr("PAGELENS_NO_SANDBOX", true),
			BrowserBin: os.Getenv("PAGELENS_BROWSER_BIN"),
			Proxy:      os.Getenv("PAGELENS_PROXY"),
		},
		Capture: CaptureConfig{
			Timeout:      envDurationOr("PAGELENS_CAPTURE_TIMEOUT", 60*time.Second),
			IdleWindow:   envDurationOr("PAGELENS_IDLE_WINDOW", 500*time.Millisecond),
			MaxSessions:  envIntOr("PAGELENS_MAX_SESSIONS", 4),
			Stealth:      envBoolOr("PAGELENS_STEALTH", false),
			BlockAds:     envBoolOr("PAGELENS_BLOCK_ADS", false),
			ExtraHeaders: envMapOr("PAGELENS_EXTRA_HEADERS", nil),
		},
		Storage: StorageConfig{
			Backend:           envOr("PAGELENS_STORAGE", "local"),
			Dir:               envOr("PAGELENS_STORAGE_DIR", "public"),
			PublicPrefix:      envOr("PAGELENS_PUBLIC_PREFIX", "/screenshots"),
			RetentionMaxAge:   envDurationOr("PAGELENS_RETENTION_MAX_AGE", 24*time.Hour),
			RetentionMaxFiles: envIntOr("PAGELENS_RETENTION_MAX_FILES", 500),
			RetentionInterval: envDurationOr("PAGELENS_RETENTION_INTERVAL", 10*time.Minute),
			S3Bucket:          os.Getenv("PAGELENS_S3_BUCKET"),
			S3Region:          envOr("PAGELENS_S3_REGION", "us-east-1"),
			S3Endpoint:        os.Getenv("PAGELENS_S3_ENDPOINT"),
			S3PublicBaseURL:   os.Getenv("PAGELENS_S3_PUBLIC_BASE_URL"),
			S3Prefix:          envOr("PAGELENS_S3_PREFIX", "screenshots"),
		},
		PageSpeed: PageSpeedConfig{
			Mode:              envOr("PAGESPEED_MODE", "live"),
			APIKey:            os.Getenv("PAGESPEED_API_KEY"),
			BaseURL:           envOr("PAGESPEED_BASE_URL", "https://www.googleapis.com"),
			Strategy:          strings.ToUpper(envOr("PAGESPEED_STRATEGY", "DESKTOP")),
			Timeout:           envDurationOr("PAGESPEED_TIMEOUT", 90*time.Second),
			RequestsPerSecond: envFloatOr("PAGESPEED_RPS", 4),
			FixturePath:       os.Getenv("PAGESPEED_FIXTURE"),
		},
		Report: ReportConfig{
			ParallelMetrics: envBoolOr("PAGELENS_PARALLEL_METRICS", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGELENS_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PAGELENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGELENS_RATE_RPS", 1.0),
			Burst:             envIntOr("PAGELENS_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			TTL: envDurationOr("PAGELENS_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PAGELENS_LOG_LEVEL", "info"),
			Format: envOr("PAGELENS_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "Key=Value,Key2=Value2". Malformed pairs are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
