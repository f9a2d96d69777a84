// Package urltoken turns target URLs into filesystem-safe tokens and
// decodes the URL-bearing path segments accepted by the GET analyze route.
//
// Every function in this package is pure.
package urltoken

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxTokenLen bounds token length so "<token>_desktop.png" stays a valid file name.
const MaxTokenLen = 128

var (
	// ErrEmptyURL is returned for an empty or whitespace-only URL.
	ErrEmptyURL = errors.New("URL is required")

	// ErrInvalidURL is returned when a URL cannot be resolved to an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")
)

// Derive returns the token used to name a URL's screenshots: the text after
// the first "://" with every character other than an ASCII letter or digit
// removed.
//
//	Derive("https://example.com/foo") == "examplecomfoo"
//
// Tokens longer than MaxTokenLen are cut and suffixed with a SHA-256 prefix
// of the full URL so distinct long URLs keep distinct tokens.
func Derive(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}

	var b strings.Builder
	b.Grow(len(rest))
	for i := 0; i < len(rest); i++ {
		if c := rest[i]; isAlnum(c) {
			b.WriteByte(c)
		}
	}
	token := b.String()

	if len(token) > MaxTokenLen {
		sum := sha256.Sum256([]byte(rawURL))
		digest := hex.EncodeToString(sum[:])[:16]
		token = token[:MaxTokenLen-len(digest)] + digest
	}
	return token
}

// Normalize validates rawURL and returns it as an absolute http(s) URL.
// A missing scheme defaults to https. Userinfo is dropped.
func Normalize(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", ErrEmptyURL
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	// Credentials would otherwise end up in public file names and logs.
	u.User = nil
	return u.String(), nil
}

// Encode returns the unambiguous path-segment form of a URL.
func Encode(rawURL string) string {
	return url.PathEscape(rawURL)
}

// Decode reverses Encode.
func Decode(segment string) (string, error) {
	s, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return s, nil
}

// DecodeDashed rebuilds a URL from the legacy dash-delimited segment form,
// e.g. "https-example-com-docs-intro" -> "https://example.com/docs/intro".
//
// The first part only selects the scheme (https when it starts with "https",
// otherwise http). The next two parts, stripped to letters, digits and dots,
// are joined by "." as the host. Everything after the third part is the path,
// with "-" read as "/" and a doubled "--" read as a literal "-".
//
// The encoding is lossy: hosts with more or fewer than two labels, and hosts
// containing hyphens, do not round-trip. Prefer Encode/Decode.
func DecodeDashed(segment string) (string, error) {
	if segment == "" {
		return "", ErrEmptyURL
	}
	parts := strings.SplitN(segment, "-", 4)
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: dashed segment %q needs scheme-domain-tld", ErrInvalidURL, segment)
	}

	scheme := "http://"
	if strings.HasPrefix(segment, "https") {
		scheme = "https://"
	}

	name, tld := hostChars(parts[1]), hostChars(parts[2])
	if name == "" || tld == "" {
		return "", fmt.Errorf("%w: dashed segment %q has an empty host part", ErrInvalidURL, segment)
	}

	pathIndex := len(parts[0]) + len(parts[1]) + len(parts[2]) + 2
	path := strings.ReplaceAll(segment[pathIndex:], "-", "/")
	path = strings.ReplaceAll(path, "//", "-")

	return scheme + name + "." + tld + path, nil
}

// Resolve turns a GET route segment into a normalized absolute URL. Segments
// that decode to something containing "://" are taken as percent-encoded
// URLs; anything else goes through DecodeDashed.
func Resolve(segment string) (string, error) {
	decoded, err := Decode(segment)
	if err != nil {
		return "", err
	}
	if strings.Contains(decoded, "://") {
		return Normalize(decoded)
	}
	dashed, err := DecodeDashed(decoded)
	if err != nil {
		return "", err
	}
	return Normalize(dashed)
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func hostChars(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; isAlnum(c) || c == '.' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
