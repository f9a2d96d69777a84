// Package storage persists captured screenshots and returns the URL each
// one is served from.
package storage

import "context"

// ContentTypePNG is the content type of every capture.
const ContentTypePNG = "image/png"

// Store persists one object and returns the URL it can be read from.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}
