// Package blob is the image-storage port: it accepts an image payload and
// returns a publicly reachable URL.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrUploadsDisabled is returned when no storage backend is configured.
var ErrUploadsDisabled = errors.New("image uploads are not configured")

// MaxImageSize caps accepted image payloads.
const MaxImageSize = 500 * 1024

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader, contentType string) (string, error)
}

// Disabled is the fallback Uploader used when storage credentials are
// absent; every upload fails with ErrUploadsDisabled.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, io.Reader, string) (string, error) {
	return "", ErrUploadsDisabled
}
