// Package fetcher downloads EDGAR, listing, and market documents over HTTP
// with per-host throttling, and decodes their JSON and XML payloads.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	// A non-200 response is reported as a *StatusError.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// StatusError reports a response whose status code was not 200.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
