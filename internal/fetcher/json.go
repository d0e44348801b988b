package fetcher

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON value from r into a new T.
func DecodeJSON[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// ReadAll drains and closes body, capping reads at limit bytes when limit > 0.
func ReadAll(body io.ReadCloser, limit int64) ([]byte, error) {
	defer body.Close() //nolint:errcheck
	var r io.Reader = body
	if limit > 0 {
		r = io.LimitReader(body, limit)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	return b, nil
}
