// Package mediafetch resolves image sources for the host: https URLs, data URLs
// and local files. Remote downloads are https-only, size-capped and must carry
// an image content type.
package mediafetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/skosovsky/doubao/imagecodec"
)

// DefaultMaxBodySize is the default download limit (10 MiB).
const DefaultMaxBodySize = 10 << 20

var (
	// ErrUnsafeScheme is returned for non-https URLs.
	ErrUnsafeScheme = errors.New("mediafetch: only https scheme is allowed")
	// ErrBodyTooLarge is returned when the response exceeds the size limit.
	ErrBodyTooLarge = errors.New("mediafetch: response body exceeds size limit")
	// ErrUnsupportedType is returned when Content-Type is not image/*.
	ErrUnsupportedType = errors.New("mediafetch: unsupported content type")
)

// Fetcher downloads and decodes images.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the download client (e.g. one trusting a test TLS server).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithMaxBytes caps downloads and local reads. Values <= 0 keep DefaultMaxBodySize.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// New returns a Fetcher using http.DefaultClient unless overridden.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{client: http.DefaultClient, maxBytes: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchImage downloads rawURL and returns its body and media type.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (data []byte, contentType string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: parse URL: %w", err)
	}
	if u.Scheme != "https" {
		return nil, "", ErrUnsafeScheme
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: new request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("mediafetch: status %s", resp.Status)
	}
	contentType, _, _ = strings.Cut(resp.Header.Get("Content-Type"), ";")
	contentType = strings.TrimSpace(contentType)
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	data, err = readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// Load resolves src to a single-frame tensor. src is an https URL, a
// "data:image/...;base64," URL or a local file path.
func (f *Fetcher) Load(ctx context.Context, src string) (*imagecodec.Tensor, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		px, err := imagecodec.DecodeBase64(src)
		if err != nil {
			return nil, err
		}
		return px.Tensor()
	case strings.Contains(src, "://"):
		data, _, err := f.FetchImage(ctx, src)
		if err != nil {
			return nil, err
		}
		return imagecodec.Load(bytes.NewReader(data))
	default:
		file, err := os.Open(src) // #nosec G304 -- path is supplied by the operator
		if err != nil {
			return nil, fmt.Errorf("mediafetch: open: %w", err)
		}
		defer func() { _ = file.Close() }()
		data, err := readLimited(file, f.maxBytes)
		if err != nil {
			return nil, err
		}
		return imagecodec.Load(bytes.NewReader(data))
	}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("mediafetch: read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
