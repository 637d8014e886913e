package adapter

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the HTTP client. If c is nil, the default client is left unchanged.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithTimeout bounds each call. Zero (the default) leaves the client's own timeout,
// which for the default client is none.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithLogger sets the logger. If l is nil, slog.Default() is kept.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the OpenTelemetry tracer. If t is nil, the global tracer is kept.
func WithTracer(t trace.Tracer) Option {
	return func(a *Adapter) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithExtraBody adds fields to every request body. Keys are sjson paths; fields
// already set by the payload win.
func WithExtraBody(fields map[string]any) Option {
	return func(a *Adapter) { a.extraBody = maps.Clone(fields) }
}

// WithMaxBodySize caps the response body size. Values <= 0 keep DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBody = n
		}
	}
}
