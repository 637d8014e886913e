package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/doubao"
)

// Generator performs one remote generation call and returns the extracted text.
// Nodes depend on this interface; Adapter is the HTTP implementation.
type Generator interface {
	Generate(ctx context.Context, apiKey string, payload any) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, apiKey string, payload any) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, apiKey string, payload any) (string, error) {
	return f(ctx, apiKey, payload)
}

// ErrBodyTooLarge is wrapped in a doubao.TransportError when the response exceeds the size limit.
var ErrBodyTooLarge = errors.New("adapter: response body exceeds size limit")

// DefaultMaxBodySize caps how much of a response body is read (10 MiB).
const DefaultMaxBodySize = 10 << 20

const (
	mimeJSON   = "application/json"
	tracerName = "github.com/skosovsky/doubao/adapter"
)

// Adapter posts JSON payloads to one endpoint and extracts a string from the
// response according to its Variant. It keeps no state between calls and
// never retries.
type Adapter struct {
	endpoint   string
	variant    Variant
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
	extraBody  map[string]any
	maxBody    int64
}

// New returns an Adapter for baseURL joined with v.Path.
// baseURL must be an absolute URL (e.g. https://api.doubao.com).
func New(baseURL string, v Variant, opts ...Option) (*Adapter, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("adapter: base URL must not be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("adapter: invalid base URL %q", baseURL)
	}
	if v.ExtractPath == "" {
		return nil, fmt.Errorf("adapter: variant %q has no extract path", v.Name)
	}
	a := &Adapter{
		endpoint:   baseURL + "/" + strings.TrimPrefix(v.Path, "/"),
		variant:    v,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
		maxBody:    DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.timeout > 0 {
		c := *a.httpClient
		c.Timeout = a.timeout
		a.httpClient = &c
	}
	return a, nil
}

// Endpoint returns the full URL the adapter posts to.
func (a *Adapter) Endpoint() string { return a.endpoint }

// Variant returns the adapter's variant configuration.
func (a *Adapter) Variant() Variant { return a.variant }

// Generate marshals payload, merges extra body fields, performs one POST and
// applies the variant's status and extraction policies.
//
// Errors: *doubao.TransportError for network faults, *doubao.StatusError for
// non-success statuses under StatusRaise, *doubao.ResponseFormatError when the
// extraction path is absent under MissingFails.
func (a *Adapter) Generate(ctx context.Context, apiKey string, payload any) (text string, err error) {
	ctx, span := a.tracer.Start(ctx, "doubao."+a.variant.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("doubao.variant", a.variant.Name),
			attribute.String("url.full", a.endpoint),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := a.encode(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &doubao.TransportError{Endpoint: a.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", mimeJSON)
	req.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := a.httpClient.Do(req) // #nosec G107 -- endpoint comes from configuration
	if err != nil {
		a.logger.WarnContext(ctx, "doubao request failed", "variant", a.variant.Name, "endpoint", a.endpoint, "err", err)
		return "", &doubao.TransportError{Endpoint: a.endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBody+1))
	if err != nil {
		return "", &doubao.TransportError{Endpoint: a.endpoint, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > a.maxBody {
		return "", &doubao.TransportError{Endpoint: a.endpoint, Err: fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, a.maxBody)}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	a.logger.DebugContext(ctx, "doubao response",
		"variant", a.variant.Name,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start))

	if !a.variant.success(resp.StatusCode) {
		if a.variant.Status == StatusInline {
			return fmt.Sprintf(a.variant.inlineFormat(), resp.StatusCode, string(data)), nil
		}
		return "", &doubao.StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return a.variant.extract(data)
}

// encode marshals payload (raw JSON is used as-is) and adds extra body fields
// that the payload does not already set.
func (a *Adapter) encode(payload any) ([]byte, error) {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	case []byte:
		body = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("adapter: marshal payload: %w", err)
		}
		body = b
	}
	if len(a.extraBody) == 0 {
		return body, nil
	}
	for _, key := range slices.Sorted(maps.Keys(a.extraBody)) {
		if gjson.GetBytes(body, key).Exists() {
			continue
		}
		b, err := sjson.SetBytes(body, key, a.extraBody[key])
		if err != nil {
			return nil, fmt.Errorf("adapter: set extra body field %q: %w", key, err)
		}
		body = b
	}
	return body, nil
}

// Compile-time check that Adapter implements Generator.
var _ Generator = (*Adapter)(nil)
