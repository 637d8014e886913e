// Package nodes builds the process registry of Doubao nodes from YAML manifests.
// The built-in manifests are embedded; hosts may supply their own set.
package nodes

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/adapter"
	"github.com/skosovsky/doubao/manifest"
	"github.com/skosovsky/doubao/node/chatprompt"
	"github.com/skosovsky/doubao/node/interrogator"
	"github.com/skosovsky/doubao/node/promptgen"
)

// DefaultBaseURL is the Doubao API root used when none is configured.
const DefaultBaseURL = "https://api.doubao.com"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns the embedded manifests and their root directory.
func Builtin() (fs.FS, string) { return builtinFS, "builtin" }

type options struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	fsys       fs.FS
	root       string
}

// Option configures NewRegistry.
type Option func(*options)

// WithBaseURL sets the API root shared by every node.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client shared by every node.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each remote call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger passed to adapters and nodes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithManifests replaces the built-in manifests with every YAML file under root in fsys.
func WithManifests(fsys fs.FS, root string) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys, o.root = fsys, root
		}
	}
}

// NewRegistry parses the manifests, builds one node per manifest, registers
// each under its display name and returns the sealed registry.
func NewRegistry(opts ...Option) (*doubao.Registry, error) {
	o := &options{baseURL: DefaultBaseURL, logger: slog.Default(), fsys: builtinFS, root: "builtin"}
	for _, opt := range opts {
		opt(o)
	}
	manifests, err := manifest.WalkFS(o.fsys, o.root)
	if err != nil {
		return nil, err
	}
	reg := doubao.NewRegistry()
	for _, m := range manifests {
		node, err := build(m, o)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(node, m.DisplayName); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	o.logger.Debug("doubao nodes registered", "count", reg.Len(), "base_url", o.baseURL)
	return reg, nil
}

func build(m *manifest.Node, o *options) (doubao.Node, error) {
	spec := m.Spec()
	var variant adapter.Variant
	switch m.Kind {
	case manifest.KindPromptGenerator:
		variant = adapter.ChatVariant(or(m.Request.Endpoint, promptgen.Path))
	case manifest.KindChatPrompt:
		variant = adapter.InlineChatVariant(or(m.Request.Endpoint, chatprompt.Path))
	case manifest.KindImageInterrogator:
		variant = adapter.VisionVariant(or(m.Request.Endpoint, interrogator.Path))
	default:
		return nil, fmt.Errorf("%w: node %q: unknown kind %q", manifest.ErrInvalidManifest, m.Name, m.Kind)
	}
	gen, err := adapter.New(o.baseURL, variant,
		adapter.WithHTTPClient(o.httpClient),
		adapter.WithTimeout(o.timeout),
		adapter.WithLogger(o.logger),
		adapter.WithExtraBody(m.Request.ExtraBody),
	)
	if err != nil {
		return nil, fmt.Errorf("nodes: %s: %w", m.Name, err)
	}
	switch m.Kind {
	case manifest.KindPromptGenerator:
		return promptgen.New(gen, promptgen.Config{
			Model:        m.Request.Model,
			SystemPrompt: m.Request.SystemPrompt,
			MaxTokens:    m.Request.MaxTokens,
			Spec:         &spec,
			Logger:       o.logger,
		}), nil
	case manifest.KindChatPrompt:
		return chatprompt.New(gen, chatprompt.Config{
			Model:        m.Request.Model,
			SystemPrompt: m.Request.SystemPrompt,
			Spec:         &spec,
			Logger:       o.logger,
		}), nil
	default:
		return interrogator.New(gen, interrogator.Config{Spec: &spec, Logger: o.logger}), nil
	}
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
