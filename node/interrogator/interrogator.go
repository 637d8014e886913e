// Package interrogator implements the DouBaoImageInterrogator node: it sends the
// first frame of an image batch to the Doubao vision endpoint and returns the
// caption.
package interrogator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/adapter"
	"github.com/skosovsky/doubao/imagecodec"
)

// Node identity and request defaults.
const (
	NodeName = "DouBaoImageInterrogator"
	Function = "interrogate"
	Category = "DouBao"
	Path     = "/vision/interrogate"

	DefaultAPIKey = "your-doubao-api-key"
	DefaultModel  = "doubao-image-captioning-model"
)

// Config holds optional overrides.
type Config struct {
	Spec   *doubao.NodeSpec
	Logger *slog.Logger
}

// Node is the image interrogator. It is safe for concurrent use.
type Node struct {
	gen    adapter.Generator
	spec   doubao.NodeSpec
	logger *slog.Logger
}

// New returns a Node that calls gen, normally an adapter built with adapter.VisionVariant(Path).
func New(gen adapter.Generator, cfg Config) *Node {
	spec := DefaultSpec()
	if cfg.Spec != nil {
		spec = cfg.Spec.Clone()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{gen: gen, spec: spec, logger: logger}
}

// DefaultSpec returns the node's input schema and display metadata.
func DefaultSpec() doubao.NodeSpec {
	return doubao.NodeSpec{
		Name:        NodeName,
		DisplayName: "豆包图像反推提示词",
		Category:    Category,
		Function:    Function,
		Description: "Captions an image with the Doubao vision model.",
		Required: []doubao.InputField{
			{Name: "image", Type: doubao.TypeImage},
			{Name: "api_key", Type: doubao.TypeString, Default: DefaultAPIKey},
			{Name: "model_name", Type: doubao.TypeString, Default: DefaultModel},
		},
		ReturnTypes: []doubao.FieldType{doubao.TypeString},
	}
}

// Spec implements doubao.Node.
func (n *Node) Spec() doubao.NodeSpec { return n.spec.Clone() }

// Invoke implements doubao.Node. The image input must be a *imagecodec.Tensor.
func (n *Node) Invoke(ctx context.Context, in doubao.Inputs) (doubao.Outputs, error) {
	resolved, err := n.spec.Resolve(in)
	if err != nil {
		return nil, err
	}
	img, ok := resolved.Value("image").(*imagecodec.Tensor)
	if !ok {
		return nil, &doubao.ValidationError{
			Node:   n.spec.Name,
			Field:  "image",
			Reason: fmt.Sprintf("expected image tensor, got %T", resolved.Value("image")),
		}
	}
	out, err := n.Interrogate(ctx, img, resolved.String("api_key"), resolved.String("model_name"))
	if err != nil {
		return nil, err
	}
	return doubao.Outputs{out}, nil
}

// Interrogate encodes frame 0 of image as base64 PNG and returns the caption.
// Additional frames are ignored. A missing description yields "".
func (n *Node) Interrogate(ctx context.Context, image *imagecodec.Tensor, apiKey, model string) (string, error) {
	if apiKey == "" {
		return "", &doubao.ValidationError{Node: n.spec.Name, Field: "api_key", Reason: "must not be empty"}
	}
	if model == "" {
		return "", &doubao.ValidationError{Node: n.spec.Name, Field: "model_name", Reason: "must not be empty"}
	}
	if err := image.Validate(); err != nil {
		return "", &doubao.ValidationError{Node: n.spec.Name, Field: "image", Reason: err.Error()}
	}
	encoded, err := imagecodec.EncodeBase64PNG(image)
	if err != nil {
		return "", errors.Join(&doubao.ValidationError{Node: n.spec.Name, Field: "image", Reason: "cannot encode"}, err)
	}
	caption, err := n.gen.Generate(ctx, apiKey, adapter.VisionRequest{Model: model, Image: encoded})
	if err != nil {
		n.logger.ErrorContext(ctx, "image interrogation failed", "node", n.spec.Name, "err", err)
		return "", err
	}
	return caption, nil
}

var _ doubao.Node = (*Node)(nil)
