// Package promptgen implements the DoubaoPromptGenerator node: it turns a short
// requirement into an image-generation prompt via the Doubao chat endpoint.
package promptgen

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"text/template"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/adapter"
)

// Node identity and chat defaults.
const (
	NodeName = "DoubaoPromptGenerator"
	Function = "generate_prompt"
	Category = "提示词生成/豆包"
	Path     = "/chat/completions"

	DefaultModel        = "ernie-bot"
	DefaultMaxTokens    = 500
	DefaultStyle        = "detailed, vivid, evocative"
	DefaultLength       = 100
	DefaultTemperature  = 0.7
	DefaultSystemPrompt = "You are a professional AI prompt generation assistant, skilled at producing high-quality image generation prompts."
)

// Prefixes are stripped from the start of a reply, first match only.
var Prefixes = []string{
	"Prompt:",
	"Generated prompt:",
	"Result:",
	"提示词：",
	"生成的提示词：",
	"结果：",
}

var instructionTmpl = template.Must(template.New("instruction").Parse(
	`Generate a prompt suitable for AI image generation based on the following requirement:
Requirement: {{.Requirement}}
Style: {{.Style}}
Approximate length: about {{.Length}} words
Make sure the prompt is detailed and accurate so that it guides the AI toward the expected result.
`))

// Config holds the remote call settings. Zero fields take the package defaults.
type Config struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Spec         *doubao.NodeSpec // overrides DefaultSpec, e.g. from a manifest
	Logger       *slog.Logger
}

// Node is the prompt generator. It is safe for concurrent use.
type Node struct {
	gen    adapter.Generator
	cfg    Config
	spec   doubao.NodeSpec
	logger *slog.Logger
}

// New returns a Node that calls gen, normally an adapter built with adapter.ChatVariant(Path).
func New(gen adapter.Generator, cfg Config) *Node {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	spec := DefaultSpec()
	if cfg.Spec != nil {
		spec = cfg.Spec.Clone()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{gen: gen, cfg: cfg, spec: spec, logger: logger}
}

// DefaultSpec returns the node's input schema and display metadata.
func DefaultSpec() doubao.NodeSpec {
	return doubao.NodeSpec{
		Name:        NodeName,
		DisplayName: "豆包提示词生成器",
		Category:    Category,
		Function:    Function,
		Description: "Generates an AI image prompt from a requirement using the Doubao model.",
		Required: []doubao.InputField{
			{Name: "api_key", Type: doubao.TypeString, Default: ""},
			{Name: "prompt_requirement", Type: doubao.TypeString, Default: "", Multiline: true},
		},
		Optional: []doubao.InputField{
			{Name: "style", Type: doubao.TypeString, Default: DefaultStyle},
			{Name: "length", Type: doubao.TypeInt, Default: DefaultLength, Min: num(50), Max: num(500), Step: num(10)},
			{Name: "temperature", Type: doubao.TypeFloat, Default: DefaultTemperature, Min: num(0.1), Max: num(1.0), Step: num(0.1)},
		},
		ReturnTypes: []doubao.FieldType{doubao.TypeString},
		ReturnNames: []string{"generated_prompt"},
	}
}

// Spec implements doubao.Node.
func (n *Node) Spec() doubao.NodeSpec { return n.spec.Clone() }

// Invoke implements doubao.Node. It returns a single cleaned prompt.
func (n *Node) Invoke(ctx context.Context, in doubao.Inputs) (doubao.Outputs, error) {
	resolved, err := n.spec.Resolve(in)
	if err != nil {
		return nil, err
	}
	out, err := n.GeneratePrompt(ctx, Request{
		APIKey:      resolved.String("api_key"),
		Requirement: resolved.String("prompt_requirement"),
		Style:       resolved.String("style"),
		Length:      resolved.Int("length"),
		Temperature: resolved.Float("temperature"),
	})
	if err != nil {
		return nil, err
	}
	return doubao.Outputs{out}, nil
}

// Request is one prompt generation call.
type Request struct {
	APIKey      string
	Requirement string
	Style       string
	Length      int64
	Temperature float64
}

// GeneratePrompt validates req, performs one chat call and cleans the reply.
// An empty key or requirement fails before any network activity.
func (n *Node) GeneratePrompt(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", &doubao.ValidationError{Node: n.spec.Name, Field: "api_key", Reason: "a valid Doubao API key is required"}
	}
	if req.Requirement == "" {
		return "", &doubao.ValidationError{Node: n.spec.Name, Field: "prompt_requirement", Reason: "a prompt requirement is required"}
	}
	instruction, err := Instruction(req.Requirement, req.Style, req.Length)
	if err != nil {
		return "", err
	}
	text, err := n.gen.Generate(ctx, req.APIKey, adapter.ChatRequest{
		Model: n.cfg.Model,
		Messages: []doubao.ChatMessage{
			{Role: doubao.RoleSystem, Content: n.cfg.SystemPrompt},
			{Role: doubao.RoleUser, Content: instruction},
		},
		Temperature: adapter.Float(req.Temperature),
		MaxTokens:   adapter.Int(n.cfg.MaxTokens),
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "prompt generation failed", "node", n.spec.Name, "err", err)
		return "", err
	}
	return CleanPrompt(text), nil
}

// Instruction renders the user message for a requirement, style and target length.
func Instruction(requirement, style string, length int64) (string, error) {
	var buf bytes.Buffer
	err := instructionTmpl.Execute(&buf, struct {
		Requirement string
		Style       string
		Length      int64
	}{requirement, style, length})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// CleanPrompt trims s, removes the first matching entry of Prefixes and trims again.
func CleanPrompt(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range Prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

func num(f float64) *float64 { return &f }

var _ doubao.Node = (*Node)(nil)
