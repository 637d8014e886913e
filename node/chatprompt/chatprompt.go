// Package chatprompt implements the DouBaoPrompt node, a single-turn chat
// completion for logo design prompts.
//
// Unlike the other nodes, an unsuccessful HTTP status is not an error here:
// the node returns "Error: <code> - <body>" as its output. Only transport
// faults and malformed success responses are returned as errors.
package chatprompt

import (
	"context"
	"log/slog"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/adapter"
)

// Node identity and chat defaults.
const (
	NodeName = "DouBaoPrompt"
	Function = "generate_prompt"
	Category = "豆包大模型"
	Path     = "/v1/chat/completions"

	DefaultModel        = "doubao-model"
	DefaultBasePrompt   = "Please generate a logo design prompt for:"
	DefaultSystemPrompt = "You are a helpful assistant for generating logo design prompts."
)

// Config holds the remote call settings. Zero fields take the package defaults.
type Config struct {
	Model        string
	SystemPrompt string
	Spec         *doubao.NodeSpec
	Logger       *slog.Logger
}

// Node is the chat prompt node. It is safe for concurrent use.
type Node struct {
	gen    adapter.Generator
	cfg    Config
	spec   doubao.NodeSpec
	logger *slog.Logger
}

// New returns a Node that calls gen, normally an adapter built with
// adapter.InlineChatVariant(Path).
func New(gen adapter.Generator, cfg Config) *Node {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
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
		DisplayName: "豆包提示词生成",
		Category:    Category,
		Function:    Function,
		Description: "Sends a base instruction and user text to the Doubao chat model.",
		Required: []doubao.InputField{
			{Name: "api_key", Type: doubao.TypeString, Default: ""},
			{Name: "base_prompt", Type: doubao.TypeString, Default: DefaultBasePrompt},
			{Name: "user_input", Type: doubao.TypeString, Multiline: true},
		},
		ReturnTypes: []doubao.FieldType{doubao.TypeString},
	}
}

// Spec implements doubao.Node.
func (n *Node) Spec() doubao.NodeSpec { return n.spec.Clone() }

// Invoke implements doubao.Node.
func (n *Node) Invoke(ctx context.Context, in doubao.Inputs) (doubao.Outputs, error) {
	resolved, err := n.spec.Resolve(in)
	if err != nil {
		return nil, err
	}
	out, err := n.GeneratePrompt(ctx, resolved.String("api_key"), resolved.String("base_prompt"), resolved.String("user_input"))
	if err != nil {
		return nil, err
	}
	return doubao.Outputs{out}, nil
}

// GeneratePrompt sends "basePrompt userInput" as the user message and returns
// the reply, or the inline error text for a non-200 status.
func (n *Node) GeneratePrompt(ctx context.Context, apiKey, basePrompt, userInput string) (string, error) {
	for _, f := range [...]struct{ name, value string }{
		{"api_key", apiKey},
		{"base_prompt", basePrompt},
		{"user_input", userInput},
	} {
		if f.value == "" {
			return "", &doubao.ValidationError{Node: n.spec.Name, Field: f.name, Reason: "must not be empty"}
		}
	}
	text, err := n.gen.Generate(ctx, apiKey, adapter.ChatRequest{
		Model: n.cfg.Model,
		Messages: []doubao.ChatMessage{
			{Role: doubao.RoleSystem, Content: n.cfg.SystemPrompt},
			{Role: doubao.RoleUser, Content: basePrompt + " " + userInput},
		},
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "chat prompt failed", "node", n.spec.Name, "err", err)
		return "", err
	}
	return text, nil
}

var _ doubao.Node = (*Node)(nil)
