// Package manifest parses YAML node manifests: the node's schema, display
// metadata and the remote request defaults a registry needs to build it.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skosovsky/doubao"
)

// ErrInvalidManifest is returned when a manifest cannot be parsed or fails validation.
var ErrInvalidManifest = errors.New("manifest: invalid node manifest")

// Kind selects the node implementation a manifest is built into.
type Kind string

// Supported node kinds.
const (
	KindPromptGenerator   Kind = "prompt_generator"
	KindChatPrompt        Kind = "chat_prompt"
	KindImageInterrogator Kind = "image_interrogator"
)

// Known reports whether k names a supported implementation.
func (k Kind) Known() bool {
	switch k {
	case KindPromptGenerator, KindChatPrompt, KindImageInterrogator:
		return true
	default:
		return false
	}
}

// Node is the YAML manifest shape.
type Node struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Category    string `yaml:"category"`
	Function    string `yaml:"function"`
	Kind        Kind   `yaml:"kind"`
	Description string `yaml:"description"`
	Inputs      struct {
		Required []doubao.InputField `yaml:"required"`
		Optional []doubao.InputField `yaml:"optional"`
	} `yaml:"inputs"`
	Returns struct {
		Types []doubao.FieldType `yaml:"types"`
		Names []string           `yaml:"names"`
	} `yaml:"returns"`
	Request Request `yaml:"request"`
}

// Request holds the remote call defaults. Empty fields take the node package defaults.
type Request struct {
	Endpoint     string         `yaml:"endpoint"`
	Model        string         `yaml:"model"`
	SystemPrompt string         `yaml:"system_prompt"`
	MaxTokens    int            `yaml:"max_tokens"`
	ExtraBody    map[string]any `yaml:"extra_body"`
}

// Spec converts the manifest to the host contract.
func (n *Node) Spec() doubao.NodeSpec {
	return doubao.NodeSpec{
		Name:        n.Name,
		DisplayName: n.DisplayName,
		Category:    n.Category,
		Function:    n.Function,
		Description: n.Description,
		Required:    n.Inputs.Required,
		Optional:    n.Inputs.Optional,
		ReturnTypes: n.Returns.Types,
		ReturnNames: n.Returns.Names,
	}.Clone()
}

// ParseBytes parses and validates one YAML manifest.
func ParseBytes(data []byte) (*Node, error) {
	var n Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := validate(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ParseFile reads and parses a manifest file.
func ParseFile(name string) (*Node, error) {
	data, err := os.ReadFile(name) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("manifest: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a manifest from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (*Node, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("manifest: read fs: %w", err)
	}
	return ParseBytes(data)
}

// WalkFS parses every .yaml/.yml file under root in lexical order.
// Errors are prefixed with the offending file path.
func WalkFS(fsys fs.FS, root string) ([]*Node, error) {
	var nodes []*Node
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := path.Ext(p); ext != ".yaml" && ext != ".yml" {
			return nil
		}
		n, err := ParseFS(fsys, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func validate(n *Node) error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidManifest)
	}
	if !n.Kind.Known() {
		return fmt.Errorf("%w: node %q: unknown kind %q", ErrInvalidManifest, n.Name, n.Kind)
	}
	seen := make(map[string]bool)
	for _, group := range [][]doubao.InputField{n.Inputs.Required, n.Inputs.Optional} {
		for _, f := range group {
			if f.Name == "" {
				return fmt.Errorf("%w: node %q: input without name", ErrInvalidManifest, n.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("%w: node %q: duplicate input %q", ErrInvalidManifest, n.Name, f.Name)
			}
			seen[f.Name] = true
			if !f.Type.Known() {
				return fmt.Errorf("%w: node %q: input %q has unknown type %q", ErrInvalidManifest, n.Name, f.Name, f.Type)
			}
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				return fmt.Errorf("%w: node %q: input %q has min > max", ErrInvalidManifest, n.Name, f.Name)
			}
		}
	}
	if len(n.Returns.Types) == 0 {
		return fmt.Errorf("%w: node %q: missing return types", ErrInvalidManifest, n.Name)
	}
	for _, t := range n.Returns.Types {
		if !t.Known() {
			return fmt.Errorf("%w: node %q: unknown return type %q", ErrInvalidManifest, n.Name, t)
		}
	}
	if len(n.Returns.Names) > 0 && len(n.Returns.Names) != len(n.Returns.Types) {
		return fmt.Errorf("%w: node %q: %d return names for %d types",
			ErrInvalidManifest, n.Name, len(n.Returns.Names), len(n.Returns.Types))
	}
	if n.Request.MaxTokens < 0 {
		return fmt.Errorf("%w: node %q: negative max_tokens", ErrInvalidManifest, n.Name)
	}
	return nil
}
