package doubao

import (
	"context"

	"github.com/skosovsky/doubao/internal/cast"
)

// Role is the message role in a chat (system, user, assistant).
type Role string

// Chat message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single {role, content} pair sent verbatim to the chat endpoint.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Outputs is the result tuple of a node invocation; len(Outputs) == len(Spec().ReturnTypes).
type Outputs []any

// Node is a single editor node backed by a remote API call.
// Invoke performs at most one blocking round trip and keeps no state between calls.
type Node interface {
	Spec() NodeSpec
	Invoke(ctx context.Context, in Inputs) (Outputs, error)
}

// Inputs holds resolved node inputs keyed by field name. Build it with NodeSpec.Resolve
// so defaults are applied and values are coerced to their declared types.
type Inputs map[string]any

// String returns the named input as a string, or "" when absent.
func (in Inputs) String(name string) string {
	s, _ := cast.ToString(in[name])
	return s
}

// Int returns the named input as int64, or 0 when absent or not numeric.
func (in Inputs) Int(name string) int64 {
	i, _ := cast.ToInt64(in[name])
	return i
}

// Float returns the named input as float64, or 0 when absent or not numeric.
func (in Inputs) Float(name string) float64 {
	f, _ := cast.ToFloat64(in[name])
	return f
}

// Value returns the raw input (e.g. an image tensor).
func (in Inputs) Value(name string) any { return in[name] }
