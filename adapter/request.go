package adapter

import "github.com/skosovsky/doubao"

// ChatRequest is the chat completion payload. Nil pointers are omitted.
type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []doubao.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   *int                 `json:"max_tokens,omitempty"`
}

// VisionRequest is the interrogation payload; Image is a base64 PNG.
type VisionRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

// Float returns a pointer to f for optional request fields.
func Float(f float64) *float64 { return &f }

// Int returns a pointer to i for optional request fields.
func Int(i int) *int { return &i }
