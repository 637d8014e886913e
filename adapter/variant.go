package adapter

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/skosovsky/doubao"
)

// StatusPolicy decides what a non-success HTTP status becomes.
type StatusPolicy int

const (
	// StatusRaise returns a *doubao.StatusError carrying status and body.
	StatusRaise StatusPolicy = iota
	// StatusInline returns the status and body formatted as the result text, with no error.
	StatusInline
)

// MissingPolicy decides what an absent extraction path becomes.
type MissingPolicy int

const (
	// MissingFails returns a *doubao.ResponseFormatError; the value must also be a JSON string.
	MissingFails MissingPolicy = iota
	// MissingEmpty returns "" with no error.
	MissingEmpty
)

// DefaultInlineFormat formats inline status errors: status code, then raw body.
const DefaultInlineFormat = "Error: %d - %s"

// Well-known extraction paths.
const (
	ChatContentPath = "choices.0.message.content"
	DescriptionPath = "description"
)

// Variant describes one remote endpoint shape.
type Variant struct {
	Name         string        // span and log name, e.g. "chat"
	Path         string        // endpoint path joined to the base URL
	ExtractPath  string        // gjson path of the result string
	Missing      MissingPolicy // absent ExtractPath handling
	Status       StatusPolicy  // non-success status handling
	InlineFormat string        // used by StatusInline; defaults to DefaultInlineFormat
	StrictOK     bool          // only 200 is success; otherwise any 2xx
}

// ChatVariant is the chat endpoint that raises on any non-2xx status and
// requires choices[0].message.content.
func ChatVariant(path string) Variant {
	return Variant{Name: "chat", Path: path, ExtractPath: ChatContentPath}
}

// InlineChatVariant is the chat endpoint whose non-200 statuses are returned
// as "Error: <code> - <body>" text instead of an error.
func InlineChatVariant(path string) Variant {
	return Variant{
		Name:        "chat_inline",
		Path:        path,
		ExtractPath: ChatContentPath,
		Status:      StatusInline,
		StrictOK:    true,
	}
}

// VisionVariant is the interrogation endpoint: 200 only, and a missing
// description yields "".
func VisionVariant(path string) Variant {
	return Variant{
		Name:        "vision",
		Path:        path,
		ExtractPath: DescriptionPath,
		Missing:     MissingEmpty,
		StrictOK:    true,
	}
}

func (v Variant) success(status int) bool {
	if v.StrictOK {
		return status == http.StatusOK
	}
	return status >= 200 && status < 300
}

func (v Variant) inlineFormat() string {
	if v.InlineFormat == "" {
		return DefaultInlineFormat
	}
	return v.InlineFormat
}

func (v Variant) extract(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", &doubao.ResponseFormatError{Path: v.ExtractPath, Body: string(data)}
	}
	res := gjson.GetBytes(data, v.ExtractPath)
	if v.Missing == MissingEmpty {
		return res.String(), nil
	}
	if !res.Exists() || res.Type != gjson.String {
		return "", &doubao.ResponseFormatError{Path: v.ExtractPath, Body: string(data)}
	}
	return res.Str, nil
}
