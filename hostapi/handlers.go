package hostapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/imagecodec"
)

type handler struct {
	reg    *doubao.Registry
	logger *slog.Logger
}

// InvokeRequest is the body of POST /nodes/{node}/invoke. IMAGE inputs are
// base64 PNG/JPEG strings or data URLs.
type InvokeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// InvokeResponse carries the node's result tuple.
type InvokeResponse struct {
	Outputs []any `json:"outputs"`
}

// ErrorBody is the error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. Kind is one of validation, not_found,
// http_status, transport, response_format or internal.
type ErrorDetail struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// NodeInfo is a node schema in the editor's object_info shape.
type NodeInfo struct {
	Input       NodeInputs         `json:"input"`
	Output      []doubao.FieldType `json:"output"`
	OutputName  []string           `json:"output_name"`
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name"`
	Category    string             `json:"category"`
	Function    string             `json:"function"`
	Description string             `json:"description,omitempty"`
}

// NodeInputs maps input names to [TYPE] or [TYPE, options].
type NodeInputs struct {
	Required map[string][]any `json:"required"`
	Optional map[string][]any `json:"optional,omitempty"`
}

func (h *handler) objectInfo(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]NodeInfo, h.reg.Len())
	for _, spec := range h.reg.Specs() {
		out[spec.Name] = h.info(spec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) nodeInfo(w http.ResponseWriter, r *http.Request) {
	node, err := h.reg.Lookup(chi.URLParam(r, "node"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	spec := node.Spec()
	writeJSON(w, http.StatusOK, map[string]NodeInfo{spec.Name: h.info(spec)})
}

func (h *handler) invoke(w http.ResponseWriter, r *http.Request) {
	node, err := h.reg.Lookup(chi.URLParam(r, "node"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req InvokeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, &doubao.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	spec := node.Spec()
	inputs, err := decodeImages(spec, req.Inputs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	outputs, err := node.Invoke(r.Context(), inputs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if outputs == nil {
		outputs = doubao.Outputs{}
	}
	writeJSON(w, http.StatusOK, InvokeResponse{Outputs: outputs})
}

// decodeImages replaces string values of IMAGE fields with tensors.
func decodeImages(spec doubao.NodeSpec, raw map[string]any) (doubao.Inputs, error) {
	in := doubao.Inputs(maps.Clone(raw))
	if in == nil {
		in = doubao.Inputs{}
	}
	for _, f := range slices.Concat(spec.Required, spec.Optional) {
		if f.Type != doubao.TypeImage {
			continue
		}
		s, ok := in[f.Name].(string)
		if !ok {
			continue
		}
		px, err := imagecodec.DecodeBase64(s)
		if err != nil {
			return nil, &doubao.ValidationError{Node: spec.Name, Field: f.Name, Reason: err.Error()}
		}
		t, err := px.Tensor()
		if err != nil {
			return nil, &doubao.ValidationError{Node: spec.Name, Field: f.Name, Reason: err.Error()}
		}
		in[f.Name] = t
	}
	return in, nil
}

func (h *handler) info(spec doubao.NodeSpec) NodeInfo {
	names := spec.ReturnNames
	if len(names) == 0 {
		names = make([]string, len(spec.ReturnTypes))
		for i, t := range spec.ReturnTypes {
			names[i] = string(t)
		}
	}
	label, ok := h.reg.DisplayName(spec.Name)
	if !ok {
		label = spec.DisplayName
	}
	info := NodeInfo{
		Input:       NodeInputs{Required: fields(spec.Required)},
		Output:      spec.ReturnTypes,
		OutputName:  names,
		Name:        spec.Name,
		DisplayName: label,
		Category:    spec.Category,
		Function:    spec.Function,
		Description: spec.Description,
	}
	if len(spec.Optional) > 0 {
		info.Input.Optional = fields(spec.Optional)
	}
	return info
}

func fields(fs []doubao.InputField) map[string][]any {
	out := make(map[string][]any, len(fs))
	for _, f := range fs {
		opts := map[string]any{}
		if f.Default != nil {
			opts["default"] = f.Default
		}
		if f.Min != nil {
			opts["min"] = *f.Min
		}
		if f.Max != nil {
			opts["max"] = *f.Max
		}
		if f.Step != nil {
			opts["step"] = *f.Step
		}
		if f.Multiline {
			opts["multiline"] = true
		}
		if len(opts) == 0 {
			out[f.Name] = []any{f.Type}
			continue
		}
		out[f.Name] = []any{f.Type, opts}
	}
	return out
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "node request failed", "path", r.URL.Path, "kind", detail.Kind, "err", err)
	writeJSON(w, status, ErrorBody{Error: detail})
}

func classify(err error) (int, ErrorDetail) {
	var se *doubao.StatusError
	switch {
	case errors.Is(err, doubao.ErrValidation):
		return http.StatusBadRequest, ErrorDetail{Kind: "validation", Message: err.Error()}
	case errors.Is(err, doubao.ErrNodeNotFound):
		return http.StatusNotFound, ErrorDetail{Kind: "not_found", Message: err.Error()}
	case errors.As(err, &se):
		return http.StatusBadGateway, ErrorDetail{Kind: "http_status", Message: err.Error(), StatusCode: se.StatusCode}
	case errors.Is(err, doubao.ErrTransport):
		return http.StatusBadGateway, ErrorDetail{Kind: "transport", Message: err.Error()}
	case errors.Is(err, doubao.ErrResponseFormat):
		return http.StatusBadGateway, ErrorDetail{Kind: "response_format", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Kind: "internal", Message: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":{"kind":"internal","message":%q}}`, err.Error())
	}
}
