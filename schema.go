package doubao

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/skosovsky/doubao/internal/cast"
)

// FieldType is a host editor input/output type name.
type FieldType string

// Host editor field types.
const (
	TypeString FieldType = "STRING"
	TypeInt    FieldType = "INT"
	TypeFloat  FieldType = "FLOAT"
	TypeImage  FieldType = "IMAGE"
)

// Known reports whether t is one of the supported field types.
func (t FieldType) Known() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeImage:
		return true
	default:
		return false
	}
}

// InputField declares one node input: its type, default value and widget constraints.
// Min/Max are inclusive; nil means unbounded.
type InputField struct {
	Name      string    `yaml:"name" json:"name"`
	Type      FieldType `yaml:"type" json:"type"`
	Default   any       `yaml:"default,omitempty" json:"default,omitempty"`
	Min       *float64  `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64  `yaml:"max,omitempty" json:"max,omitempty"`
	Step      *float64  `yaml:"step,omitempty" json:"step,omitempty"`
	Multiline bool      `yaml:"multiline,omitempty" json:"multiline,omitempty"`
}

// NodeSpec is the host contract of a node: input schema, result arity and
// types, entry point name and display metadata.
type NodeSpec struct {
	Name        string
	DisplayName string
	Category    string
	Function    string
	Description string
	Required    []InputField
	Optional    []InputField
	ReturnTypes []FieldType
	ReturnNames []string
}

// Field returns the declared input with the given name.
func (s NodeSpec) Field(name string) (InputField, bool) {
	for _, f := range s.Required {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range s.Optional {
		if f.Name == name {
			return f, true
		}
	}
	return InputField{}, false
}

// Clone returns a copy whose slices can be mutated independently.
func (s NodeSpec) Clone() NodeSpec {
	out := s
	out.Required = slices.Clone(s.Required)
	out.Optional = slices.Clone(s.Optional)
	out.ReturnTypes = slices.Clone(s.ReturnTypes)
	out.ReturnNames = slices.Clone(s.ReturnNames)
	return out
}

// Resolve builds Inputs from raw host values. Missing fields take their declared
// default; a missing required field without a default is a ValidationError.
// Values are coerced to the declared type and numeric values are checked against
// Min/Max. Unknown keys are ignored.
func (s NodeSpec) Resolve(raw map[string]any) (Inputs, error) {
	in := make(Inputs, len(s.Required)+len(s.Optional))
	for _, f := range s.Required {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Default == nil {
				return nil, &ValidationError{Node: s.Name, Field: f.Name, Reason: "required input is missing"}
			}
			v = f.Default
		}
		cv, err := s.coerce(f, v)
		if err != nil {
			return nil, err
		}
		in[f.Name] = cv
	}
	for _, f := range s.Optional {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Default == nil {
				continue
			}
			v = f.Default
		}
		cv, err := s.coerce(f, v)
		if err != nil {
			return nil, err
		}
		in[f.Name] = cv
	}
	return in, nil
}

func (s NodeSpec) coerce(f InputField, v any) (any, error) {
	switch f.Type {
	case TypeString:
		str, ok := cast.ToString(v)
		if !ok {
			return nil, s.invalid(f, fmt.Sprintf("expected string, got %T", v))
		}
		return str, nil
	case TypeInt:
		i, ok := cast.ToInt64(v)
		if !ok {
			return nil, s.invalid(f, fmt.Sprintf("expected integer, got %T", v))
		}
		if err := s.checkRange(f, float64(i)); err != nil {
			return nil, err
		}
		return i, nil
	case TypeFloat:
		x, ok := cast.ToFloat64(v)
		if !ok {
			return nil, s.invalid(f, fmt.Sprintf("expected number, got %T", v))
		}
		if err := s.checkRange(f, x); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return v, nil
	}
}

func (s NodeSpec) checkRange(f InputField, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return s.invalid(f, "value must be a finite number")
	}
	if f.Min != nil && x < *f.Min {
		return s.invalid(f, "value "+formatNumber(x)+" is below minimum "+formatNumber(*f.Min))
	}
	if f.Max != nil && x > *f.Max {
		return s.invalid(f, "value "+formatNumber(x)+" is above maximum "+formatNumber(*f.Max))
	}
	return nil
}

func (s NodeSpec) invalid(f InputField, reason string) error {
	return &ValidationError{Node: s.Name, Field: f.Name, Reason: reason}
}

func formatNumber(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
