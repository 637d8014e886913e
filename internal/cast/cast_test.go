package cast

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want float64
		ok   bool
	}{
		{"float64", float64(1.5), 1.5, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", 3, 3, true},
		{"int64", int64(4), 4, true},
		{"uint64", uint64(12), 12, true},
		{"json number", json.Number("0.7"), 0.7, true},
		{"numeric string", " 0.3 ", 0.3, true},
		{"bad string", "warm", 0, false},
		{"nan string", "NaN", 0, false},
		{"nan float64", math.NaN(), 0, false},
		{"inf float64", math.Inf(-1), 0, false},
		{"nan float32", float32(math.NaN()), 0, false},
		{"inf json number", json.Number("1e400"), 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToFloat64(tt.v)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want int64
		ok   bool
	}{
		{"int", 100, 100, true},
		{"float64 from json", float64(150), 150, true},
		{"float64 truncates", 99.9, 99, true},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"uint64 clamp", uint64(math.MaxUint64), math.MaxInt64, true},
		{"json number int", json.Number("200"), 200, true},
		{"json number float", json.Number("200.5"), 200, true},
		{"string", "120", 120, true},
		{"float string", "120.0", 120, true},
		{"bad string", "long", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToInt64(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want string
		ok   bool
	}{
		{"string", "cat", "cat", true},
		{"bytes", []byte("dog"), "dog", true},
		{"int", 7, "7", true},
		{"float", 0.5, "0.5", true},
		{"bool", false, "false", true},
		{"nil", nil, "", false},
		{"map", map[string]any{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToString(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
