package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Vector
	}{
		{"nil", nil, nil},
		{"pgvector text", "[1,2.5,-3]", Vector{1, 2.5, -3}},
		{"pgvector bytes", []byte("[0.25, 0.5]"), Vector{0.25, 0.5}},
		{"json object", `{"1": 2, "0": 1, "2": 3}`, Vector{1, 2, 3}},
		{"array literal", "{1,2,3}", Vector{1, 2, 3}},
		{"quoted json", `"[4,5]"`, Vector{4, 5}},
		{"float64 slice", []float64{1, 0}, Vector{1, 0}},
		{"any slice", []any{float64(1), "2", 3}, Vector{1, 2, 3}},
		{"map", map[string]any{"1": float64(9), "0": float64(8)}, Vector{8, 9}},
		{"empty text", "", nil},
		{"null text", "null", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVector(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVector_Errors(t *testing.T) {
	for _, src := range []any{"[1,\"x\"]", `{"a": 1}`, "abc", 42, []any{true}} {
		_, err := ParseVector(src)
		assert.Error(t, err, "source %v", src)
	}
}

func TestVector_ScanAndValue(t *testing.T) {
	var v Vector
	require.NoError(t, v.Scan("[1,0.5]"))
	assert.Equal(t, Vector{1, 0.5}, v)

	val, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, "[1,0.5]", val)

	var empty Vector
	val, err = empty.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}
