package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractedMetrics_Int(t *testing.T) {
	m := ExtractedMetrics{
		"int":        12,
		"float":      4000.0,
		"fraction":   1.5,
		"nan":        math.NaN(),
		"huge":       1e19,
		"neg_huge":   -1e300,
		"number":     json.Number("-2500"),
		"token":      "12,345",
		"unch":       "UNCH",
		"dashes":     "----",
		"null_value": nil,
	}

	tests := []struct {
		key  string
		want *int64
	}{
		{"int", i64(12)},
		{"float", i64(4000)},
		{"fraction", nil},
		{"nan", nil},
		{"huge", nil},
		{"neg_huge", nil},
		{"number", i64(-2500)},
		{"token", i64(12345)},
		{"unch", i64(0)},
		{"dashes", nil},
		{"null_value", nil},
		{"absent", nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Int(tt.key))
		})
	}
}

func TestExtractedMetrics_FloatAndText(t *testing.T) {
	m := ExtractedMetrics{"spread": "4.25", "pe": json.Number("21.5"), "date": " 2025-06-19 "}

	f, ok := m.Float("spread")
	require.True(t, ok)
	assert.Equal(t, 4.25, f)

	f, ok = m.Float("pe")
	require.True(t, ok)
	assert.Equal(t, 21.5, f)

	_, ok = m.Float("date")
	assert.False(t, ok)

	assert.Equal(t, "2025-06-19", m.Text("date"))
	assert.Equal(t, []string{"absent"}, m.Missing("spread", "absent"))
}

func TestExtractedMetrics_WithDoesNotMutate(t *testing.T) {
	m := ExtractedMetrics{"a": 1}
	out := m.With("b", 2)

	assert.False(t, m.Has("b"))
	assert.True(t, out.Has("b"))
}

func i64(v int64) *int64 { return &v }
