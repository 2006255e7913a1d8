package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantNil bool
	}{
		{"thousands separator", "1,234", 1234, false},
		{"negative with separators", "-12,500", -12500, false},
		{"explicit plus", "+4,000", 4000, false},
		{"embedded spaces", " 1 234 567 ", 1234567, false},
		{"unchanged upper", "UNCH", 0, false},
		{"unchanged mixed case", "Unch", 0, false},
		{"literal zero", "0", 0, false},
		{"empty", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"dashes", "----", 0, true},
		{"em dash", "—", 0, true},
		{"null word", "null", 0, true},
		{"python none", "None", 0, true},
		{"garbage", "12abc", 0, true},
		{"decimal is not an integer token", "12.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToken(tt.raw)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseToken_UnchangedIsNotMissing(t *testing.T) {
	unch := ParseToken("UNCH")
	missing := ParseToken("----")

	require.NotNil(t, unch)
	assert.Equal(t, int64(0), *unch)
	assert.Nil(t, missing)
}

func TestParseSplitToken(t *testing.T) {
	got := ParseSplitToken("-", "64")
	require.NotNil(t, got)
	assert.Equal(t, int64(-64), *got)

	got = ParseSplitToken("1,2", "00")
	require.NotNil(t, got)
	assert.Equal(t, int64(1200), *got)

	assert.Nil(t, ParseSplitToken("-"))
	assert.Nil(t, ParseSplitToken("", " "))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantNil bool
	}{
		{"2.84", 2.84, false},
		{"2.84%", 2.84, false},
		{"18.5x", 18.5, false},
		{"1,050.25", 1050.25, false},
		{"+12.0 bps", 12.0, false},
		{"$61.20", 61.20, false},
		{"UNCH", 0, false},
		{"----", 0, true},
		{"n/a", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseDecimal(tt.raw)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}
}

func TestParseDecimal_NonFiniteIsReturned(t *testing.T) {
	got := ParseDecimal("NaN")
	require.NotNil(t, got)
	assert.True(t, math.IsNaN(*got))
}

func TestIsNullToken(t *testing.T) {
	for _, raw := range []string{"", "  ", "----", "---", "--", "-", "—", "–", "null", "None", "N/A", "n/a", " N/A "} {
		assert.True(t, IsNullToken(raw), "%q", raw)
		assert.Nil(t, ParseToken(raw), "%q", raw)
	}
	for _, raw := range []string{"UNCH", "0", "lots", "1,234"} {
		assert.False(t, IsNullToken(raw), "%q", raw)
	}
}
