package scanlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantKind   LineKind
		wantTokens []string
		wantValue  string
		wantHas    bool
	}{
		{
			name:       "data line",
			line:       "7000.5 1.2e+03 -4 15\n",
			wantKind:   KindData,
			wantTokens: []string{"7000.5", "1.2e+03", "-4", "15"},
		},
		{
			name:       "data line with leading whitespace",
			line:       "   1 2",
			wantKind:   KindData,
			wantTokens: []string{"1", "2"},
		},
		{
			name:       "data line without extractable tokens",
			line:       " #x",
			wantKind:   KindData,
			wantTokens: []string{},
		},
		{
			name:       "motor names skip the marker",
			line:       "#O0 th  tth chi_2",
			wantKind:   KindMotorNames,
			wantTokens: []string{"th", "tth", "chi_2"},
		},
		{
			name:       "motor positions",
			line:       "#P0 0.0 12.5 -3",
			wantKind:   KindMotorPositions,
			wantTokens: []string{"0.0", "12.5", "-3"},
		},
		{
			name:       "column names",
			line:       "#L energy I0 pl0 pl1",
			wantKind:   KindColumnNames,
			wantTokens: []string{"energy", "I0", "pl0", "pl1"},
		},
		{
			name:      "scan start",
			line:      "#S 12 ascan th 0 1 10 1",
			wantKind:  KindScanStart,
			wantValue: "12",
			wantHas:   true,
		},
		{
			name:     "scan start without number",
			line:     "#S ascan",
			wantKind: KindScanStart,
		},
		{
			name:      "exposure time",
			line:      "#T 1  (Seconds)",
			wantKind:  KindExposureTime,
			wantValue: "1",
			wantHas:   true,
		},
		{
			name:      "exposure time at end of line",
			line:      "#T 5\r\n",
			wantKind:  KindExposureTime,
			wantValue: "5",
			wantHas:   true,
		},
		{
			name:     "fractional exposure is not an integer token",
			line:     "#T 0.5 (Seconds)",
			wantKind: KindExposureTime,
		},
		{
			name:      "date keeps remainder verbatim",
			line:      "#D Wed Dec 02 10:00:00 2015\n",
			wantKind:  KindDate,
			wantValue: "Wed Dec 02 10:00:00 2015",
			wantHas:   true,
		},
		{
			name:     "date without separator",
			line:     "#Dfoo",
			wantKind: KindDate,
		},
		{
			name:     "blank line",
			line:     "   \t\n",
			wantKind: KindOther,
		},
		{
			name:     "empty line",
			line:     "",
			wantKind: KindOther,
		},
		{
			name:     "unknown directive",
			line:     "#C comment",
			wantKind: KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)
			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantTokens != nil {
				assert.Equal(t, tt.wantTokens, got.Tokens)
			}
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, tt.wantHas, got.HasValue)
		})
	}
}

func TestClassify_StripsTerminator(t *testing.T) {
	got := Classify("#S 3 loopscan\r\n")
	assert.Equal(t, "#S 3 loopscan", got.Raw)
}

func TestLineKind_String(t *testing.T) {
	assert.Equal(t, "data", KindData.String())
	assert.Equal(t, "scan_start", KindScanStart.String())
	assert.Equal(t, "unknown", LineKind(99).String())
}
