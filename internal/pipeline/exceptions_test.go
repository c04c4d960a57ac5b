package pipeline

import (
	"testing"

	"tacosync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12,5%", 12.5, false},
		{"12.5", 12.5, false},
		{" 8% ", 8, false},
		{"0", 0, false},
		{"-3,2", -3.2, false},
		{"", 0, true},
		{"abc", 0, true},
		{"%", 0, true},
	}

	for _, tc := range cases {
		got, err := ParsePercent(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseCostExceptions(t *testing.T) {
	rows := [][]string{
		{"SKU", "Percentual"}, // header row has no parsable pct
		{"A1", "10"},
		{" B2 ", "12,5%"},
		{"", "5"},
		{"C3"}, // short row
	}

	exceptions := ParseCostExceptions(rows)
	assert.Equal(t, map[string]float64{"A1": 10, "B2": 12.5}, exceptions)
}

func TestParseTaxExceptions(t *testing.T) {
	rows := [][]string{
		{"SKU", "Tax", "ICMS", "Fixo", "PIS", "COFINS"}, // header row has no parsable tax
		{"A1", "5", "1", "1", "0,65", "3"},
		{"B2", "4%"}, // trailing cells default to zero
	}

	exceptions := ParseTaxExceptions(rows)
	require.Len(t, exceptions, 2)

	a1 := exceptions["A1"]
	assert.Equal(t, models.TaxException{NewTaxSheet: 5, ICMS: 1, Fixo: 1, PIS: 0.65, Cofins: 3}, a1)
	assert.Equal(t, 10.65, a1.Total())

	b2 := exceptions["B2"]
	assert.Equal(t, 4.0, b2.Total())
}
