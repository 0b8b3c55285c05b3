package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriceString(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"$2.45", 2.45},
		{"$1,234.56", 1234.56},
		{"$0.03", 0.03},
		{"12,45zł", 12.45},
		{"1 234,56zł", 1234.56},
		{"150", 150},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePriceString(tt.input)
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := ParsePriceString("free")
	assert.Error(t, err)
}
