package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		cur    Currency
		want   string
	}{
		{"two places", "90.5", Currency{Code: "MYR", Symbol: "RM", DecimalPlaces: 2}, "RM90.50"},
		{"zero places", "1500", Currency{Code: "IDR", Symbol: "Rp", DecimalPlaces: 0}, "Rp1500"},
		{"rounds half up", "10.005", Currency{Code: "USD", Symbol: "$", DecimalPlaces: 2}, "$10.01"},
		{"pads out", "7", Currency{Code: "MYR", Symbol: "RM", DecimalPlaces: 2}, "RM7.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, Format(amount, tt.cur))
		})
	}
}
