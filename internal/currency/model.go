package currency

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code          string    `db:"code" json:"code"`
	Symbol        string    `db:"symbol" json:"symbol"`
	DecimalPlaces int32     `db:"decimal_places" json:"decimal_places"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	IsDefault     bool      `db:"is_default" json:"is_default"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Format renders an amount with the currency symbol, fixed to the
// currency's decimal places.
func Format(amount decimal.Decimal, cur Currency) string {
	return cur.Symbol + amount.StringFixed(cur.DecimalPlaces)
}

type CreateCurrencyRequest struct {
	Code          string `json:"code" binding:"required,len=3"`
	Symbol        string `json:"symbol" binding:"required"`
	DecimalPlaces int32  `json:"decimal_places" binding:"gte=0,lte=4"`
}
