// Package pricing holds the cart arithmetic. Every function is pure so
// totals can be recomputed from cart state at any time.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iurnickita/posmart/internal/model"
)

var hundred = decimal.NewFromInt(100)

type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Subtotal sums unitPrice × quantity over all lines without rounding.
func Subtotal(lines []model.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

// DiscountAmount never lets a fixed discount exceed the subtotal. Percentage
// values are trusted as validated on input.
func DiscountAmount(subtotal decimal.Decimal, discount model.Discount) decimal.Decimal {
	switch discount.Type {
	case model.DiscountFixed:
		return decimal.Min(discount.Value, subtotal)
	case model.DiscountPercentage:
		return subtotal.Mul(discount.Value).Div(hundred)
	default:
		return decimal.Zero
	}
}

func Total(subtotal, discountAmount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discountAmount)
}

// Summarize computes the derived amounts of a cart. Tax is always zero in
// the point-of-sale flow.
func Summarize(lines []model.LineItem, discount model.Discount) Summary {
	subtotal := Subtotal(lines)
	amount := DiscountAmount(subtotal, discount)
	return Summary{
		Subtotal: subtotal,
		Discount: amount,
		Tax:      decimal.Zero,
		Total:    Total(subtotal, amount),
	}
}
