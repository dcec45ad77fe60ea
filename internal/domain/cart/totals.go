package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/bytebuy/internal/domain/payment"
)

var hundred = decimal.NewFromInt(100)

// Totals are the figures derived from a cart's line items.
type Totals struct {
	Subtotal  decimal.Decimal
	ItemCount int
}

// DeriveTotals sums price*quantity and quantity over all line items. No
// rounding is applied.
func DeriveTotals(c *Cart) Totals {
	t := Totals{Subtotal: decimal.Zero}
	for _, item := range c.Items {
		t.Subtotal = t.Subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		t.ItemCount += item.Quantity
	}
	return t
}

// PrepareCheckout maps line items, in cart order, to payment line items with
// unit prices in minor units. Stock is not checked here.
func PrepareCheckout(c *Cart) ([]payment.LineItem, error) {
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}
	items := make([]payment.LineItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = payment.LineItem{
			Name:       item.Name,
			UnitAmount: MinorUnits(item.Price),
			Quantity:   item.Quantity,
		}
	}
	return items, nil
}

// MinorUnits converts a price to cents, rounding half away from zero.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}
