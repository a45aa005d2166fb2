package sales

import "fmt"

// TaxRateBasisPoints is the flat 10% tax.
const TaxRateBasisPoints = 1000

// Bounds in cents that keep every amount, including tax, inside int64.
const (
	MaxAmount   int64 = 1_000_000_000_000_000
	MaxQuantity       = 1_000_000
)

// CheckAmounts rejects inputs whose subtotal, discount or shipping would
// exceed MaxAmount.
func CheckAmounts(items []Item, discount, shipping int64) error {
	if discount > MaxAmount {
		return fmt.Errorf("discount_amount must be less than or equal to %d", MaxAmount)
	}
	if shipping > MaxAmount {
		return fmt.Errorf("shipping_amount must be less than or equal to %d", MaxAmount)
	}
	var subtotal int64
	for i, it := range items {
		if it.Price < 0 || it.Price > MaxAmount {
			return fmt.Errorf("items[%d].price must be between 0 and %d", i, MaxAmount)
		}
		if it.Quantity > MaxQuantity {
			return fmt.Errorf("items[%d].quantity must be less than or equal to %d", i, MaxQuantity)
		}
		qty := int64(max(it.Quantity, 1))
		if it.Price > (MaxAmount-subtotal)/qty {
			return fmt.Errorf("subtotal must be less than or equal to %d", MaxAmount)
		}
		subtotal += it.Price * qty
	}
	return nil
}

type Amounts struct {
	Subtotal int64
	Tax      int64
	Discount int64
	Shipping int64
	Total    int64
}

// CalculateAmounts derives the monetary fields from items. Line-level
// discounts are informational and not subtracted. The order discount is
// capped so the total never goes negative. Inputs must pass CheckAmounts.
func CalculateAmounts(items []Item, discount, shipping int64) Amounts {
	var subtotal int64
	for _, it := range items {
		qty := int64(it.Quantity)
		if qty < 1 {
			qty = 1
		}
		subtotal += it.Price * qty
	}
	// round half up
	tax := (subtotal*TaxRateBasisPoints + 5000) / 10000

	if discount < 0 {
		discount = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	if gross := subtotal + tax + shipping; discount > gross {
		discount = gross
	}

	return Amounts{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal + tax + shipping - discount,
	}
}

func (a Amounts) apply(s *Sale) {
	s.SubtotalAmount = a.Subtotal
	s.TaxAmount = a.Tax
	s.DiscountAmount = a.Discount
	s.ShippingAmount = a.Shipping
	s.TotalAmount = a.Total
}
