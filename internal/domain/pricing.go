package domain

// Consistent reports whether the breakdown adds up: every component
// non-negative and total equal to subtotal + tax + shipping - discount.
func (t OrderTotals) Consistent() bool {
	if t.Subtotal < 0 || t.Tax < 0 || t.Shipping < 0 || t.Discount < 0 || t.Total < 0 {
		return false
	}
	return t.Total == t.Subtotal+t.Tax+t.Shipping-t.Discount
}

// MatchesItems reports whether the subtotal equals the sum of the line amounts.
func (t OrderTotals) MatchesItems(items []OrderItem) bool {
	var sum int64
	for _, item := range items {
		sum += item.UnitPrice * int64(item.Quantity)
	}
	return t.Subtotal == sum
}
