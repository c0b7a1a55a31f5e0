package domain

// Cart maps SKU to quantity. Entries with quantity <= 0 are never persisted;
// removing the last unit of an item removes the field itself.
type Cart map[string]int64

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

// TotalUnits is the sum of all item quantities in the cart.
func (c Cart) TotalUnits() int64 {
	var total int64
	for _, qty := range c {
		total += qty
	}
	return total
}

// Clone returns an independent copy of the cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for sku, qty := range c {
		out[sku] = qty
	}
	return out
}
