package service

import "github.com/rl1809/redis-cart/internal/core/domain"

type cartDiff struct {
	set map[string]int64
	del []string
}

func (d cartDiff) empty() bool {
	return len(d.set) == 0 && len(d.del) == 0
}

// diffCarts computes the minimal batch of writes and deletions that turns
// current into target. Target entries with quantity <= 0 are deletions, as are
// current entries that target omits. Entries already at their target quantity
// produce no write.
func diffCarts(current, target map[string]int64) cartDiff {
	diff := cartDiff{set: make(map[string]int64)}

	for sku, qty := range target {
		cur, exists := current[sku]
		if qty <= 0 {
			if exists {
				diff.del = append(diff.del, sku)
			}
			continue
		}
		if !exists || qty != cur {
			diff.set[sku] = qty
		}
	}

	for sku := range current {
		if _, mentioned := target[sku]; !mentioned {
			diff.del = append(diff.del, sku)
		}
	}

	return diff
}

// normalizeCart keeps only the entries of target with positive quantity.
func normalizeCart(target map[string]int64) domain.Cart {
	cart := make(domain.Cart, len(target))
	for sku, qty := range target {
		if qty > 0 {
			cart[sku] = qty
		}
	}
	return cart
}
