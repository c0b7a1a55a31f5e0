package port

import (
	"context"
	"time"

	"github.com/rl1809/redis-cart/internal/core/domain"
)

type CartRepository interface {
	// AddItem atomically increments the quantity of sku by qty, creating the
	// entry if absent, and refreshes the cart's expiry marker. Returns the new
	// total quantity for the SKU.
	AddItem(ctx context.Context, userID, sku string, qty int64) (int64, error)

	// RemoveItem decrements sku by qty, deleting the entry entirely when
	// qty >= the current quantity, then re-evaluates the expiry marker.
	// found is false when the SKU is not in the cart; nothing is mutated then.
	RemoveItem(ctx context.Context, userID, sku string, qty int64) (remaining int64, found bool, err error)

	// GetCart returns the full cart. Unknown users get an empty cart, not an error.
	GetCart(ctx context.Context, userID string) (domain.Cart, error)

	// ApplyDiff applies a precomputed set of field writes and deletions as one
	// transaction, then sets or deletes the expiry marker according to
	// emptyAfter. Concurrent readers never observe a partially applied diff.
	ApplyDiff(ctx context.Context, userID string, set map[string]int64, del []string, emptyAfter bool) error

	// ClearCart deletes the cart and its expiry marker. Idempotent.
	ClearCart(ctx context.Context, userID string) error

	// Checkout atomically snapshots the cart, appends an order record to the
	// order stream, and deletes the cart and its marker. A nil snapshot with a
	// nil error means the cart was empty and nothing was written.
	Checkout(ctx context.Context, userID, orderID string, at time.Time) (snapshot domain.Cart, streamID string, err error)

	// RecentOrders returns up to count order records, newest first.
	RecentOrders(ctx context.Context, count int64) ([]domain.Order, error)
}

type ProfileRepository interface {
	// SaveProfile creates or updates a user profile. JoinedAt is only written
	// on first save.
	SaveProfile(ctx context.Context, profile domain.UserProfile) error

	// GetProfile returns nil, nil when no profile exists.
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}
