package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/redis-cart/internal/core/domain"
	"github.com/rl1809/redis-cart/internal/port"
)

var (
	// Validation errors, rejected before any store interaction.
	ErrEmptySKU        = errors.New("sku must not be empty")
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// Benign outcomes, informational rather than failures.
	ErrItemNotFound = errors.New("item not in cart")
	ErrEmptyCart    = errors.New("cart is empty, nothing to checkout")
)

const defaultRecentOrders = 10

type CartService struct {
	carts        port.CartRepository
	archiveQueue chan domain.Order
}

func NewCartService(carts port.CartRepository, queueSize int) *CartService {
	return &CartService{
		carts:        carts,
		archiveQueue: make(chan domain.Order, queueSize),
	}
}

func validateItem(sku string, qty int64) error {
	if sku == "" {
		return ErrEmptySKU
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// AddItem increments the cart quantity for sku by qty and returns the new total.
func (s *CartService) AddItem(ctx context.Context, userID, sku string, qty int64) (int64, error) {
	if err := validateItem(sku, qty); err != nil {
		return 0, err
	}
	return s.carts.AddItem(ctx, userID, sku, qty)
}

// RemoveItem decrements the cart quantity for sku by qty. Removing at least
// the current quantity deletes the item; a zero return with a nil error means
// the item is gone. An absent SKU reports ErrItemNotFound and mutates nothing.
func (s *CartService) RemoveItem(ctx context.Context, userID, sku string, qty int64) (int64, error) {
	if err := validateItem(sku, qty); err != nil {
		return 0, err
	}
	remaining, found, err := s.carts.RemoveItem(ctx, userID, sku, qty)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrItemNotFound
	}
	return remaining, nil
}

func (s *CartService) Cart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.carts.GetCart(ctx, userID)
}

// ReplaceCart reconciles the stored cart with target: entries with quantity
// <= 0 and entries omitted from target are deleted, everything else is set to
// its target quantity. The writes are applied as a single batch. Returns the
// resulting cart.
func (s *CartService) ReplaceCart(ctx context.Context, userID string, target map[string]int64) (domain.Cart, error) {
	current, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	diff := diffCarts(current, target)
	result := normalizeCart(target)
	if diff.empty() {
		return result, nil
	}

	if err := s.carts.ApplyDiff(ctx, userID, diff.set, diff.del, result.IsEmpty()); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	return s.carts.ClearCart(ctx, userID)
}

// Checkout snapshots the cart into an immutable order record, appends it to
// the order stream, and empties the cart, all in one atomic store operation.
// The completed order is handed to the archive queue before returning.
// An empty cart reports ErrEmptyCart and writes nothing.
func (s *CartService) Checkout(ctx context.Context, userID string) (*domain.Order, error) {
	orderID := uuid.NewString()
	now := time.Now().UTC()

	snapshot, streamID, err := s.carts.Checkout(ctx, userID, orderID, now)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	order := domain.Order{
		ID:           orderID,
		UserID:       userID,
		StreamID:     streamID,
		Items:        snapshot,
		CheckedOutAt: now,
	}

	s.archiveQueue <- order

	return &order, nil
}

func (s *CartService) RecentOrders(ctx context.Context, count int64) ([]domain.Order, error) {
	if count <= 0 {
		count = defaultRecentOrders
	}
	return s.carts.RecentOrders(ctx, count)
}

// ArchiveQueue exposes completed orders for the archive workers.
func (s *CartService) ArchiveQueue() <-chan domain.Order {
	return s.archiveQueue
}

func (s *CartService) Close() {
	close(s.archiveQueue)
}
