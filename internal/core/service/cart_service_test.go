package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/redis-cart/internal/core/domain"
)

// Mock CartRepository. Mirrors the store rules: atomic per-call mutation and
// the marker existing exactly when the cart is non-empty.
type mockCartRepo struct {
	mu             sync.Mutex
	carts          map[string]map[string]int64
	markers        map[string]bool
	orders         []domain.Order
	applyDiffCalls int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts:   make(map[string]map[string]int64),
		markers: make(map[string]bool),
	}
}

func (m *mockCartRepo) refreshMarker(userID string) {
	if len(m.carts[userID]) > 0 {
		m.markers[userID] = true
	} else {
		delete(m.markers, userID)
	}
}

func (m *mockCartRepo) AddItem(ctx context.Context, userID, sku string, qty int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.carts[userID] == nil {
		m.carts[userID] = make(map[string]int64)
	}
	m.carts[userID][sku] += qty
	m.refreshMarker(userID)
	return m.carts[userID][sku], nil
}

func (m *mockCartRepo) RemoveItem(ctx context.Context, userID, sku string, qty int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.carts[userID][sku]
	if !exists {
		return 0, false, nil
	}

	var remaining int64
	if qty >= current {
		delete(m.carts[userID], sku)
	} else {
		remaining = current - qty
		m.carts[userID][sku] = remaining
	}
	m.refreshMarker(userID)
	return remaining, true, nil
}

func (m *mockCartRepo) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := make(domain.Cart, len(m.carts[userID]))
	for sku, qty := range m.carts[userID] {
		cart[sku] = qty
	}
	return cart, nil
}

func (m *mockCartRepo) ApplyDiff(ctx context.Context, userID string, set map[string]int64, del []string, emptyAfter bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyDiffCalls++
	if m.carts[userID] == nil {
		m.carts[userID] = make(map[string]int64)
	}
	for sku, qty := range set {
		m.carts[userID][sku] = qty
	}
	for _, sku := range del {
		delete(m.carts[userID], sku)
	}
	if emptyAfter {
		delete(m.markers, userID)
	} else {
		m.markers[userID] = true
	}
	return nil
}

func (m *mockCartRepo) ClearCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, userID)
	delete(m.markers, userID)
	return nil
}

func (m *mockCartRepo) Checkout(ctx context.Context, userID, orderID string, at time.Time) (domain.Cart, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.carts[userID]) == 0 {
		return nil, "", nil
	}

	snapshot := make(domain.Cart, len(m.carts[userID]))
	for sku, qty := range m.carts[userID] {
		snapshot[sku] = qty
	}

	streamID := fmt.Sprintf("%d-0", len(m.orders)+1)
	m.orders = append(m.orders, domain.Order{
		ID:           orderID,
		UserID:       userID,
		StreamID:     streamID,
		Items:        snapshot.Clone(),
		CheckedOutAt: at,
	})

	delete(m.carts, userID)
	delete(m.markers, userID)
	return snapshot, streamID, nil
}

func (m *mockCartRepo) RecentOrders(ctx context.Context, count int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []domain.Order
	for i := len(m.orders) - 1; i >= 0 && int64(len(orders)) < count; i-- {
		orders = append(orders, m.orders[i])
	}
	return orders, nil
}

func (m *mockCartRepo) markerExists(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[userID]
}

func (m *mockCartRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func drain(svc *CartService) {
	go func() {
		for range svc.ArchiveQueue() {
		}
	}()
}

func TestAddItem_AccumulatesQuantities(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()
	drain(svc)

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 1)
	svc.AddItem(ctx, "u1", "B", 2)
	total, err := svc.AddItem(ctx, "u1", "A", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected new total 2 for A, got %d", total)
	}

	cart, _ := svc.Cart(ctx, "u1")
	want := domain.Cart{"A": 2, "B": 2}
	if !reflect.DeepEqual(cart, want) {
		t.Errorf("expected cart %v, got %v", want, cart)
	}
	if !repo.markerExists("u1") {
		t.Error("expected marker for non-empty cart")
	}
}

func TestAddItem_Validation(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()

	if _, err := svc.AddItem(ctx, "u1", "", 1); !errors.Is(err, ErrEmptySKU) {
		t.Errorf("expected ErrEmptySKU, got %v", err)
	}
	if _, err := svc.AddItem(ctx, "u1", "A", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.AddItem(ctx, "u1", "A", -3); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}

	cart, _ := svc.Cart(ctx, "u1")
	if !cart.IsEmpty() {
		t.Errorf("expected no mutation after validation errors, got %v", cart)
	}
}

func TestRemoveItem_Partial(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 5)

	remaining, err := svc.RemoveItem(ctx, "u1", "A", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 3 {
		t.Errorf("expected remaining 3, got %d", remaining)
	}
	if !repo.markerExists("u1") {
		t.Error("expected marker while cart still non-empty")
	}
}

func TestRemoveItem_OverRemovalDeletes(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)
	svc.AddItem(ctx, "u1", "B", 2)

	remaining, err := svc.RemoveItem(ctx, "u1", "A", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected remaining 0, got %d", remaining)
	}

	cart, _ := svc.Cart(ctx, "u1")
	want := domain.Cart{"B": 2}
	if !reflect.DeepEqual(cart, want) {
		t.Errorf("expected cart %v, got %v", want, cart)
	}
}

func TestRemoveItem_LastItemClearsMarker(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)
	svc.RemoveItem(ctx, "u1", "A", 2)

	if repo.markerExists("u1") {
		t.Error("expected no marker for empty cart")
	}
}

func TestRemoveItem_NotFound(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)

	if _, err := svc.RemoveItem(ctx, "u1", "X", 1); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	cart, _ := svc.Cart(ctx, "u1")
	want := domain.Cart{"A": 2}
	if !reflect.DeepEqual(cart, want) {
		t.Errorf("expected cart unchanged %v, got %v", want, cart)
	}
}

func TestReplaceCart_RoundTrip(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)
	svc.AddItem(ctx, "u1", "B", 2)

	result, err := svc.ReplaceCart(ctx, "u1", map[string]int64{"A": 0, "C": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.Cart{"C": 5}
	if !reflect.DeepEqual(result, want) {
		t.Errorf("expected result %v, got %v", want, result)
	}

	cart, _ := svc.Cart(ctx, "u1")
	if !reflect.DeepEqual(cart, want) {
		t.Errorf("expected cart %v after replace, got %v", want, cart)
	}
	if !repo.markerExists("u1") {
		t.Error("expected marker for non-empty cart")
	}
}

func TestReplaceCart_ToEmpty(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)

	result, err := svc.ReplaceCart(ctx, "u1", map[string]int64{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsEmpty() {
		t.Errorf("expected empty result, got %v", result)
	}

	cart, _ := svc.Cart(ctx, "u1")
	if !cart.IsEmpty() {
		t.Errorf("expected empty cart, got %v", cart)
	}
	if repo.markerExists("u1") {
		t.Error("expected no marker for empty cart")
	}
}

func TestReplaceCart_NoChangesSkipsWrite(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)

	if _, err := svc.ReplaceCart(ctx, "u1", map[string]int64{"A": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.applyDiffCalls != 0 {
		t.Errorf("expected no batch write for identical target, got %d", repo.applyDiffCalls)
	}
}

func TestClearCart_Idempotent(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)

	if err := svc.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("expected clearing an empty cart to succeed, got %v", err)
	}

	cart, _ := svc.Cart(ctx, "u1")
	if !cart.IsEmpty() {
		t.Errorf("expected empty cart, got %v", cart)
	}
	if repo.markerExists("u1") {
		t.Error("expected no marker after clear")
	}
}

func TestCheckout_Success(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 2)
	svc.AddItem(ctx, "u1", "B", 2)

	order, err := svc.Checkout(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.Cart{"A": 2, "B": 2}
	if !reflect.DeepEqual(order.Items, want) {
		t.Errorf("expected snapshot %v, got %v", want, order.Items)
	}
	if order.ID == "" {
		t.Error("expected non-empty order ID")
	}
	if order.StreamID == "" {
		t.Error("expected non-empty stream ID")
	}

	cart, _ := svc.Cart(ctx, "u1")
	if !cart.IsEmpty() {
		t.Errorf("expected empty cart after checkout, got %v", cart)
	}
	if repo.markerExists("u1") {
		t.Error("expected no marker after checkout")
	}
	if repo.orderCount() != 1 {
		t.Errorf("expected exactly one order record, got %d", repo.orderCount())
	}

	// The completed order is on the archive queue.
	queued := <-svc.ArchiveQueue()
	if queued.ID != order.ID {
		t.Errorf("expected queued order %s, got %s", order.ID, queued.ID)
	}

	svc.Close()
}

func TestCheckout_EmptyCart(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()

	if _, err := svc.Checkout(ctx, "u1"); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
	if repo.orderCount() != 0 {
		t.Errorf("expected no order record, got %d", repo.orderCount())
	}
}

func TestRecentOrders_NewestFirst(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()
	drain(svc)

	ctx := context.Background()
	svc.AddItem(ctx, "u1", "A", 1)
	first, _ := svc.Checkout(ctx, "u1")
	svc.AddItem(ctx, "u1", "B", 1)
	second, _ := svc.Checkout(ctx, "u1")

	orders, err := svc.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != second.ID || orders[1].ID != first.ID {
		t.Errorf("expected newest-first ordering, got %s then %s", orders[0].ID, orders[1].ID)
	}
}

func TestAddItem_Concurrent(t *testing.T) {
	repo := newMockCartRepo()
	svc := NewCartService(repo, 10)
	defer svc.Close()

	ctx := context.Background()
	goroutines := 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddItem(ctx, "u1", "A", 1); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	cart, _ := svc.Cart(ctx, "u1")
	if cart["A"] != int64(goroutines) {
		t.Errorf("expected quantity %d, got %d", goroutines, cart["A"])
	}
}
