// Command demo runs a scripted session against Redis: the sorted-set number
// demo, user profiles, and a shopping-cart walkthrough ending in checkout.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/redis-cart/internal/adapter/storage"
	"github.com/rl1809/redis-cart/internal/core/domain"
	"github.com/rl1809/redis-cart/internal/core/service"
)

const (
	queueSize = 16

	aliceID = "u1001"
	bobID   = "u2002"
)

func main() {
	godotenv.Load()

	ctx := context.Background()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis at %s: %v", redisAddr, err)
	}
	defer rdb.Close()
	fmt.Println("connected to redis")

	cartAdapter := storage.NewRedisAdapter(rdb, storage.CartConfig{})
	numberAdapter := storage.NewNumberAdapter(rdb)

	cartService := service.NewCartService(cartAdapter, queueSize)
	numberService := service.NewNumberService(numberAdapter)
	userService := service.NewUserService(cartAdapter)

	// No archive in the demo; drain the queue so checkout never blocks.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for order := range cartService.ArchiveQueue() {
			fmt.Printf("  (order %s queued for archiving, %d item kinds)\n", order.ID, len(order.Items))
		}
	}()

	numberDemo(ctx, numberService)
	cartDemo(ctx, cartService, userService, cartAdapter)

	cartService.Close()
	<-done
	fmt.Println("\ndemo finished")
}

func numberDemo(ctx context.Context, numbers *service.NumberService) {
	fmt.Println("\n======== NUMBER DEMO ========")

	must(numbers.Clear(ctx))
	must(numbers.InsertSequential(ctx))
	fmt.Println("inserted 1-100 into sorted set")

	must(numbers.InsertRandom(ctx))
	fmt.Println("inserted 100 random values into the same set")

	values, err := numbers.Numbers(ctx)
	must(err)
	fmt.Printf("retrieved %d values in descending order:\n", len(values))
	fmt.Println(values)
}

func cartDemo(ctx context.Context, carts *service.CartService, users *service.UserService, adapter *storage.RedisAdapter) {
	fmt.Println("\n======== SHOPPING CART DEMO ========")

	// Cleanup from previous runs.
	must(adapter.DeleteUserData(ctx, aliceID))
	must(adapter.DeleteUserData(ctx, bobID))

	fmt.Println("\n--- creating users ---")
	createUser(ctx, users, aliceID, "Alice Wonderland", "alice@example.com")
	createUser(ctx, users, bobID, "Bob The Builder", "bob@example.com")

	fmt.Println("\n--- alice's cart ---")
	addItem(ctx, carts, aliceID, "sku:book-thriller-001", 1)
	addItem(ctx, carts, aliceID, "sku:gadget-mouse-wireless", 2)
	addItem(ctx, carts, aliceID, "sku:book-thriller-001", 1)

	fmt.Println("\n--- bob's cart ---")
	addItem(ctx, carts, bobID, "sku:tool-hammer-claw", 1)
	addItem(ctx, carts, bobID, "sku:gadget-mouse-wireless", 1)

	displayCart(ctx, carts, aliceID)
	displayCart(ctx, carts, bobID)

	fmt.Println("\n--- alice's modifications ---")
	removeItem(ctx, carts, aliceID, "sku:gadget-mouse-wireless", 1)
	removeItem(ctx, carts, aliceID, "sku:non-existent-item-000", 1)
	removeItem(ctx, carts, aliceID, "sku:book-thriller-001", 5) // more than present, clears the item

	displayCart(ctx, carts, aliceID)

	fmt.Println("\n--- bob edits his cart as a table ---")
	result, err := carts.ReplaceCart(ctx, bobID, map[string]int64{
		"sku:tool-hammer-claw": 0, // zero quantity deletes
		"sku:paint-roller":     3, // mouse omitted, deleted as well
	})
	must(err)
	fmt.Printf("bob's cart after edit: %v\n", result)

	fmt.Println("\n--- checkout ---")
	checkout(ctx, carts, aliceID)
	checkout(ctx, carts, bobID)
	checkout(ctx, carts, bobID) // second attempt hits an empty cart

	displayCart(ctx, carts, aliceID)

	fmt.Println("\n--- recent orders ---")
	orders, err := carts.RecentOrders(ctx, 10)
	must(err)
	for _, o := range orders {
		fmt.Printf("%s  user=%s  at=%s  items=%v\n", o.StreamID, o.UserID, o.CheckedOutAt.Format("15:04:05"), o.Items)
	}
}

func createUser(ctx context.Context, users *service.UserService, userID, name, email string) {
	profile, err := users.Save(ctx, userID, name, email)
	must(err)
	fmt.Printf("user %s (%s) created\n", profile.UserID, profile.Name)
}

func addItem(ctx context.Context, carts *service.CartService, userID, sku string, qty int64) {
	total, err := carts.AddItem(ctx, userID, sku, qty)
	must(err)
	fmt.Printf("added %d x %s for %s, new quantity: %d\n", qty, sku, userID, total)
}

func removeItem(ctx context.Context, carts *service.CartService, userID, sku string, qty int64) {
	remaining, err := carts.RemoveItem(ctx, userID, sku, qty)
	if errors.Is(err, service.ErrItemNotFound) {
		fmt.Printf("%s not in cart for %s, nothing removed\n", sku, userID)
		return
	}
	must(err)
	if remaining == 0 {
		fmt.Printf("removed %s completely from cart for %s\n", sku, userID)
	} else {
		fmt.Printf("removed %d x %s for %s, remaining: %d\n", qty, sku, userID, remaining)
	}
}

func checkout(ctx context.Context, carts *service.CartService, userID string) {
	order, err := carts.Checkout(ctx, userID)
	if errors.Is(err, service.ErrEmptyCart) {
		fmt.Printf("cart for %s is empty, nothing to checkout\n", userID)
		return
	}
	must(err)
	fmt.Printf("%s checked out, order %s (stream %s)\n", userID, order.ID, order.StreamID)
}

func displayCart(ctx context.Context, carts *service.CartService, userID string) {
	cart, err := carts.Cart(ctx, userID)
	must(err)

	fmt.Printf("\n--- cart for %s ---\n", userID)
	if cart.IsEmpty() {
		fmt.Println("cart is empty")
		return
	}

	skus := make([]string, 0, len(cart))
	for sku := range cart {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	for _, sku := range skus {
		fmt.Printf("%-30s %d\n", sku, cart[sku])
	}
	describe(cart)
}

func describe(cart domain.Cart) {
	fmt.Printf("%d item kinds, %d units total\n", len(cart), cart.TotalUnits())
}

func must(err error) {
	if err != nil {
		log.Fatalf("demo failed: %v", err)
	}
}
