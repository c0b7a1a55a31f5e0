package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/redis-cart/internal/core/domain"
)

const (
	cartKeyPrefix   = "cart:"
	markerKeyPrefix = "cart_ttl:"
	userKeyPrefix   = "user:"
	orderStreamKey  = "orders"
	numbersKey      = "numbers"

	// DefaultCartTTL is the abandonment window for a non-empty cart.
	DefaultCartTTL = 30 * time.Minute

	itemFieldPrefix = "item_"
)

// Every mutation ends with the same marker rule: a non-empty cart carries an
// "alive" key with a TTL, an empty cart carries none. The rule lives inside
// each script so it is applied in the same atomic step as the mutation.

var addItemScript = redis.NewScript(`
local cart = KEYS[1]
local marker = KEYS[2]
local sku = ARGV[1]
local qty = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local total = redis.call('HINCRBY', cart, sku, qty)
redis.call('SET', marker, 'alive', 'EX', ttl)
if ARGV[4] == '1' then
	redis.call('EXPIRE', cart, ttl)
end
return total
`)

var removeItemScript = redis.NewScript(`
local cart = KEYS[1]
local marker = KEYS[2]
local sku = ARGV[1]
local qty = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = redis.call('HGET', cart, sku)
if not current then
	return {-1, 0}
end

local remaining = 0
if qty >= tonumber(current) then
	redis.call('HDEL', cart, sku)
else
	remaining = redis.call('HINCRBY', cart, sku, -qty)
end

if redis.call('HLEN', cart) > 0 then
	redis.call('SET', marker, 'alive', 'EX', ttl)
	if ARGV[4] == '1' then
		redis.call('EXPIRE', cart, ttl)
	end
else
	redis.call('DEL', marker)
end
return {1, remaining}
`)

// checkoutScript pairs the order append with the cart deletion. Either both
// happen or, for an empty cart, neither does.
var checkoutScript = redis.NewScript(`
local cart = KEYS[1]
local marker = KEYS[2]
local stream = KEYS[3]

local items = redis.call('HGETALL', cart)
if #items == 0 then
	return false
end

local record = {'order_id', ARGV[1], 'user_id', ARGV[2], 'timestamp', ARGV[3]}
for i = 1, #items, 2 do
	record[#record + 1] = 'item_' .. items[i]
	record[#record + 1] = items[i + 1]
end

local id = redis.call('XADD', stream, '*', unpack(record))
redis.call('DEL', cart, marker)
return {id, items}
`)

type RedisAdapter struct {
	client         *redis.Client
	cartTTL        time.Duration
	expireContents bool
}

// CartConfig tunes the abandonment behavior. A zero TTL means DefaultCartTTL.
// ExpireContents additionally puts the TTL on the cart hash itself, so an
// abandoned cart's contents are removed by the store instead of lingering.
type CartConfig struct {
	TTL            time.Duration
	ExpireContents bool
}

func NewRedisAdapter(client *redis.Client, cfg CartConfig) *RedisAdapter {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisAdapter{
		client:         client,
		cartTTL:        ttl,
		expireContents: cfg.ExpireContents,
	}
}

func cartKey(userID string) string   { return cartKeyPrefix + userID }
func markerKey(userID string) string { return markerKeyPrefix + userID }
func userKey(userID string) string   { return userKeyPrefix + userID }

func (r *RedisAdapter) ttlSeconds() int64 {
	return int64(r.cartTTL / time.Second)
}

func (r *RedisAdapter) expireFlag() string {
	if r.expireContents {
		return "1"
	}
	return "0"
}

func (r *RedisAdapter) AddItem(ctx context.Context, userID, sku string, qty int64) (int64, error) {
	keys := []string{cartKey(userID), markerKey(userID)}
	total, err := addItemScript.Run(ctx, r.client, keys, sku, qty, r.ttlSeconds(), r.expireFlag()).Int64()
	if err != nil {
		return 0, fmt.Errorf("add item: %w", err)
	}
	return total, nil
}

func (r *RedisAdapter) RemoveItem(ctx context.Context, userID, sku string, qty int64) (int64, bool, error) {
	keys := []string{cartKey(userID), markerKey(userID)}
	res, err := removeItemScript.Run(ctx, r.client, keys, sku, qty, r.ttlSeconds(), r.expireFlag()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("remove item: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("remove item: unexpected reply length %d", len(res))
	}
	if res[0] == -1 {
		return 0, false, nil
	}
	return res[1], true, nil
}

func (r *RedisAdapter) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	raw, err := r.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	cart := make(domain.Cart, len(raw))
	for sku, val := range raw {
		qty, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse quantity for %q: %w", sku, err)
		}
		cart[sku] = qty
	}
	return cart, nil
}

func (r *RedisAdapter) ApplyDiff(ctx context.Context, userID string, set map[string]int64, del []string, emptyAfter bool) error {
	key := cartKey(userID)
	marker := markerKey(userID)

	pipe := r.client.TxPipeline()
	for sku, qty := range set {
		pipe.HSet(ctx, key, sku, qty)
	}
	if len(del) > 0 {
		pipe.HDel(ctx, key, del...)
	}
	if emptyAfter {
		pipe.Del(ctx, marker)
	} else {
		pipe.Set(ctx, marker, "alive", r.cartTTL)
		if r.expireContents {
			pipe.Expire(ctx, key, r.cartTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply cart diff: %w", err)
	}
	return nil
}

func (r *RedisAdapter) ClearCart(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID), markerKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *RedisAdapter) Checkout(ctx context.Context, userID, orderID string, at time.Time) (domain.Cart, string, error) {
	keys := []string{cartKey(userID), markerKey(userID), orderStreamKey}
	res, err := checkoutScript.Run(ctx, r.client, keys, orderID, userID, at.Format(time.RFC3339Nano)).Result()
	if err == redis.Nil {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("checkout: %w", err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return nil, "", fmt.Errorf("checkout: unexpected reply %T", res)
	}
	streamID, _ := reply[0].(string)
	rawItems, _ := reply[1].([]interface{})

	snapshot := make(domain.Cart, len(rawItems)/2)
	for i := 0; i+1 < len(rawItems); i += 2 {
		sku, _ := rawItems[i].(string)
		val, _ := rawItems[i+1].(string)
		qty, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("checkout: parse quantity for %q: %w", sku, err)
		}
		snapshot[sku] = qty
	}
	return snapshot, streamID, nil
}

func (r *RedisAdapter) RecentOrders(ctx context.Context, count int64) ([]domain.Order, error) {
	msgs, err := r.client.XRevRangeN(ctx, orderStreamKey, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(msgs))
	for _, msg := range msgs {
		order, err := orderFromStream(msg)
		if err != nil {
			// A malformed record must not take down the whole read.
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func orderFromStream(msg redis.XMessage) (domain.Order, error) {
	order := domain.Order{
		StreamID: msg.ID,
		Items:    domain.Cart{},
	}
	for field, raw := range msg.Values {
		val, _ := raw.(string)
		switch {
		case field == "order_id":
			order.ID = val
		case field == "user_id":
			order.UserID = val
		case field == "timestamp":
			ts, err := parseOrderTimestamp(val)
			if err != nil {
				return domain.Order{}, fmt.Errorf("order %s: %w", msg.ID, err)
			}
			order.CheckedOutAt = ts
		case strings.HasPrefix(field, itemFieldPrefix):
			qty, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return domain.Order{}, fmt.Errorf("order %s: parse quantity: %w", msg.ID, err)
			}
			order.Items[strings.TrimPrefix(field, itemFieldPrefix)] = qty
		}
	}
	return order, nil
}

// parseOrderTimestamp accepts the RFC3339Nano format written at checkout and
// falls back to the float epoch seconds that records from earlier writers of
// the same stream carry.
func parseOrderTimestamp(val string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
		return ts, nil
	}
	epoch, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", val)
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), nil
}

func (r *RedisAdapter) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	key := userKey(profile.UserID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"name":  profile.Name,
		"email": profile.Email,
	})
	pipe.HSetNX(ctx, key, "join_date", profile.JoinedAt.Format(time.RFC3339))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	raw, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	profile := &domain.UserProfile{
		UserID: userID,
		Name:   raw["name"],
		Email:  raw["email"],
	}
	if joined, err := time.Parse(time.RFC3339, raw["join_date"]); err == nil {
		profile.JoinedAt = joined
	}
	return profile, nil
}

// DeleteUserData removes the profile, cart, and marker for a user. Used by the
// demo script for cleanup between runs.
func (r *RedisAdapter) DeleteUserData(ctx context.Context, userID string) error {
	return r.client.Del(ctx, userKey(userID), cartKey(userID), markerKey(userID)).Err()
}
