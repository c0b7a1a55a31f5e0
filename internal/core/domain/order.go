package domain

import "time"

// Order is the immutable record appended to the order stream at checkout.
// StreamID is the store-assigned, monotonically increasing stream entry ID.
type Order struct {
	ID           string
	UserID       string
	StreamID     string
	Items        Cart
	CheckedOutAt time.Time
}
