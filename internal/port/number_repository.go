package port

import "context"

type NumberRepository interface {
	// Add inserts values into the demo sorted set, member and score both equal
	// to the value. Duplicate values are absorbed by the set.
	Add(ctx context.Context, values []int64) error

	// Descending returns the whole set, largest value first.
	Descending(ctx context.Context) ([]int64, error)

	// Clear deletes the set.
	Clear(ctx context.Context) error
}
