package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// NumberAdapter backs the sorted-set number demo. Members and scores are both
// the inserted value, so the set orders itself and absorbs duplicates.
type NumberAdapter struct {
	client *redis.Client
}

func NewNumberAdapter(client *redis.Client) *NumberAdapter {
	return &NumberAdapter{client: client}
}

func (n *NumberAdapter) Add(ctx context.Context, values []int64) error {
	pipe := n.client.Pipeline()
	for _, v := range values {
		pipe.ZAdd(ctx, numbersKey, redis.Z{Score: float64(v), Member: strconv.FormatInt(v, 10)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add numbers: %w", err)
	}
	return nil
}

func (n *NumberAdapter) Descending(ctx context.Context) ([]int64, error) {
	members, err := n.client.ZRevRange(ctx, numbersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read numbers: %w", err)
	}
	values := make([]int64, 0, len(members))
	for _, m := range members {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse number %q: %w", m, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (n *NumberAdapter) Clear(ctx context.Context) error {
	if err := n.client.Del(ctx, numbersKey).Err(); err != nil {
		return fmt.Errorf("clear numbers: %w", err)
	}
	return nil
}
