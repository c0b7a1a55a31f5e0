package service

import (
	"context"
	"math/rand"

	"github.com/rl1809/redis-cart/internal/port"
)

const (
	sequentialCount = 100
	randomCount     = 100
	randomMin       = 101
	randomMax       = 10_000
)

// NumberService drives the sorted-set demo: sequential and random inserts,
// read back in descending order.
type NumberService struct {
	numbers port.NumberRepository
}

func NewNumberService(numbers port.NumberRepository) *NumberService {
	return &NumberService{numbers: numbers}
}

// InsertSequential inserts 1..100 in one batch.
func (s *NumberService) InsertSequential(ctx context.Context) error {
	values := make([]int64, 0, sequentialCount)
	for n := int64(1); n <= sequentialCount; n++ {
		values = append(values, n)
	}
	return s.numbers.Add(ctx, values)
}

// InsertRandom inserts 100 distinct random integers from [101, 10000) in one
// batch. The range avoids colliding with the sequential values.
func (s *NumberService) InsertRandom(ctx context.Context) error {
	seen := make(map[int64]struct{}, randomCount)
	values := make([]int64, 0, randomCount)
	for len(values) < randomCount {
		v := randomMin + rand.Int63n(randomMax-randomMin)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return s.numbers.Add(ctx, values)
}

func (s *NumberService) Numbers(ctx context.Context) ([]int64, error) {
	return s.numbers.Descending(ctx)
}

func (s *NumberService) Clear(ctx context.Context) error {
	return s.numbers.Clear(ctx)
}
