package cache

import (
	"context"
	"sync"
)

type memCountService struct {
	counts map[string]int64
	mu     sync.Mutex
}

// MemCountService returns a memory backed implementation of CountService.
func MemCountService() CountService {
	return &memCountService{
		counts: map[string]int64{},
	}
}

func (s *memCountService) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.counts[key]
	if !ok {
		return 0, wrapError(ErrKeyNotFound, "%s", key)
	}

	return v, nil
}

func (s *memCountService) Incr(
	ctx context.Context,
	key string,
	delta int64,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if overflows(s.counts[key], delta) {
		return 0, wrapError(ErrOverflow, "increment of '%s' by %d", key, delta)
	}

	s.counts[key] += delta

	return s.counts[key], nil
}

func (s *memCountService) Set(
	ctx context.Context,
	key string,
	value int64,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[key] = value

	return value, nil
}

func (s *memCountService) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counts, key)

	return nil
}
