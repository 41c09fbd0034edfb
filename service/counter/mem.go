package counter

import (
	"context"
	"sync"
	"time"
)

type memKey struct {
	counterID int64
	userID    int64
}

type memService struct {
	counters map[memKey]*Counter
	mu       sync.RWMutex
	nextID   int64
}

// MemService returns a memory backed implementation of Service.
func MemService() Service {
	return &memService{
		counters: map[memKey]*Counter{},
	}
}

func (s *memService) Create(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{counterID: counterID, userID: userID}

	if _, ok := s.counters[k]; ok {
		return nil, wrapError(ErrExists, "counter %d user %d", counterID, userID)
	}

	return s.create(k, value), nil
}

func (s *memService) Get(
	ctx context.Context,
	counterID, userID int64,
) (*Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[memKey{counterID: counterID, userID: userID}]
	if !ok {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	return copyCounter(c), nil
}

func (s *memService) Update(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[memKey{counterID: counterID, userID: userID}]
	if !ok {
		return nil, wrapError(ErrNotFound, "counter %d user %d", counterID, userID)
	}

	c.Value = value
	c.UpdatedAt = time.Now().UTC()

	return copyCounter(c), nil
}

func (s *memService) UpdateOrCreate(
	ctx context.Context,
	counterID, userID, value int64,
) (*Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memKey{counterID: counterID, userID: userID}

	c, ok := s.counters[k]
	if !ok {
		return s.create(k, value), nil
	}

	c.Value = value
	c.UpdatedAt = time.Now().UTC()

	return copyCounter(c), nil
}

func (s *memService) Setup(ctx context.Context) error {
	return nil
}

func (s *memService) Teardown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = map[memKey]*Counter{}
	s.nextID = 0

	return nil
}

func (s *memService) create(k memKey, value int64) *Counter {
	now := time.Now().UTC()

	s.nextID++

	c := &Counter{
		CounterID: k.counterID,
		ID:        s.nextID,
		UserID:    k.userID,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.counters[k] = c

	return copyCounter(c)
}

func copyCounter(c *Counter) *Counter {
	n := *c

	return &n
}
