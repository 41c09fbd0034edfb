package cache

import "context"

// KeySeparator is used to build complete keys out of parts.
const KeySeparator = ":"

// Service is a keyed store which can be layered: a local tier delegates
// misses and writes to the next tier.
type Service[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, error)
	Update(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
}

// LocalCache is a Service with a local tier whose entries can be dropped
// without touching the delegate.
type LocalCache[K comparable, V any] interface {
	Service[K, V]
	Invalidate(key K)
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware[K comparable, V any] func(Service[K, V]) Service[K, V]

// LoadFunc reads the value for key from a backing source. A missing value is
// reported as ErrKeyNotFound.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// WarmFunc enumerates all known entries of a backing source and hands every
// one of them to put.
type WarmFunc[K comparable, V any] func(ctx context.Context, put func(K, V)) error

// CountService is the atomic counter store all counter values live in.
type CountService interface {
	Get(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, delta int64) (int64, error)
	Set(ctx context.Context, key string, value int64) (int64, error)
	Delete(ctx context.Context, key string) error
}

// CountServiceMiddleware is a chainable behaviour modifier for CountService.
type CountServiceMiddleware func(CountService) CountService

type countCache struct {
	counts CountService
}

// CountCacheService exposes a CountService as a Service so it can act as the
// delegate of a local tier.
func CountCacheService(counts CountService) Service[string, int64] {
	return &countCache{counts: counts}
}

func (c *countCache) Get(ctx context.Context, key string) (int64, error) {
	return c.counts.Get(ctx, key)
}

func (c *countCache) Update(ctx context.Context, key string, value int64) error {
	_, err := c.counts.Set(ctx, key, value)
	return err
}

func (c *countCache) Delete(ctx context.Context, key string) error {
	return c.counts.Delete(ctx, key)
}

type readOnly[K comparable, V any] struct {
	load LoadFunc[K, V]
}

// ReadOnlyService returns a Service which reads through load and accepts
// every write without touching anything.
func ReadOnlyService[K comparable, V any](load LoadFunc[K, V]) Service[K, V] {
	return &readOnly[K, V]{load: load}
}

func (s *readOnly[K, V]) Get(ctx context.Context, key K) (V, error) {
	return s.load(ctx, key)
}

func (s *readOnly[K, V]) Update(ctx context.Context, key K, value V) error {
	return nil
}

func (s *readOnly[K, V]) Delete(ctx context.Context, key K) error {
	return nil
}

type nop[K comparable, V any] struct{}

// NopService returns a Service which never holds a value.
func NopService[K comparable, V any]() Service[K, V] {
	return &nop[K, V]{}
}

func (s *nop[K, V]) Get(ctx context.Context, key K) (V, error) {
	var v V

	return v, ErrKeyNotFound
}

func (s *nop[K, V]) Update(ctx context.Context, key K, value V) error {
	return nil
}

func (s *nop[K, V]) Delete(ctx context.Context, key K) error {
	return nil
}
