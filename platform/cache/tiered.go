package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Defaults for the local tier.
const (
	DefaultCapacity = 100000
	DefaultTTL      = time.Hour
)

// LocalOptions configure the in-process tier of a Tiered cache.
type LocalOptions[K ~string, V any] struct {
	// Capacity bounds the number of entries, least recently used entries are
	// evicted first. Zero selects DefaultCapacity.
	Capacity int
	// TTL is counted from the time an entry was written, reads don't extend
	// it. Zero selects DefaultTTL.
	TTL time.Duration
	// Warm is run once before the cache is handed out.
	Warm WarmFunc[K, V]
}

// Stats are the running totals of a Tiered cache.
type Stats struct {
	Evictions uint64
	Hits      uint64
	Loads     uint64
	Misses    uint64
}

// Tiered is an in-process cache in front of a delegate Service. Misses for the
// same key are collapsed into a single delegate load, writes go to the
// delegate first and only reach the local tier on success.
type Tiered[K ~string, V any] struct {
	delegate Service[K, V]
	flight   singleflight.Group
	local    *expirable.LRU[K, V]

	// loading tracks keys with a delegate load in flight. A local write or
	// invalidation marks the load stale so its result isn't stored.
	mu      sync.Mutex
	loading map[K]*load

	evictions atomic.Uint64
	hits      atomic.Uint64
	loads     atomic.Uint64
	misses    atomic.Uint64
}

type load struct {
	stale bool
}

// LocalService returns a Tiered cache over delegate. If opts carry a WarmFunc
// it is run before returning and its failure is returned.
func LocalService[K ~string, V any](
	ctx context.Context,
	delegate Service[K, V],
	opts LocalOptions[K, V],
) (*Tiered[K, V], error) {
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}

	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}

	t := &Tiered[K, V]{
		delegate: delegate,
		loading:  map[K]*load{},
	}

	t.local = expirable.NewLRU[K, V](opts.Capacity, func(K, V) {
		t.evictions.Add(1)
	}, opts.TTL)

	if opts.Warm != nil {
		err := opts.Warm(ctx, func(key K, value V) {
			t.local.Add(key, value)
		})
		if err != nil {
			return nil, wrapError(err, "warm up")
		}
	}

	return t, nil
}

// Get returns the local value for key if present, otherwise loads it from the
// delegate. Absent values and delegate failures are never stored. The load is
// shared by all callers of the key and isn't cancelled when one of them gives
// up, every caller only waits as long as its own ctx allows.
func (t *Tiered[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	if v, ok := t.local.Get(key); ok {
		t.hits.Add(1)
		return v, nil
	}

	t.misses.Add(1)

	loadCtx := context.WithoutCancel(ctx)

	ch := t.flight.DoChan(string(key), func() (interface{}, error) {
		// A load for the same key may have completed between the local
		// lookup and joining the flight.
		if v, ok := t.local.Get(key); ok {
			return v, nil
		}

		l := t.begin(key)

		t.loads.Add(1)

		v, err := t.delegate.Get(loadCtx, key)

		t.finish(key, l, v, err == nil)

		return v, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}

		return res.Val.(V), nil
	}
}

// Update writes value to the delegate and, once it succeeded, to the local
// tier.
func (t *Tiered[K, V]) Update(ctx context.Context, key K, value V) error {
	if err := t.delegate.Update(ctx, key, value); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.markStale(key)
	t.local.Add(key, value)

	return nil
}

// Delete removes key from the delegate and afterwards from the local tier.
func (t *Tiered[K, V]) Delete(ctx context.Context, key K) error {
	if err := t.delegate.Delete(ctx, key); err != nil {
		return err
	}

	t.Invalidate(key)

	return nil
}

// Invalidate drops the local entry for key so the next Get consults the
// delegate. Used when the delegate value changed outside of this cache.
func (t *Tiered[K, V]) Invalidate(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.markStale(key)
	t.local.Remove(key)
}

// Len returns the number of entries in the local tier, including expired
// ones not yet reaped.
func (t *Tiered[K, V]) Len() int {
	return t.local.Len()
}

// Stats returns the running totals.
func (t *Tiered[K, V]) Stats() Stats {
	return Stats{
		Evictions: t.evictions.Load(),
		Hits:      t.hits.Load(),
		Loads:     t.loads.Load(),
		Misses:    t.misses.Load(),
	}
}

func (t *Tiered[K, V]) begin(key K) *load {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := &load{}
	t.loading[key] = l

	return l
}

func (t *Tiered[K, V]) finish(key K, l *load, value V, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loading[key] == l {
		delete(t.loading, key)
	}

	if ok && !l.stale {
		t.local.Add(key, value)
	}
}

// markStale expects t.mu to be held.
func (t *Tiered[K, V]) markStale(key K) {
	if l, ok := t.loading[key]; ok {
		l.stale = true
	}
}
