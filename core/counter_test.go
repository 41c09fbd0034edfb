package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/service/catalog"
	"github.com/i-egik/NameCount/service/change"
)

func TestCounterIncrementFromAbsent(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	id := f.register(t, "x")

	v, err := f.increment(ctx, "x", 7, 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	cs, err := f.source.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(cs), 1; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	want := change.Event{CounterID: id, UserID: 7, Value: 1}

	if have := cs[0].Event; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterIncrementClamp(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	f.register(t, "x")

	for i, delta := range []int64{-5, 0, math.MaxInt32 + 1, 2} {
		v, err := f.increment(ctx, "x", 1, delta)
		if err != nil {
			t.Fatal(err)
		}

		want := int64(i + 1)
		if delta == 2 {
			want = int64(i + 2)
		}

		if have := v; have != want {
			t.Errorf("delta %d: have %v, want %v", delta, have, want)
		}
	}
}

func TestCounterIncrementCommutative(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	f.register(t, "x")

	for userID, deltas := range map[int64][]int64{
		1: {3, 5},
		2: {5, 3},
	} {
		for _, d := range deltas {
			if _, err := f.increment(ctx, "x", userID, d); err != nil {
				t.Fatal(err)
			}
		}
	}

	a, err := f.get(ctx, "x", 1)
	if err != nil {
		t.Fatal(err)
	}

	b, err := f.get(ctx, "x", 2)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := a, b; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := a, int64(8); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterIncrementConcurrent(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
		n   = 50
		wg  sync.WaitGroup
	)

	f.register(t, "x")

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := f.increment(ctx, "x", 1, 1); err != nil {
				t.Error(err)
			}
		}()
	}

	wg.Wait()

	v, err := f.get(ctx, "x", 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(n); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterGet(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	_, err := f.get(ctx, "unknown", 1)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	f.register(t, "x")

	_, err = f.get(ctx, "x", 1)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := f.increment(ctx, "x", 1, 4); err != nil {
		t.Fatal(err)
	}

	v, err := f.get(ctx, "x", 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(4); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	// Cached value is dropped by the next increment.
	if _, err := f.increment(ctx, "x", 1, 1); err != nil {
		t.Fatal(err)
	}

	v, err = f.get(ctx, "x", 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(5); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterReset(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	id := f.register(t, "x")

	if _, err := f.increment(ctx, "x", 7, 3); err != nil {
		t.Fatal(err)
	}

	v, err := f.reset(ctx, "x", 7)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	v, err = f.get(ctx, "x", 7)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	cs, err := f.source.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := len(cs), 2; have != want {
		t.Fatalf("have %v, want %v", have, want)
	}

	want := change.Event{CounterID: id, UserID: 7}

	if have := cs[1].Event; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	_, err = f.reset(ctx, "unknown", 7)
	if have, want := IsNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterIncrementPublishFailure(t *testing.T) {
	var (
		ctx    = context.Background()
		f      = prepareCounter(t)
		values = testValueCache(t, f.counts)
		inc    = CounterIncrement(f.resolve, f.counts, values, failingProducer{})
	)

	f.register(t, "x")

	v, err := inc(ctx, "x", 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterIncrementUnavailable(t *testing.T) {
	var (
		ctx    = context.Background()
		f      = prepareCounter(t)
		counts = failingCounts{CountService: cache.MemCountService()}
		inc    = CounterIncrement(f.resolve, counts, testValueCache(t, counts), f.source)
	)

	f.register(t, "x")

	_, err := inc(ctx, "x", 1, 1)
	if have, want := IsUnavailable(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestCounterIncrementOverflow(t *testing.T) {
	var (
		ctx = context.Background()
		f   = prepareCounter(t)
	)

	id := f.register(t, "x")

	if _, err := f.counts.Set(ctx, counterKey(id, 1), math.MaxInt64); err != nil {
		t.Fatal(err)
	}

	_, err := f.increment(ctx, "x", 1, 1)
	if have, want := IsInvalidEntity(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	v, err := f.counts.Get(ctx, counterKey(id, 1))
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(math.MaxInt64); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

type counterFixture struct {
	catalogs catalog.Service
	counts   cache.CountService
	ids      cache.Service[string, int64]
	source   change.Source

	get       CounterGetFunc
	increment CounterIncrementFunc
	reset     CounterResetFunc
	resolve   CatalogResolveFunc
}

func (f *counterFixture) register(t *testing.T, name string) int64 {
	e, err := CatalogRegister(f.catalogs, f.ids)(context.Background(), name, "", 0)
	if err != nil {
		t.Fatal(err)
	}

	return e.ID
}

func prepareCounter(t *testing.T) *counterFixture {
	var (
		catalogs = catalog.MemService()
		counts   = cache.MemCountService()
		ids      = testCatalogCache(t, catalogs)
		resolve  = CatalogResolve(ids)
		source   = change.MemSource(change.CodecFields, 10*time.Millisecond)
		values   = testValueCache(t, counts)
	)

	return &counterFixture{
		catalogs: catalogs,
		counts:   counts,
		ids:      ids,
		source:   source,

		get:       CounterGet(resolve, values),
		increment: CounterIncrement(resolve, counts, values, source),
		reset:     CounterReset(resolve, values, source),
		resolve:   resolve,
	}
}

func testValueCache(t *testing.T, counts cache.CountService) *cache.Tiered[string, int64] {
	values, err := cache.LocalService[string, int64](
		context.Background(),
		cache.CountCacheService(counts),
		cache.LocalOptions[string, int64]{},
	)
	if err != nil {
		t.Fatal(err)
	}

	return values
}

type failingProducer struct{}

func (failingProducer) Propagate(ctx context.Context, event change.Event) (string, error) {
	return "", errors.New("stream unavailable")
}

type failingCounts struct {
	cache.CountService
}

func (failingCounts) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, errors.New("connection refused")
}
