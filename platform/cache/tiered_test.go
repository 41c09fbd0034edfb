package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingService struct {
	mu     sync.Mutex
	gate   chan struct{}
	loads  atomic.Int64
	update error
	values map[string]int64
}

func newCountingService() *countingService {
	return &countingService{values: map[string]int64{}}
}

func (s *countingService) Get(ctx context.Context, key string) (int64, error) {
	s.loads.Add(1)

	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return 0, wrapError(ErrKeyNotFound, "%s", key)
	}

	return v, nil
}

func (s *countingService) Update(ctx context.Context, key string, value int64) error {
	if s.update != nil {
		return s.update
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}

func (s *countingService) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)

	return nil
}

func TestTieredGetCollapsesLoads(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
		n        = 32
		wg       sync.WaitGroup
	)

	delegate.values["a"] = 42
	delegate.gate = make(chan struct{})

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan int64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := c.Get(ctx, "a")
			if err != nil {
				t.Error(err)
				return
			}

			results <- v
		}()
	}

	// Give the callers a chance to pile up behind the first load.
	time.Sleep(50 * time.Millisecond)
	close(delegate.gate)
	wg.Wait()
	close(results)

	for v := range results {
		if have, want := v, int64(42); have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	if have, want := delegate.loads.Load(), int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if have, want := delegate.loads.Load(), int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredUpdate(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Update(ctx, "b", 7); err != nil {
		t.Fatal(err)
	}

	v, err := c.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(7); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := delegate.loads.Load(), int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := delegate.values["b"], int64(7); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredUpdateDelegateFailure(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
		failure  = errors.New("unavailable")
	)

	delegate.values["c"] = 1

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "c"); err != nil {
		t.Fatal(err)
	}

	delegate.update = failure

	if have, want := c.Update(ctx, "c", 2), failure; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	v, err := c.Get(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredDelete(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Update(ctx, "d", 3); err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(ctx, "d"); err != nil {
		t.Fatal(err)
	}

	_, err = c.Get(ctx, "d")
	if have, want := IsKeyNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := delegate.loads.Load(), int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredAbsentNotCached(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		_, err := c.Get(ctx, "e")
		if have, want := IsKeyNotFound(err), true; have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	if have, want := delegate.loads.Load(), int64(3); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	delegate.values["e"] = 5

	v, err := c.Get(ctx, "e")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(5); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredInvalidate(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	delegate.values["f"] = 1

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "f"); err != nil {
		t.Fatal(err)
	}

	delegate.values["f"] = 2
	c.Invalidate("f")

	v, err := c.Get(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredTTL(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	delegate.values["g"] = 1

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{
		TTL: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "g"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	if _, err := c.Get(ctx, "g"); err != nil {
		t.Fatal(err)
	}

	if have, want := delegate.loads.Load(), int64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredWarm(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = newCountingService()
	)

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{
		Warm: func(ctx context.Context, put func(string, int64)) error {
			put("x", 1)
			put("y", 2)

			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if have, want := c.Len(), 2; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	v, err := c.Get(ctx, "y")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, int64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := delegate.loads.Load(), int64(0); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := c.Stats().Hits, uint64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredWarmFailure(t *testing.T) {
	failure := errors.New("catalog down")

	_, err := LocalService[string, int64](
		context.Background(),
		newCountingService(),
		LocalOptions[string, int64]{
			Warm: func(ctx context.Context, put func(string, int64)) error {
				return failure
			},
		},
	)
	if err == nil {
		t.Fatal("want warm up failure")
	}

	if have, want := unwrapError(err), failure; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredReadOnly(t *testing.T) {
	var (
		ctx   = context.Background()
		loads = 0
	)

	load := func(ctx context.Context, key string) (uint64, error) {
		loads++

		if key == "known" {
			return 1, nil
		}

		return 0, ErrKeyNotFound
	}

	c, err := LocalService[string, uint64](
		ctx,
		ReadOnlyService[string, uint64](load),
		LocalOptions[string, uint64]{},
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Update(ctx, "registered", 2); err != nil {
		t.Fatal(err)
	}

	v, err := c.Get(ctx, "registered")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, uint64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := loads, 0; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	v, err = c.Get(ctx, "known")
	if err != nil {
		t.Fatal(err)
	}

	if have, want := v, uint64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestNopService(t *testing.T) {
	var (
		ctx = context.Background()
		s   = NopService[string, int64]()
	)

	if err := s.Update(ctx, "a", 1); err != nil {
		t.Fatal(err)
	}

	_, err := s.Get(ctx, "a")
	if have, want := IsKeyNotFound(err), true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

type gatedService struct {
	*countingService

	gates   map[string]chan struct{}
	started atomic.Int64
}

func (s *gatedService) Get(ctx context.Context, key string) (int64, error) {
	s.started.Add(1)

	if g, ok := s.gates[key]; ok {
		select {
		case <-g:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	return s.countingService.Get(ctx, key)
}

func waitForLoads(t *testing.T, s *gatedService, n int64) {
	deadline := time.Now().Add(time.Second)

	for s.started.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("delegate loads never reached %d", n)
		}

		time.Sleep(time.Millisecond)
	}
}

func TestTieredGetCallerCancel(t *testing.T) {
	var (
		ctx         = context.Background()
		delegate    = &gatedService{countingService: newCountingService()}
		gate        = make(chan struct{})
		first, stop = context.WithCancel(ctx)
		errc        = make(chan error, 1)
		results     = make(chan int64, 1)
	)

	delegate.values["a"] = 42
	delegate.gates = map[string]chan struct{}{"a": gate}

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		_, err := c.Get(first, "a")
		errc <- err
	}()

	waitForLoads(t, delegate, 1)

	go func() {
		v, err := c.Get(ctx, "a")
		if err != nil {
			t.Error(err)
		}

		results <- v
	}()

	time.Sleep(20 * time.Millisecond)
	stop()

	if have, want := <-errc, context.Canceled; !errors.Is(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}

	close(gate)

	if have, want := <-results, int64(42); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if have, want := delegate.loads.Load(), int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredInvalidateOtherKeyDuringLoad(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = &gatedService{countingService: newCountingService()}
		gate     = make(chan struct{})
		done     = make(chan struct{})
	)

	delegate.values["a"] = 1
	delegate.values["b"] = 2
	delegate.gates = map[string]chan struct{}{"a": gate}

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		defer close(done)

		if _, err := c.Get(ctx, "a"); err != nil {
			t.Error(err)
		}
	}()

	waitForLoads(t, delegate, 1)

	c.Invalidate("b")

	if err := c.Update(ctx, "b", 3); err != nil {
		t.Fatal(err)
	}

	close(gate)
	<-done

	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if have, want := delegate.loads.Load(), int64(1); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestTieredInvalidateSameKeyDuringLoad(t *testing.T) {
	var (
		ctx      = context.Background()
		delegate = &gatedService{countingService: newCountingService()}
		gate     = make(chan struct{})
		done     = make(chan struct{})
	)

	delegate.values["a"] = 1
	delegate.gates = map[string]chan struct{}{"a": gate}

	c, err := LocalService[string, int64](ctx, delegate, LocalOptions[string, int64]{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		defer close(done)

		if _, err := c.Get(ctx, "a"); err != nil {
			t.Error(err)
		}
	}()

	waitForLoads(t, delegate, 1)

	c.Invalidate("a")

	close(gate)
	<-done

	if have, want := c.Len(), 0; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

type userKey string

func TestTieredStringKinds(t *testing.T) {
	var (
		ctx   = context.Background()
		loads atomic.Int64
	)

	c, err := LocalService[userKey, int64](
		ctx,
		ReadOnlyService[userKey, int64](func(ctx context.Context, key userKey) (int64, error) {
			loads.Add(1)
			return int64(len(key)), nil
		}),
		LocalOptions[userKey, int64]{},
	)
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range []userKey{"a b:c", "a:b c", "a b:c"} {
		v, err := c.Get(ctx, k)
		if err != nil {
			t.Fatal(err)
		}

		if have, want := v, int64(5); have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}

	if have, want := loads.Load(), int64(2); have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}
