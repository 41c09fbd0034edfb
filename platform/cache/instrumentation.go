package cache

import (
	"context"
	"time"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i-egik/NameCount/platform/metrics"
)

type instrumentCountService struct {
	component string
	errCount  kitmetrics.Counter
	hitCount  kitmetrics.Counter
	missCount kitmetrics.Counter
	next      CountService
	opCount   kitmetrics.Counter
	opLatency *prometheus.HistogramVec
	store     string
}

// InstrumentCountServiceMiddleware observes key aspects of CountService
// operations and exposes Prometheus metrics.
func InstrumentCountServiceMiddleware(
	component, store string,
	errCount kitmetrics.Counter,
	hitCount kitmetrics.Counter,
	missCount kitmetrics.Counter,
	opCount kitmetrics.Counter,
	opLatency *prometheus.HistogramVec,
) CountServiceMiddleware {
	return func(next CountService) CountService {
		return &instrumentCountService{
			component: component,
			errCount:  errCount,
			hitCount:  hitCount,
			missCount: missCount,
			next:      next,
			opCount:   opCount,
			opLatency: opLatency,
			store:     store,
		}
	}
}

func (s *instrumentCountService) Get(
	ctx context.Context,
	key string,
) (value int64, err error) {
	defer func(begin time.Time) {
		switch {
		case err == nil:
			s.trackLookup(s.hitCount, "Get")
		case IsKeyNotFound(err):
			s.trackLookup(s.missCount, "Get")
			s.track("Get", begin, nil)
			return
		}

		s.track("Get", begin, err)
	}(time.Now())

	return s.next.Get(ctx, key)
}

func (s *instrumentCountService) Incr(
	ctx context.Context,
	key string,
	delta int64,
) (value int64, err error) {
	defer func(begin time.Time) {
		s.track("Incr", begin, err)
	}(time.Now())

	return s.next.Incr(ctx, key, delta)
}

func (s *instrumentCountService) Set(
	ctx context.Context,
	key string,
	value int64,
) (output int64, err error) {
	defer func(begin time.Time) {
		s.track("Set", begin, err)
	}(time.Now())

	return s.next.Set(ctx, key, value)
}

func (s *instrumentCountService) Delete(
	ctx context.Context,
	key string,
) (err error) {
	defer func(begin time.Time) {
		s.track("Delete", begin, err)
	}(time.Now())

	return s.next.Delete(ctx, key)
}

func (s *instrumentCountService) track(
	method string,
	begin time.Time,
	err error,
) {
	if err != nil {
		s.errCount.With(
			metrics.FieldComponent, s.component,
			metrics.FieldMethod, method,
			metrics.FieldStore, s.store,
		).Add(1)

		return
	}

	s.opCount.With(
		metrics.FieldComponent, s.component,
		metrics.FieldMethod, method,
		metrics.FieldStore, s.store,
	).Add(1)

	s.opLatency.With(prometheus.Labels{
		metrics.FieldComponent: s.component,
		metrics.FieldMethod:    method,
		metrics.FieldStore:     s.store,
	}).Observe(time.Since(begin).Seconds())
}

func (s *instrumentCountService) trackLookup(
	c kitmetrics.Counter,
	method string,
) {
	c.With(
		metrics.FieldComponent, s.component,
		metrics.FieldMethod, method,
		metrics.FieldStore, s.store,
	).Add(1)
}

// StatsSource is implemented by caches reporting running totals.
type StatsSource interface {
	Len() int
	Stats() Stats
}

// RegisterStats exposes the running totals of a cache as Prometheus gauges
// labeled with name.
func RegisterStats(namespace, name string, src StatsSource) error {
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{
			name: "entries",
			help: "Number of entries held in the local tier",
			fn:   func() float64 { return float64(src.Len()) },
		},
		{
			name: "evictions_total",
			help: "Number of entries evicted from the local tier",
			fn:   func() float64 { return float64(src.Stats().Evictions) },
		},
		{
			name: "hits_total",
			help: "Number of lookups answered by the local tier",
			fn:   func() float64 { return float64(src.Stats().Hits) },
		},
		{
			name: "loads_total",
			help: "Number of loads issued against the delegate",
			fn:   func() float64 { return float64(src.Stats().Loads) },
		},
		{
			name: "misses_total",
			help: "Number of lookups missing the local tier",
			fn:   func() float64 { return float64(src.Stats().Misses) },
		},
	}

	for _, g := range gauges {
		err := prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        g.name,
			Help:        g.help,
			ConstLabels: prometheus.Labels{metrics.FieldCache: name},
		}, g.fn))
		if err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}

			return err
		}
	}

	return nil
}
