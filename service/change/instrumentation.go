package change

import (
	"context"
	"time"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i-egik/NameCount/platform/metrics"
)

const sourceName = "change"

type instrumentSource struct {
	component    string
	errCount     kitmetrics.Counter
	next         Source
	opCount      kitmetrics.Counter
	opLatency    *prometheus.HistogramVec
	queueLatency *prometheus.HistogramVec
	store        string
}

// InstrumentSourceMiddleware observes key aspects of Source operations and
// exposes Prometheus metrics.
func InstrumentSourceMiddleware(
	component, store string,
	errCount kitmetrics.Counter,
	opCount kitmetrics.Counter,
	opLatency *prometheus.HistogramVec,
	queueLatency *prometheus.HistogramVec,
) SourceMiddleware {
	return func(next Source) Source {
		return &instrumentSource{
			component:    component,
			errCount:     errCount,
			next:         next,
			opCount:      opCount,
			opLatency:    opLatency,
			queueLatency: queueLatency,
			store:        store,
		}
	}
}

func (s *instrumentSource) Ack(ctx context.Context, ids ...string) (err error) {
	defer func(begin time.Time) {
		s.track("Ack", begin, err)
	}(time.Now())

	return s.next.Ack(ctx, ids...)
}

func (s *instrumentSource) Consume(ctx context.Context) (changes []*StateChange, err error) {
	defer func(begin time.Time) {
		if IsEmptySource(err) {
			s.track("Consume", begin, nil)
			return
		}

		for _, c := range changes {
			if c.SentAt.IsZero() {
				continue
			}

			s.queueLatency.With(prometheus.Labels{
				metrics.FieldComponent: s.component,
				metrics.FieldMethod:    "Consume",
				metrics.FieldSource:    sourceName,
				metrics.FieldStore:     s.store,
			}).Observe(time.Since(c.SentAt).Seconds())
		}

		s.track("Consume", begin, err)
	}(time.Now())

	return s.next.Consume(ctx)
}

func (s *instrumentSource) Propagate(ctx context.Context, event Event) (id string, err error) {
	defer func(begin time.Time) {
		s.track("Propagate", begin, err)
	}(time.Now())

	return s.next.Propagate(ctx, event)
}

func (s *instrumentSource) Rewind() {
	defer s.track("Rewind", time.Now(), nil)

	s.next.Rewind()
}

func (s *instrumentSource) Setup(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		s.track("Setup", begin, err)
	}(time.Now())

	return s.next.Setup(ctx)
}

func (s *instrumentSource) track(method string, begin time.Time, err error) {
	if err != nil {
		s.errCount.With(
			metrics.FieldComponent, s.component,
			metrics.FieldMethod, method,
			metrics.FieldSource, sourceName,
			metrics.FieldStore, s.store,
		).Add(1)

		return
	}

	s.opCount.With(
		metrics.FieldComponent, s.component,
		metrics.FieldMethod, method,
		metrics.FieldSource, sourceName,
		metrics.FieldStore, s.store,
	).Add(1)

	s.opLatency.With(prometheus.Labels{
		metrics.FieldComponent: s.component,
		metrics.FieldMethod:    method,
		metrics.FieldSource:    sourceName,
		metrics.FieldStore:     s.store,
	}).Observe(time.Since(begin).Seconds())
}
