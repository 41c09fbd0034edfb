package counter

import (
	"context"
	"time"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i-egik/NameCount/platform/metrics"
)

const serviceName = "counter"

type instrumentService struct {
	component string
	errCount  kitmetrics.Counter
	next      Service
	opCount   kitmetrics.Counter
	opLatency *prometheus.HistogramVec
	store     string
}

// InstrumentServiceMiddleware observes key aspects of Service operations and
// exposes Prometheus metrics.
func InstrumentServiceMiddleware(
	component, store string,
	errCount kitmetrics.Counter,
	opCount kitmetrics.Counter,
	opLatency *prometheus.HistogramVec,
) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentService{
			component: component,
			errCount:  errCount,
			next:      next,
			opCount:   opCount,
			opLatency: opLatency,
			store:     store,
		}
	}
}

func (s *instrumentService) Create(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.track("Create", begin, err)
	}(time.Now())

	return s.next.Create(ctx, counterID, userID, value)
}

func (s *instrumentService) Get(
	ctx context.Context,
	counterID, userID int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		if IsNotFound(err) {
			s.track("Get", begin, nil)
			return
		}

		s.track("Get", begin, err)
	}(time.Now())

	return s.next.Get(ctx, counterID, userID)
}

func (s *instrumentService) Update(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.track("Update", begin, err)
	}(time.Now())

	return s.next.Update(ctx, counterID, userID, value)
}

func (s *instrumentService) UpdateOrCreate(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.track("UpdateOrCreate", begin, err)
	}(time.Now())

	return s.next.UpdateOrCreate(ctx, counterID, userID, value)
}

func (s *instrumentService) Setup(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		s.track("Setup", begin, err)
	}(time.Now())

	return s.next.Setup(ctx)
}

func (s *instrumentService) Teardown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		s.track("Teardown", begin, err)
	}(time.Now())

	return s.next.Teardown(ctx)
}

func (s *instrumentService) track(method string, begin time.Time, err error) {
	if err != nil {
		s.errCount.With(
			metrics.FieldComponent, s.component,
			metrics.FieldMethod, method,
			metrics.FieldService, serviceName,
			metrics.FieldStore, s.store,
		).Add(1)

		return
	}

	s.opCount.With(
		metrics.FieldComponent, s.component,
		metrics.FieldMethod, method,
		metrics.FieldService, serviceName,
		metrics.FieldStore, s.store,
	).Add(1)

	s.opLatency.With(prometheus.Labels{
		metrics.FieldComponent: s.component,
		metrics.FieldMethod:    method,
		metrics.FieldService:   serviceName,
		metrics.FieldStore:     s.store,
	}).Observe(time.Since(begin).Seconds())
}
