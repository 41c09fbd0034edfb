package counter

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

type logService struct {
	logger log.Logger
	next   Service
}

// LogServiceMiddleware given a Logger wraps the next Service with logging
// capabilities.
func LogServiceMiddleware(logger log.Logger, store string) ServiceMiddleware {
	return func(next Service) Service {
		logger = log.With(
			logger,
			"service", "counter",
			"store", store,
		)

		return &logService{logger: logger, next: next}
	}
}

func (s *logService) Create(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.log("Create", begin, err, "counter_id", counterID, "user_id", userID, "value", value)
	}(time.Now())

	return s.next.Create(ctx, counterID, userID, value)
}

func (s *logService) Get(
	ctx context.Context,
	counterID, userID int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.log("Get", begin, err, "counter_id", counterID, "user_id", userID, "counter", c)
	}(time.Now())

	return s.next.Get(ctx, counterID, userID)
}

func (s *logService) Update(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.log("Update", begin, err, "counter_id", counterID, "user_id", userID, "value", value)
	}(time.Now())

	return s.next.Update(ctx, counterID, userID, value)
}

func (s *logService) UpdateOrCreate(
	ctx context.Context,
	counterID, userID, value int64,
) (c *Counter, err error) {
	defer func(begin time.Time) {
		s.log("UpdateOrCreate", begin, err, "counter_id", counterID, "user_id", userID, "value", value)
	}(time.Now())

	return s.next.UpdateOrCreate(ctx, counterID, userID, value)
}

func (s *logService) Setup(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		s.log("Setup", begin, err)
	}(time.Now())

	return s.next.Setup(ctx)
}

func (s *logService) Teardown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		s.log("Teardown", begin, err)
	}(time.Now())

	return s.next.Teardown(ctx)
}

func (s *logService) log(
	method string,
	begin time.Time,
	err error,
	kvs ...interface{},
) {
	ps := append([]interface{}{
		"duration_ns", time.Since(begin).Nanoseconds(),
		"method", method,
	}, kvs...)

	if err != nil {
		ps = append(ps, "err", err)
	}

	_ = s.logger.Log(ps...)
}
