package cache

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

type logCountService struct {
	logger log.Logger
	next   CountService
}

// LogCountServiceMiddleware given a Logger wraps the next CountService with
// logging capabilities.
func LogCountServiceMiddleware(logger log.Logger, store string) CountServiceMiddleware {
	return func(next CountService) CountService {
		logger = log.With(
			logger,
			"cache", "count",
			"store", store,
		)

		return &logCountService{logger: logger, next: next}
	}
}

func (s *logCountService) Get(
	ctx context.Context,
	key string,
) (value int64, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"key", key,
			"method", "Get",
			"value", value,
		}

		if err != nil && !IsKeyNotFound(err) {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Get(ctx, key)
}

func (s *logCountService) Incr(
	ctx context.Context,
	key string,
	delta int64,
) (value int64, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"delta", delta,
			"duration_ns", time.Since(begin).Nanoseconds(),
			"key", key,
			"method", "Incr",
			"value", value,
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Incr(ctx, key, delta)
}

func (s *logCountService) Set(
	ctx context.Context,
	key string,
	value int64,
) (output int64, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"key", key,
			"method", "Set",
			"value", value,
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Set(ctx, key, value)
}

func (s *logCountService) Delete(ctx context.Context, key string) (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"key", key,
			"method", "Delete",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Delete(ctx, key)
}
