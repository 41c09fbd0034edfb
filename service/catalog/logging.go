package catalog

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
			"service", "catalog",
			"store", store,
		)

		return &logService{logger: logger, next: next}
	}
}

func (s *logService) Create(
	ctx context.Context,
	input *Entry,
) (output *Entry, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"entry_input", input,
			"entry_output", output,
			"method", "Create",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Create(ctx, input)
}

func (s *logService) Get(ctx context.Context, name string) (entry *Entry, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"entry", entry,
			"method", "Get",
			"name", name,
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Get(ctx, name)
}

func (s *logService) GetByID(ctx context.Context, id int64) (entry *Entry, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"entry", entry,
			"id", id,
			"method", "GetByID",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.GetByID(ctx, id)
}

func (s *logService) Query(ctx context.Context, opts QueryOptions) (list List, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"datum_size", len(list),
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Query",
			"opts", opts,
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Query(ctx, opts)
}

func (s *logService) Update(
	ctx context.Context,
	id int64,
	patch Patch,
) (entry *Entry, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"entry", entry,
			"id", id,
			"method", "Update",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Update(ctx, id, patch)
}

func (s *logService) Setup(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Setup",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Setup(ctx)
}

func (s *logService) Teardown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Teardown",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Teardown(ctx)
}
