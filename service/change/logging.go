package change

import (
	"context"
	"time"

	"github.com/go-kit/log"
)

type logSource struct {
	logger log.Logger
	next   Source
}

// LogSourceMiddleware given a Logger wraps the next Source with logging
// capabilities.
func LogSourceMiddleware(store string, logger log.Logger) SourceMiddleware {
	return func(next Source) Source {
		logger = log.With(
			logger,
			"source", "change",
			"store", store,
		)

		return &logSource{
			logger: logger,
			next:   next,
		}
	}
}

func (s *logSource) Ack(ctx context.Context, ids ...string) (err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"ack_ids", ids,
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Ack",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Ack(ctx, ids...)
}

func (s *logSource) Consume(ctx context.Context) (changes []*StateChange, err error) {
	defer func(begin time.Time) {
		if IsEmptySource(err) {
			return
		}

		ps := []interface{}{
			"datum_size", len(changes),
			"duration_ns", time.Since(begin).Nanoseconds(),
			"method", "Consume",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Consume(ctx)
}

func (s *logSource) Propagate(ctx context.Context, event Event) (id string, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"event", event.String(),
			"id", id,
			"method", "Propagate",
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Propagate(ctx, event)
}

func (s *logSource) Rewind() {
	_ = s.logger.Log("method", "Rewind")

	s.next.Rewind()
}

func (s *logSource) Setup(ctx context.Context) (err error) {
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
