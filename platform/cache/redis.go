package cache

import (
	"context"
	"math"
	"strings"

	"github.com/go-kit/log"
	"github.com/gomodule/redigo/redis"

	predis "github.com/i-egik/NameCount/platform/redis"
)

const (
	countPrefix = "named"

	// Optimistic increments for codecs the store can't do arithmetic on give
	// up after this many conflicting writers.
	casAttempts = 16
)

type redisCountService struct {
	codec  Codec
	logger log.Logger
	pool   *redis.Pool
}

// RedisCountService returns a Redis backed CountService storing values in the
// given Codec.
func RedisCountService(
	pool *redis.Pool,
	codec Codec,
	logger log.Logger,
) CountService {
	return &redisCountService{
		codec: codec,
		logger: log.With(
			logger,
			"codec", codec.String(),
			"store", "redis",
		),
		pool: pool,
	}
}

// Get returns the stored value. Transport and decoding failures are logged and
// reported as a missing key.
func (s *redisCountService) Get(ctx context.Context, key string) (int64, error) {
	con, err := s.pool.GetContext(ctx)
	if err != nil {
		s.fail("Get", key, err)
		return 0, wrapError(ErrKeyNotFound, "%s: %s", key, err)
	}
	defer con.Close()

	raw, err := redis.Bytes(con.Do(predis.CommandGet, prefixKey(key)))
	if err == redis.ErrNil {
		return 0, wrapError(ErrKeyNotFound, "%s", key)
	}
	if err != nil {
		s.fail("Get", key, err)
		return 0, wrapError(ErrKeyNotFound, "%s: %s", key, err)
	}

	v, err := s.codec.Decode(raw)
	if err != nil {
		s.fail("Get", key, err)
		return 0, wrapError(ErrKeyNotFound, "%s: %s", key, err)
	}

	return v, nil
}

// Incr adds delta in a single INCRBY for the decimal codec. Other codecs use
// an optimistic WATCH/MULTI transaction which is retried on conflict.
func (s *redisCountService) Incr(
	ctx context.Context,
	key string,
	delta int64,
) (int64, error) {
	con, err := s.pool.GetContext(ctx)
	if err != nil {
		s.fail("Incr", key, err)
		return 0, err
	}
	defer con.Close()

	if s.codec.Native() {
		v, err := redis.Int64(con.Do(predis.CommandIncrBy, prefixKey(key), delta))
		if err != nil {
			s.fail("Incr", key, err)

			if isOverflowReply(err) {
				return 0, wrapError(ErrOverflow, "increment of '%s' by %d", key, delta)
			}

			return 0, err
		}

		return v, nil
	}

	v, err := s.incrCAS(con, prefixKey(key), delta)
	if err != nil {
		s.fail("Incr", key, err)
		return 0, err
	}

	return v, nil
}

func (s *redisCountService) Set(
	ctx context.Context,
	key string,
	value int64,
) (int64, error) {
	con, err := s.pool.GetContext(ctx)
	if err != nil {
		s.fail("Set", key, err)
		return 0, err
	}
	defer con.Close()

	_, err = con.Do(predis.CommandSet, prefixKey(key), s.codec.Encode(value))
	if err != nil {
		s.fail("Set", key, err)
		return 0, err
	}

	return value, nil
}

func (s *redisCountService) Delete(ctx context.Context, key string) error {
	con, err := s.pool.GetContext(ctx)
	if err != nil {
		s.fail("Delete", key, err)
		return err
	}
	defer con.Close()

	_, err = con.Do(predis.CommandDel, prefixKey(key))
	if err != nil {
		s.fail("Delete", key, err)
		return err
	}

	return nil
}

func (s *redisCountService) incrCAS(
	con redis.Conn,
	key string,
	delta int64,
) (int64, error) {
	for i := 0; i < casAttempts; i++ {
		if _, err := con.Do(predis.CommandWatch, key); err != nil {
			return 0, err
		}

		var current int64

		raw, err := redis.Bytes(con.Do(predis.CommandGet, key))
		switch {
		case err == redis.ErrNil:
		case err != nil:
			_, _ = con.Do(predis.CommandUnwatch)
			return 0, err
		default:
			current, err = s.codec.Decode(raw)
			if err != nil {
				_, _ = con.Do(predis.CommandUnwatch)
				return 0, err
			}
		}

		if overflows(current, delta) {
			_, _ = con.Do(predis.CommandUnwatch)
			return 0, wrapError(ErrOverflow, "increment of '%s' by %d", key, delta)
		}

		next := current + delta

		if err := con.Send(predis.CommandMulti); err != nil {
			return 0, err
		}
		if err := con.Send(predis.CommandSet, key, s.codec.Encode(next)); err != nil {
			return 0, err
		}

		res, err := con.Do(predis.CommandExec)
		if err != nil {
			return 0, err
		}

		// A nil reply means a concurrent writer touched the key.
		if res == nil {
			continue
		}

		return next, nil
	}

	return 0, wrapError(ErrValueCodec, "increment of '%s' kept conflicting", key)
}

func (s *redisCountService) fail(method, key string, err error) {
	_ = s.logger.Log(
		"err", err,
		"key", key,
		"method", method,
	)
}

func overflows(current, delta int64) bool {
	if delta > 0 {
		return current > math.MaxInt64-delta
	}

	return current < math.MinInt64-delta
}

func isOverflowReply(err error) bool {
	e, ok := err.(redis.Error)

	return ok && strings.Contains(string(e), "overflow")
}

func prefixKey(key string) string {
	return strings.Join([]string{countPrefix, key}, KeySeparator)
}
