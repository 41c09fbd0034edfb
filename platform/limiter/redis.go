package limiter

import (
	"context"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	predis "github.com/i-egik/NameCount/platform/redis"
)

type redisLimiter struct {
	prefix string
	pool   *redis.Pool
}

// Redis returns a Redis Limiter implementation.
func Redis(pool *redis.Pool, prefix string) Limiter {
	return &redisLimiter{
		prefix: prefix,
		pool:   pool,
	}
}

func (l *redisLimiter) Request(
	ctx context.Context,
	limitee *Limitee,
) (int64, time.Time, error) {
	var (
		expires = time.Now().Add(limitee.WindowSize)
		key     = strings.Join([]string{l.prefix, limitee.Hash}, ":")
	)

	con, err := l.pool.GetContext(ctx)
	if err != nil {
		return 0, time.Now(), err
	}
	defer con.Close()

	quota, err := getQuota(con, key)
	if err != nil {
		return 0, time.Now(), err
	}

	ttl, err := getTTL(con, key)
	if err != nil {
		return 0, time.Now(), err
	}

	// Fresh key or one left behind without expiry, start a new window.
	if ttl < 0 {
		quota = limitee.Limit - 1

		_, err := con.Do(
			predis.CommandSet,
			key,
			quota,
			predis.CommandEx,
			int64(limitee.WindowSize/time.Second),
		)
		if err != nil {
			return 0, time.Now(), err
		}

		return quota, expires, nil
	}

	return quota, time.Now().Add(ttl), nil
}

// DECR on non-existent keys will set them to `-1` we can make use of that to
// determine if we have to reset the quota.
func getQuota(con redis.Conn, key string) (int64, error) {
	return redis.Int64(con.Do(predis.CommandDecr, key))
}

// TTL returns -2 for a key that doesn't exist and -1 if none is set.
func getTTL(con redis.Conn, key string) (time.Duration, error) {
	ttl, err := redis.Int64(con.Do(predis.CommandTTL, key))
	if err != nil {
		return 0, err
	}

	return time.Duration(ttl) * time.Second, nil
}
