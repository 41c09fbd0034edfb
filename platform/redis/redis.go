package redis

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// Commands.
const (
	CommandAuth    = "AUTH"
	CommandDecr    = "DECR"
	CommandDel     = "DEL"
	CommandEx      = "EX"
	CommandExec    = "EXEC"
	CommandGet     = "GET"
	CommandIncrBy  = "INCRBY"
	CommandMulti   = "MULTI"
	CommandPing    = "PING"
	CommandSelect  = "SELECT"
	CommandSet     = "SET"
	CommandTTL     = "TTL"
	CommandUnwatch = "UNWATCH"
	CommandWatch   = "WATCH"
)

// Defaults.
const (
	defaultIdleTimeout = 240 * time.Second
	defaultMaxIdle     = 10
	defaultNetwork     = "tcp"
	defaultTimeout     = 2 * time.Second
)

type dialFunc func() (redis.Conn, error)

// Pool returns a connection pool for the Redis server at addr. Connections
// authenticate with password when set and switch to db.
func Pool(addr, password string, db int) *redis.Pool {
	return &redis.Pool{
		Dial:         dial(addr, password, db),
		IdleTimeout:  defaultIdleTimeout,
		MaxIdle:      defaultMaxIdle,
		TestOnBorrow: borrow,
	}
}

// Ping checks that a connection can be borrowed and answers.
func Ping(pool *redis.Pool) error {
	con := pool.Get()
	defer con.Close()

	_, err := con.Do(CommandPing)
	return err
}

func borrow(c redis.Conn, t time.Time) error {
	if time.Since(t) < time.Minute {
		return nil
	}

	_, err := c.Do(CommandPing)
	return err
}

func dial(addr, password string, db int) dialFunc {
	return func() (redis.Conn, error) {
		c, err := redis.Dial(
			defaultNetwork,
			addr,
			redis.DialConnectTimeout(defaultTimeout),
			redis.DialReadTimeout(defaultTimeout),
			redis.DialWriteTimeout(defaultTimeout),
		)
		if err != nil {
			return nil, err
		}

		if password != "" {
			if _, err := c.Do(CommandAuth, password); err != nil {
				c.Close()

				return nil, err
			}
		}

		if db != 0 {
			if _, err := c.Do(CommandSelect, db); err != nil {
				c.Close()

				return nil, err
			}
		}

		return c, err
	}
}
