package core

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/service/change"
)

// CounterGetFunc returns the current value of the named counter for a user.
type CounterGetFunc func(ctx context.Context, name string, userID int64) (int64, error)

// CounterGet returns the current value of the named counter for a user. A
// counter which was never written is reported as ErrNotFound.
func CounterGet(
	resolve CatalogResolveFunc,
	values cache.Service[string, int64],
) CounterGetFunc {
	return func(ctx context.Context, name string, userID int64) (int64, error) {
		id, err := resolve(ctx, name)
		if err != nil {
			return 0, err
		}

		v, err := values.Get(ctx, counterKey(id, userID))
		if err != nil {
			if cache.IsKeyNotFound(err) {
				return 0, wrapError(ErrNotFound, "no value for '%s' of user %d", name, userID)
			}

			return 0, wrapError(ErrUnavailable, "counter get: %s", err)
		}

		return v, nil
	}
}

// CounterIncrementFunc adds delta to the named counter of a user and returns
// the new value.
type CounterIncrementFunc func(
	ctx context.Context,
	name string,
	userID int64,
	delta int64,
) (int64, error)

// CounterIncrement adds delta to the named counter of a user and returns the
// new value. Deltas which are not positive or exceed the 32-bit range count
// as 1. The change is published best-effort.
func CounterIncrement(
	resolve CatalogResolveFunc,
	counts cache.CountService,
	values cache.LocalCache[string, int64],
	producer change.Producer,
) CounterIncrementFunc {
	return func(
		ctx context.Context,
		name string,
		userID int64,
		delta int64,
	) (int64, error) {
		if delta <= 0 || delta > math.MaxInt32 {
			delta = 1
		}

		id, err := resolve(ctx, name)
		if err != nil {
			return 0, err
		}

		key := counterKey(id, userID)

		v, err := counts.Incr(ctx, key, delta)
		if err != nil {
			if cache.IsOverflow(err) {
				return 0, wrapError(ErrInvalidEntity, "counter increment: %s", err)
			}

			return 0, wrapError(ErrUnavailable, "counter increment: %s", err)
		}

		values.Invalidate(key)

		_, _ = producer.Propagate(ctx, change.Event{
			CounterID: id,
			UserID:    userID,
			Value:     v,
		})

		return v, nil
	}
}

// CounterResetFunc sets the named counter of a user back to zero.
type CounterResetFunc func(ctx context.Context, name string, userID int64) (int64, error)

// CounterReset sets the named counter of a user back to zero. The default
// value of the catalog entry is not consulted.
func CounterReset(
	resolve CatalogResolveFunc,
	values cache.Service[string, int64],
	producer change.Producer,
) CounterResetFunc {
	return func(ctx context.Context, name string, userID int64) (int64, error) {
		id, err := resolve(ctx, name)
		if err != nil {
			return 0, err
		}

		if err := values.Update(ctx, counterKey(id, userID), 0); err != nil {
			return 0, wrapError(ErrUnavailable, "counter reset: %s", err)
		}

		_, _ = producer.Propagate(ctx, change.Event{
			CounterID: id,
			UserID:    userID,
		})

		return 0, nil
	}
}

func counterKey(counterID, userID int64) string {
	return strings.Join([]string{
		strconv.FormatInt(counterID, 10),
		strconv.FormatInt(userID, 10),
	}, cache.KeySeparator)
}
