package stream

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Offsets understood by ReadGroup.
const (
	// OffsetNew delivers entries never delivered to any consumer of the group.
	OffsetNew = ">"
	// OffsetPending re-delivers entries delivered to the consumer but not yet
	// acknowledged.
	OffsetPending = "0"
	// OffsetStart positions a new group at the beginning of the stream.
	OffsetStart = "0"
)

// Common read settings.
var (
	DefaultBlock       = 2 * time.Second
	DefaultCount int64 = 100
)

const errBusyGroup = "BUSYGROUP"

// API bundles the Redis stream commands used.
type API interface {
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XLen(ctx context.Context, stream string) *redis.IntCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
}

// Message is a single stream entry.
type Message struct {
	ID     string
	Values map[string]interface{}
}

// SentAt returns the time the entry was appended, derived from the
// millisecond part of its id.
func (m Message) SentAt() time.Time {
	ms, _, ok := strings.Cut(m.ID, "-")
	if !ok {
		return time.Time{}
	}

	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(v)
}

// Client returns a go-redis client for the server at addr.
func Client(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
}

// Append adds an entry with values to the stream and returns its id.
func Append(
	ctx context.Context,
	api API,
	stream string,
	values map[string]interface{},
) (string, error) {
	return api.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
}

// EnsureGroup creates the consumer group on the stream, creating the stream if
// needed. An existing group is not an error.
func EnsureGroup(ctx context.Context, api API, stream, group string) error {
	err := api.XGroupCreateMkStream(ctx, stream, group, OffsetStart).Err()
	if err != nil && !IsBusyGroup(err) {
		return err
	}

	return nil
}

// ReadGroup reads up to count entries from offset as consumer of group,
// waiting at most block for new entries. An elapsed wait returns no messages
// and no error.
func ReadGroup(
	ctx context.Context,
	api API,
	stream, group, consumer, offset string,
	count int64,
	block time.Duration,
) ([]Message, error) {
	args := &redis.XReadGroupArgs{
		Consumer: consumer,
		Count:    count,
		Group:    group,
		Streams:  []string{stream, offset},
	}

	// Pending entries are already there, blocking would only delay an empty
	// answer.
	if offset == OffsetNew {
		args.Block = block
	} else {
		args.Block = -1
	}

	res, err := api.XReadGroup(ctx, args).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ms := []Message{}

	for _, s := range res {
		for _, m := range s.Messages {
			ms = append(ms, Message{
				ID:     m.ID,
				Values: m.Values,
			})
		}
	}

	return ms, nil
}

// Ack acknowledges ids for group.
func Ack(ctx context.Context, api API, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	return api.XAck(ctx, stream, group, ids...).Err()
}

// Len returns the number of entries in the stream.
func Len(ctx context.Context, api API, stream string) (int64, error) {
	return api.XLen(ctx, stream).Result()
}

// IsBusyGroup checks if err reports an already existing consumer group.
func IsBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), errBusyGroup)
}
