package change

import (
	"context"
	"sync"
	"time"

	"github.com/i-egik/NameCount/platform/stream"
)

// RedisOptions configure the consumer side of a Redis stream Source.
type RedisOptions struct {
	Block    time.Duration
	Codec    Codec
	Consumer string
	Count    int64
	Group    string
	Stream   string
}

type redisSource struct {
	api  stream.API
	opts RedisOptions

	// Entries delivered to this consumer before a restart are replayed first,
	// cursor walks through them until none are left.
	mu      sync.Mutex
	cursor  string
	pending bool
}

// RedisSource returns a Redis stream backed Source. Consumers read as
// opts.Consumer of opts.Group and receive entries left unacknowledged by a
// previous run before new ones.
func RedisSource(api stream.API, opts RedisOptions) Source {
	if opts.Block == 0 {
		opts.Block = stream.DefaultBlock
	}

	if opts.Count == 0 {
		opts.Count = stream.DefaultCount
	}

	if opts.Stream == "" {
		opts.Stream = StreamKey
	}

	return &redisSource{
		api:     api,
		cursor:  stream.OffsetPending,
		opts:    opts,
		pending: true,
	}
}

// Setup ensures the consumer group exists.
func (s *redisSource) Setup(ctx context.Context) error {
	return stream.EnsureGroup(ctx, s.api, s.opts.Stream, s.opts.Group)
}

func (s *redisSource) Ack(ctx context.Context, ids ...string) error {
	return stream.Ack(ctx, s.api, s.opts.Stream, s.opts.Group, ids...)
}

func (s *redisSource) Consume(ctx context.Context) ([]*StateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := stream.OffsetNew
	if s.pending {
		offset = s.cursor
	}

	ms, err := stream.ReadGroup(
		ctx,
		s.api,
		s.opts.Stream,
		s.opts.Group,
		s.opts.Consumer,
		offset,
		s.opts.Count,
		s.opts.Block,
	)
	if err != nil {
		return nil, err
	}

	if s.pending {
		if len(ms) == 0 {
			s.pending = false

			return nil, wrapError(ErrEmptySource, "no pending entries")
		}

		s.cursor = ms[len(ms)-1].ID
	}

	if len(ms) == 0 {
		return nil, ErrEmptySource
	}

	cs := []*StateChange{}

	for _, m := range ms {
		c := &StateChange{
			AckID:  m.ID,
			SentAt: m.SentAt(),
		}

		c.Event, c.Err = s.opts.Codec.Decode(m.Values)

		cs = append(cs, c)
	}

	return cs, nil
}

// Rewind switches back to reading this consumer's pending entries from the
// start.
func (s *redisSource) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = stream.OffsetPending
	s.pending = true
}

func (s *redisSource) Propagate(ctx context.Context, event Event) (string, error) {
	return stream.Append(ctx, s.api, s.opts.Stream, s.opts.Codec.Encode(event))
}
