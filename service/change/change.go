package change

import (
	"context"
	"fmt"
	"time"
)

// StreamKey is the stream all counter changes are appended to.
const StreamKey = "counter_updates"

// Event is the post-mutation value of a counter for a user.
type Event struct {
	CounterID int64 `json:"counter_id"`
	UserID    int64 `json:"user_id"`
	Value     int64 `json:"value"`
}

func (e Event) String() string {
	return fmt.Sprintf("%d:%d:%d", e.UserID, e.CounterID, e.Value)
}

// StateChange transports a consumed Event. Entries which could not be decoded
// carry Err instead and still need to be acknowledged.
type StateChange struct {
	AckID  string
	Err    error
	Event  Event
	SentAt time.Time
}

// Acker acknowledges consumed state changes.
type Acker interface {
	Ack(ctx context.Context, ids ...string) error
}

// Consumer observes state changes. An empty batch is reported as
// ErrEmptySource. After Rewind the next Consume starts over with the entries
// delivered before but not yet acknowledged, in their original order.
type Consumer interface {
	Consume(ctx context.Context) ([]*StateChange, error)
	Rewind()
}

// Producer creates a state change notification.
type Producer interface {
	Propagate(ctx context.Context, event Event) (string, error)
}

// Source encapsulates state change notification operations. Setup prepares
// the consumer side and is idempotent.
type Source interface {
	Acker
	Consumer
	Producer

	Setup(ctx context.Context) error
}

// SourceMiddleware is a chainable behaviour modifier for Source.
type SourceMiddleware func(Source) Source
