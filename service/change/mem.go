package change

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	delivered bool
	fields    map[string]interface{}
	id        string
	sentAt    time.Time
}

type memSource struct {
	block   time.Duration
	codec   Codec
	entries []*memEntry
	mu      sync.Mutex
	nextID  int
	notify  chan struct{}
}

// MemSource returns a memory backed implementation of Source. Consume waits up
// to block for new entries.
func MemSource(codec Codec, block time.Duration) Source {
	return &memSource{
		block:  block,
		codec:  codec,
		notify: make(chan struct{}, 1),
	}
}

func (s *memSource) Ack(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acked := map[string]struct{}{}

	for _, id := range ids {
		acked[id] = struct{}{}
	}

	es := []*memEntry{}

	for _, e := range s.entries {
		if _, ok := acked[e.id]; ok && e.delivered {
			continue
		}

		es = append(es, e)
	}

	s.entries = es

	return nil
}

func (s *memSource) Consume(ctx context.Context) ([]*StateChange, error) {
	if cs := s.deliver(); len(cs) > 0 {
		return cs, nil
	}

	t := time.NewTimer(s.block)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, ErrEmptySource
	case <-s.notify:
	}

	if cs := s.deliver(); len(cs) > 0 {
		return cs, nil
	}

	return nil, ErrEmptySource
}

func (s *memSource) Propagate(ctx context.Context, event Event) (string, error) {
	return s.append(s.codec.Encode(event)), nil
}

func (s *memSource) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		e.delivered = false
	}
}

func (s *memSource) Setup(ctx context.Context) error {
	return nil
}

func (s *memSource) append(fields map[string]interface{}) string {
	s.mu.Lock()

	s.nextID++

	id := strconv.Itoa(s.nextID)

	s.entries = append(s.entries, &memEntry{
		fields: fields,
		id:     id,
		sentAt: time.Now(),
	})

	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}

	return id
}

func (s *memSource) deliver() []*StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := []*StateChange{}

	for _, e := range s.entries {
		if e.delivered {
			continue
		}

		e.delivered = true

		c := &StateChange{
			AckID:  e.id,
			SentAt: e.sentAt,
		}

		c.Event, c.Err = s.codec.Decode(e.fields)

		cs = append(cs, c)
	}

	return cs
}
