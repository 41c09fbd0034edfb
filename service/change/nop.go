package change

import "context"

type nopSource struct{}

// NopSource returns a noop implementation of Source.
func NopSource() Source {
	return &nopSource{}
}

func (s *nopSource) Ack(ctx context.Context, ids ...string) error {
	return nil
}

func (s *nopSource) Consume(ctx context.Context) ([]*StateChange, error) {
	<-ctx.Done()

	return nil, ErrEmptySource
}

func (s *nopSource) Propagate(ctx context.Context, event Event) (string, error) {
	return "", nil
}

func (s *nopSource) Rewind() {}

func (s *nopSource) Setup(ctx context.Context) error {
	return nil
}
