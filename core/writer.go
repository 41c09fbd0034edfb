package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/log"

	"github.com/i-egik/NameCount/service/change"
	"github.com/i-egik/NameCount/service/counter"
)

// WriterState is the phase a Writer is in.
type WriterState int32

// Writer states.
const (
	WriterIdle WriterState = iota
	WriterGroupEnsured
	WriterReading
	WriterApplying
	WriterFailed
)

var writerStateNames = map[WriterState]string{
	WriterApplying:     "applying",
	WriterFailed:       "failed",
	WriterGroupEnsured: "group_ensured",
	WriterIdle:         "idle",
	WriterReading:      "reading",
}

func (s WriterState) String() string {
	if n, ok := writerStateNames[s]; ok {
		return n
	}

	return "unknown"
}

// Writer defaults.
const (
	DefaultWriterInitialInterval = 100 * time.Millisecond
	DefaultWriterMaxInterval     = 5 * time.Second
	DefaultWriterReadRetries     = 3
	DefaultWriterSetupRetries    = 5
)

// WriterOptions tune retries of a Writer.
type WriterOptions struct {
	InitialInterval time.Duration
	Logger          log.Logger
	MaxInterval     time.Duration
	// ReadRetries bounds the retries of a single read cycle, after that the
	// cycle is given up and the next one starts.
	ReadRetries uint64
	// SetupRetries bounds the attempts to ensure the consumer group, after
	// that the Writer fails.
	SetupRetries uint64
}

// Writer consumes counter changes and persists them as durable counter rows.
// It is the only writer of those rows.
type Writer struct {
	counters counter.Service
	logger   log.Logger
	opts     WriterOptions
	// retry spaces out replays of entries whose apply failed, it is reset by
	// every batch applied in full.
	retry  *backoff.ExponentialBackOff
	source change.Source
	state  atomic.Int32
}

// NewWriter returns a Writer applying changes from source to counters.
func NewWriter(
	counters counter.Service,
	source change.Source,
	opts WriterOptions,
) *Writer {
	if opts.InitialInterval == 0 {
		opts.InitialInterval = DefaultWriterInitialInterval
	}

	if opts.MaxInterval == 0 {
		opts.MaxInterval = DefaultWriterMaxInterval
	}

	if opts.ReadRetries == 0 {
		opts.ReadRetries = DefaultWriterReadRetries
	}

	if opts.SetupRetries == 0 {
		opts.SetupRetries = DefaultWriterSetupRetries
	}

	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.InitialInterval
	retry.MaxInterval = opts.MaxInterval
	retry.MaxElapsedTime = 0

	return &Writer{
		counters: counters,
		logger:   log.With(opts.Logger, "component", "writer"),
		opts:     opts,
		retry:    retry,
		source:   source,
	}
}

// State returns the current phase.
func (w *Writer) State() WriterState {
	return WriterState(w.state.Load())
}

// Run ensures the consumer group and applies consumed changes until ctx is
// done. A batch being applied when ctx is cancelled is finished first. When an
// apply fails the source is rewound after a backoff so the failed entry and
// everything after it is applied again in order. Run only returns an error if
// the group could not be ensured.
func (w *Writer) Run(ctx context.Context) error {
	w.setState(WriterIdle)

	err := backoff.Retry(func() error {
		return w.source.Setup(ctx)
	}, w.backoff(ctx, w.opts.SetupRetries))
	if err != nil {
		w.setState(WriterFailed)

		return wrapError(ErrUnavailable, "consumer group setup: %s", err)
	}

	w.setState(WriterGroupEnsured)

	for {
		if ctx.Err() != nil {
			w.setState(WriterIdle)
			return nil
		}

		w.setState(WriterReading)

		cs, err := w.read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				_ = w.logger.Log("err", err, "state", WriterReading)
			}

			continue
		}

		if len(cs) == 0 {
			continue
		}

		w.setState(WriterApplying)

		if w.apply(context.WithoutCancel(ctx), cs) {
			w.retry.Reset()
			continue
		}

		w.replay(ctx)
	}
}

// replay waits out the retry backoff and rewinds the source to the entries
// left unacknowledged.
func (w *Writer) replay(ctx context.Context) {
	t := time.NewTimer(w.retry.NextBackOff())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	w.source.Rewind()
}

func (w *Writer) read(ctx context.Context) ([]*change.StateChange, error) {
	var cs []*change.StateChange

	err := backoff.Retry(func() error {
		var err error

		cs, err = w.source.Consume(ctx)
		switch {
		case change.IsEmptySource(err):
			cs = nil
			return nil
		case err != nil && ctx.Err() != nil:
			return backoff.Permanent(err)
		}

		return err
	}, w.backoff(ctx, w.opts.ReadRetries))

	return cs, err
}

// apply upserts decodable changes in order and reports if all of them were
// applied. Malformed entries are acknowledged and skipped. The first failed
// upsert stops the batch, it and the changes after it stay unacknowledged.
func (w *Writer) apply(ctx context.Context, cs []*change.StateChange) bool {
	var (
		ids = []string{}
		ok  = true
	)

	for _, c := range cs {
		if c.Err != nil {
			_ = w.logger.Log(
				"ack_id", c.AckID,
				"err", c.Err,
				"state", WriterApplying,
			)

			ids = append(ids, c.AckID)

			continue
		}

		_, err := w.counters.UpdateOrCreate(
			ctx,
			c.Event.CounterID,
			c.Event.UserID,
			c.Event.Value,
		)
		if err != nil {
			_ = w.logger.Log(
				"ack_id", c.AckID,
				"err", err,
				"event", c.Event.String(),
				"state", WriterApplying,
			)

			ok = false

			break
		}

		ids = append(ids, c.AckID)
	}

	if len(ids) == 0 {
		return ok
	}

	if err := w.source.Ack(ctx, ids...); err != nil {
		_ = w.logger.Log("ack_ids", ids, "err", err, "state", WriterApplying)
	}

	return ok
}

func (w *Writer) backoff(ctx context.Context, retries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.InitialInterval
	b.MaxInterval = w.opts.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func (w *Writer) setState(s WriterState) {
	w.state.Store(int32(s))
}
