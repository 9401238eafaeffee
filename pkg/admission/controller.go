package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Materializer builds and runs the full pipeline for one accepted
// connection. It returns when the connection's byte stream has terminated;
// its error is the connection's outcome, never the listener's.
type Materializer func(ctx context.Context, connID string, conn net.Conn) error

// Outcome is the completed-with-result record for one connection. Outcomes
// complete in arbitrary order relative to acceptance.
type Outcome struct {
	// ConnID is the connection's unique identifier.
	ConnID string

	// RemoteAddr is the peer address.
	RemoteAddr net.Addr

	// Err is the terminal error, nil on clean completion.
	Err error

	// Panicked marks outcomes produced by recovering a pipeline panic.
	Panicked bool

	// StartedAt and EndedAt bound the connection's lifetime.
	StartedAt time.Time
	EndedAt   time.Time
}

// Failed reports whether the connection terminated with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Controller drives the accept loop for one binding.
type Controller struct {
	slots       *SlotPool
	materialize Materializer
	onOutcome   func(Outcome)
	logger      *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithOutcomeFunc registers a callback invoked once per completed
// connection, from that connection's goroutine.
func WithOutcomeFunc(fn func(Outcome)) Option {
	return func(c *Controller) { c.onOutcome = fn }
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates a controller admitting at most maxConcurrent
// connection pipelines at a time.
func NewController(maxConcurrent int, materialize Materializer, opts ...Option) *Controller {
	c := &Controller{
		slots:       NewSlotPool(maxConcurrent),
		materialize: materialize,
		logger:      slog.Default().With("component", "admission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Slots exposes the slot pool, mainly for metrics.
func (c *Controller) Slots() *SlotPool {
	return c.slots
}

// Serve accepts connections from lis until the listener closes or ctx is
// cancelled. Per-connection failures never terminate the loop: the listener
// keeps accepting despite any number of bad connections.
//
// A slot is acquired before Accept, so when the pool is exhausted the loop
// blocks here and the next connection stays in the kernel backlog until a
// pipeline completes.
func (c *Controller) Serve(ctx context.Context, lis net.Listener) error {
	var backoff time.Duration

	for {
		if err := c.slots.Acquire(ctx); err != nil {
			return err
		}

		conn, err := lis.Accept()
		if err != nil {
			c.slots.Release()

			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			// Transient accept failures (EMFILE and friends) back off and
			// retry rather than tearing down the binding.
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else if backoff *= 2; backoff > time.Second {
					backoff = time.Second
				}
				c.logger.Warn("accept failed, retrying",
					"error", err,
					"backoff", backoff,
				)
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		c.wg.Add(1)
		go c.run(ctx, conn)
	}
}

// run materializes one connection's pipeline and converts every failure mode
// into a local Outcome.
func (c *Controller) run(ctx context.Context, conn net.Conn) {
	outcome := Outcome{
		ConnID:     uuid.NewString(),
		RemoteAddr: conn.RemoteAddr(),
		StartedAt:  time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("pipeline panic: %v", r)
			outcome.Panicked = true
			c.logger.Error("recovered pipeline panic",
				"conn_id", outcome.ConnID,
				"remote_addr", outcome.RemoteAddr.String(),
				"panic", r,
			)
			_ = conn.Close()
		}

		outcome.EndedAt = time.Now()
		if c.onOutcome != nil {
			c.onOutcome(outcome)
		}

		c.slots.Release()
		c.wg.Done()
	}()

	outcome.Err = c.materialize(ctx, outcome.ConnID, conn)
	if outcome.Err != nil {
		c.logger.Debug("connection completed with error",
			"conn_id", outcome.ConnID,
			"remote_addr", outcome.RemoteAddr.String(),
			"error", outcome.Err,
		)
	}
}

// Wait blocks until every admitted pipeline has terminated. It does not stop
// the accept loop; close the listener first.
func (c *Controller) Wait() {
	c.wg.Wait()
}
