package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
)

// Result is one completed handler invocation, tagged with the correlation
// identifier of the request that produced it.
type Result struct {
	CorrelationID string
	Response      *pipeline.Response
	Err           error
}

// Config configures a per-connection Correlator.
type Config struct {
	// Parallelism bounds concurrently in-flight handler invocations for this
	// connection. Must be >= 1; default 1 (fully serial).
	Parallelism int

	// ConnID identifies the owning connection. Assigned correlation IDs are
	// derived from it. A fresh UUID is generated when empty.
	ConnID string

	// Protocol is the protocol the connection committed to. Used only to
	// surface the parallelism=1 configuration warning for multiplexed
	// protocols.
	Protocol negotiation.Protocol

	// Logger overrides the component logger.
	Logger *slog.Logger
}

// Correlator drives handler invocations for one connection.
type Correlator struct {
	handler pipeline.Handler
	ledger  *Ledger
	sem     chan struct{}
	connID  string
	seq     atomic.Uint64
	out     chan Result
	logger  *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a correlator for one connection.
//
// Pairing a multiplexing-capable protocol with parallelism 1 defeats the
// point of multiplexing; that combination logs a warning but is not an
// error.
func New(handler pipeline.Handler, cfg Config) *Correlator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.ConnID == "" {
		cfg.ConnID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "correlate")
	}

	if cfg.Protocol.Multiplexed() && cfg.Parallelism == 1 {
		logger.Warn("multiplexed protocol with parallelism 1 degrades to serial handling",
			"conn_id", cfg.ConnID,
			"protocol", cfg.Protocol.String(),
		)
	}

	return &Correlator{
		handler: handler,
		ledger:  NewLedger(),
		sem:     make(chan struct{}, cfg.Parallelism),
		connID:  cfg.ConnID,
		out:     make(chan Result, cfg.Parallelism),
		logger:  logger,
	}
}

// ConnID returns the owning connection's identifier.
func (c *Correlator) ConnID() string {
	return c.connID
}

// InFlight returns the number of pending invocations.
func (c *Correlator) InFlight() int {
	return c.ledger.Len()
}

// assignID returns corrID unchanged when the protocol supplied one, or the
// next monotonic identifier scoped to this connection.
func (c *Correlator) assignID(corrID string) string {
	if corrID != "" {
		return corrID
	}
	return fmt.Sprintf("%s-%d", c.connID, c.seq.Add(1))
}

// acquire takes a parallelism token, applying backpressure to the caller.
func (c *Correlator) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute invokes the handler synchronously, bounded by the parallelism
// semaphore. It is the entry point for engines that hold one goroutine per
// logical stream (the HTTP/2 pipeline): blocking here is the backpressure
// mechanism, requests queue instead of being dropped.
//
// The ledger entry is removed only after the response has been handed back
// to the caller for emission.
func (c *Correlator) Execute(ctx context.Context, corrID string, req *pipeline.Request) (*pipeline.Response, error) {
	id := c.assignID(corrID)

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { <-c.sem }()

	if err := c.ledger.Add(id); err != nil {
		return nil, err
	}
	defer c.ledger.Remove(id)

	req.CorrelationID = id
	req.ConnID = c.connID

	return c.handler.Handle(ctx, req)
}

// Submit invokes the handler asynchronously. The tagged result is delivered
// on Responses in completion order, which may differ arbitrarily from
// submission order. Submit blocks while the connection already has
// Parallelism invocations in flight.
func (c *Correlator) Submit(ctx context.Context, corrID string, req *pipeline.Request) (string, error) {
	id := c.assignID(corrID)

	if err := c.acquire(ctx); err != nil {
		return "", err
	}

	if err := c.ledger.Add(id); err != nil {
		<-c.sem
		return "", err
	}

	req.CorrelationID = id
	req.ConnID = c.connID

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()

		resp, err := c.handler.Handle(ctx, req)
		c.out <- Result{CorrelationID: id, Response: resp, Err: err}
		// Removed only after the response has been emitted downstream.
		c.ledger.Remove(id)
	}()

	return id, nil
}

// Responses delivers completed results for Submit invocations.
func (c *Correlator) Responses() <-chan Result {
	return c.out
}

// Close waits for in-flight Submit invocations and closes the response
// channel. It must not be called concurrently with Submit.
func (c *Correlator) Close() {
	c.closeOnce.Do(func() {
		c.wg.Wait()
		close(c.out)
	})
}
