package admission

import (
	"context"
	"sync/atomic"
)

// SlotPool is a counting semaphore over the right to materialize one more
// connection pipeline. It is the only admission state shared across
// connections, so acquire/release must be safe under concurrency; the
// channel provides blocking acquisition and the atomic counter cheap
// introspection for metrics.
type SlotPool struct {
	slots chan struct{}
	limit int64
	inUse atomic.Int64
}

// NewSlotPool creates a pool with the given capacity. Capacity below 1 is
// clamped to 1 so a misconfigured pool still admits connections serially.
func NewSlotPool(limit int) *SlotPool {
	if limit < 1 {
		limit = 1
	}
	return &SlotPool{
		slots: make(chan struct{}, limit),
		limit: int64(limit),
	}
}

// Acquire blocks until a slot frees or ctx is cancelled.
func (p *SlotPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		p.inUse.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking. Returns false when the pool is
// exhausted.
func (p *SlotPool) TryAcquire() bool {
	select {
	case p.slots <- struct{}{}:
		p.inUse.Add(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (p *SlotPool) Release() {
	select {
	case <-p.slots:
		p.inUse.Add(-1)
	default:
		// Unbalanced release is a caller bug; ignoring it keeps the
		// counter from going negative.
	}
}

// InUse returns the number of outstanding slots.
func (p *SlotPool) InUse() int64 {
	return p.inUse.Load()
}

// Limit returns the pool capacity.
func (p *SlotPool) Limit() int64 {
	return p.limit
}
