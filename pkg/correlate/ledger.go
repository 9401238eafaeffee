package correlate

import (
	"fmt"
	"sync"
	"time"
)

// entry is one pending handler invocation.
type entry struct {
	submittedAt time.Time
}

// Ledger maps correlation identifiers to pending handler invocations for one
// connection. Identifiers must be unique for the connection's lifetime. An
// entry is removed only once its response has left the correlator: after the
// result is emitted on Responses for Submit, or when the response is handed
// back to the calling engine for Execute, where the engine owns emission.
type Ledger struct {
	mu      sync.Mutex
	pending map[string]entry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{pending: make(map[string]entry)}
}

// Add registers a pending invocation. A duplicate identifier is a protocol
// or embedding bug and is rejected.
func (l *Ledger) Add(corrID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.pending[corrID]; exists {
		return fmt.Errorf("correlation id %q already in flight", corrID)
	}
	l.pending[corrID] = entry{submittedAt: time.Now()}
	return nil
}

// Remove drops a completed invocation.
func (l *Ledger) Remove(corrID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, corrID)
}

// Len returns the number of invocations currently pending.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
