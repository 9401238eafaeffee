package journal

import (
	"context"
	"time"
)

// ConnectionRecord is one completed connection lifecycle.
type ConnectionRecord struct {
	// ID is the record's unique identifier.
	ID string `json:"id"`

	// ConnID is the connection identifier assigned at admission.
	ConnID string `json:"conn_id"`

	// RemoteAddr is the peer address.
	RemoteAddr string `json:"remote_addr"`

	// Protocol is the protocol the connection committed to, or empty when it
	// failed before commitment.
	Protocol string `json:"protocol"`

	// Secure reports whether the connection arrived on a TLS binding.
	Secure bool `json:"secure"`

	// AcceptedAt and ClosedAt bound the connection's lifetime.
	AcceptedAt time.Time `json:"accepted_at"`
	ClosedAt   time.Time `json:"closed_at"`

	// Requests is the number of logical requests handled on the connection.
	Requests int64 `json:"requests"`

	// Error holds the failure that ended the connection, empty on a clean
	// close.
	Error string `json:"error,omitempty"`

	// Panicked reports whether the connection's pipeline panicked.
	Panicked bool `json:"panicked"`
}

// Duration returns the connection's lifetime.
func (r *ConnectionRecord) Duration() time.Duration {
	return r.ClosedAt.Sub(r.AcceptedAt)
}

// Query filters journal reads and deletes. Zero-valued fields do not
// constrain the result.
type Query struct {
	// Since and Until bound AcceptedAt.
	Since *time.Time
	Until *time.Time

	// Protocol filters by committed protocol.
	Protocol string

	// Outcome filters by how the connection ended: "clean", "error" or
	// "panic".
	Outcome string

	// Limit and Offset paginate. Limit 0 applies the backend default.
	Limit  int
	Offset int
}

// Storage persists connection records.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, rec *ConnectionRecord) error

	// Query returns records matching q, newest first.
	Query(ctx context.Context, q *Query) ([]*ConnectionRecord, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q and returns how many went away.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}
