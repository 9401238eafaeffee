package server

import (
	"crypto/tls"
	"net"
	"sync/atomic"
)

// BindingState is the lifecycle state of one binding.
type BindingState int32

const (
	// StateBound means the binding is accepting connections.
	StateBound BindingState = iota

	// StateDraining means the listener is closed but admitted connections
	// are still running.
	StateDraining

	// StateTerminated means the listener is closed and every admitted
	// connection has completed.
	StateTerminated
)

// String returns the state name.
func (s BindingState) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Binding is one bound listener and its accept loop.
type Binding struct {
	name    string
	lis     net.Listener
	tlsConf *tls.Config
	secure  bool

	state atomic.Int32
	done  chan struct{}
}

// Name returns the binding's name.
func (b *Binding) Name() string {
	return b.name
}

// Addr returns the bound address. Useful when binding to port 0.
func (b *Binding) Addr() net.Addr {
	return b.lis.Addr()
}

// Secure reports whether the binding terminates TLS.
func (b *Binding) Secure() bool {
	return b.secure
}

// State returns the binding's lifecycle state.
func (b *Binding) State() BindingState {
	return BindingState(b.state.Load())
}

// Done is closed once the binding reaches StateTerminated.
func (b *Binding) Done() <-chan struct{} {
	return b.done
}

// drain moves the binding to StateDraining and closes its listener. Admitted
// connections are unaffected. Safe to call more than once.
func (b *Binding) drain() {
	if b.state.CompareAndSwap(int32(StateBound), int32(StateDraining)) {
		_ = b.lis.Close()
	}
}

// terminated marks the binding fully finished.
func (b *Binding) terminated() {
	// Unbind may have skipped the draining state if the accept loop ended on
	// its own.
	b.state.Store(int32(StateTerminated))
	close(b.done)
}
