package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"switchboard-net/switchboard/pkg/admission"
	"switchboard-net/switchboard/pkg/journal"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
	"switchboard-net/switchboard/pkg/telemetry/metrics"
)

var (
	// ErrBindingExists is returned when a binding name is already in use.
	ErrBindingExists = errors.New("server: binding name already in use")

	// ErrBindingNotFound is returned by Unbind for an unknown name.
	ErrBindingNotFound = errors.New("server: no such binding")

	// ErrTerminated is returned when binding after Terminate.
	ErrTerminated = errors.New("server: already terminated")
)

// Options configures a Server.
type Options struct {
	// Handler receives every decoded request. Required.
	Handler pipeline.Handler

	// MaxConnections caps concurrently admitted connections per binding.
	// Values below 1 are clamped to 1.
	MaxConnections int

	// Parallelism bounds concurrent handling per multiplexed connection.
	// Default 1.
	Parallelism int

	// IdleTimeout closes connections with no request activity. Zero
	// disables it.
	IdleTimeout time.Duration

	// ShutdownTimeout is the default grace period for Terminate. Default
	// 30s.
	ShutdownTimeout time.Duration

	// DefaultProtocol and OnMissing configure the fallback policy applied
	// when the peer negotiated nothing.
	DefaultProtocol negotiation.Protocol
	OnMissing       negotiation.MissingPolicy

	// Metrics records pipeline metrics. Optional.
	Metrics *metrics.Collector

	// Journal records connection lifecycles. Optional.
	Journal *journal.Recorder

	// Logger overrides the component logger.
	Logger *slog.Logger
}

// Server owns a set of bindings and their shared termination lifecycle.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	bindings map[string]*Binding

	// drained holds bindings removed by Unbind. Their admitted connections
	// are still running, so Terminate must keep waiting on them.
	drained []*Binding

	// inflight tracks admitted connections so Terminate can force-close the
	// stragglers.
	inflight sync.Map // conn ID -> *connState

	baseCtx    context.Context
	cancelBase context.CancelFunc

	termOnce sync.Once
	done     chan struct{}
}

// New creates a server.
func New(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("server: handler is required")
	}
	if opts.MaxConnections < 1 {
		opts.MaxConnections = 1
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.DefaultProtocol == negotiation.ProtocolUnset {
		opts.DefaultProtocol = negotiation.ProtocolHTTP1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:       opts,
		logger:     opts.Logger,
		bindings:   make(map[string]*Binding),
		baseCtx:    ctx,
		cancelBase: cancel,
		done:       make(chan struct{}),
	}, nil
}

// BindSecure binds a TLS listener on addr. The certificate source comes from
// tlsConf, typically wired to a CertReloader's GetCertificate.
func (s *Server) BindSecure(name, addr string, tlsConf *tls.Config) (*Binding, error) {
	if tlsConf == nil {
		return nil, errors.New("server: tls config is required for a secure binding")
	}
	return s.bind(name, addr, tlsConf)
}

// BindPlain binds a plaintext listener on addr. With no TLS there is no
// negotiation; every connection takes the fallback path.
func (s *Server) BindPlain(name, addr string) (*Binding, error) {
	return s.bind(name, addr, nil)
}

func (s *Server) bind(name, addr string, tlsConf *tls.Config) (*Binding, error) {
	select {
	case <-s.done:
		return nil, ErrTerminated
	default:
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %q: %w", name, err)
	}

	b := &Binding{
		name:    name,
		lis:     lis,
		tlsConf: tlsConf,
		secure:  tlsConf != nil,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.bindings[name]; exists {
		s.mu.Unlock()
		lis.Close()
		return nil, fmt.Errorf("%w: %q", ErrBindingExists, name)
	}
	s.bindings[name] = b
	s.mu.Unlock()

	ctrl := admission.NewController(
		s.opts.MaxConnections,
		func(ctx context.Context, connID string, conn net.Conn) error {
			return s.materialize(ctx, b, connID, conn)
		},
		admission.WithOutcomeFunc(func(o admission.Outcome) { s.recordOutcome(b, o) }),
		admission.WithLogger(s.logger.With("binding", name)),
	)

	go func() {
		err := ctrl.Serve(s.baseCtx, lis)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("accept loop ended", "binding", name, "error", err)
		}
		ctrl.Wait()
		b.terminated()
	}()

	s.logger.Info("binding established",
		"binding", name,
		"address", lis.Addr().String(),
		"secure", b.secure,
	)
	return b, nil
}

// Binding returns the named binding, or nil.
func (s *Server) Binding(name string) *Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings[name]
}

// Unbind stops accepting on the named binding. Connections already admitted
// run to completion; the binding reaches StateTerminated when they finish.
func (s *Server) Unbind(name string) error {
	s.mu.Lock()
	b, ok := s.bindings[name]
	if ok {
		delete(s.bindings, name)
		s.drained = append(s.drained, b)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrBindingNotFound, name)
	}
	b.drain()
	s.logger.Info("binding draining", "binding", name)
	return nil
}

// forcedCloseWait bounds how long Terminate waits for pipelines to unwind
// after their sockets have been force-closed. It is overhead on top of the
// grace period, so it stays short and fixed.
const forcedCloseWait = 500 * time.Millisecond

// Terminate gracefully shuts the server down: every binding stops accepting,
// in-flight connections get up to timeout to finish, and whatever is still
// open afterwards is force-closed. A timeout of zero uses the configured
// ShutdownTimeout. Terminate is idempotent; later calls wait for the first.
func (s *Server) Terminate(timeout time.Duration) error {
	s.termOnce.Do(func() {
		if timeout <= 0 {
			timeout = s.opts.ShutdownTimeout
		}

		s.mu.Lock()
		bindings := make([]*Binding, 0, len(s.bindings)+len(s.drained))
		for _, b := range s.bindings {
			bindings = append(bindings, b)
		}
		// Unbound bindings stopped accepting but may still carry admitted
		// connections; they drain and force-close like the rest.
		bindings = append(bindings, s.drained...)
		s.bindings = make(map[string]*Binding)
		s.drained = nil
		s.mu.Unlock()

		s.logger.Info("terminating", "bindings", len(bindings), "grace", timeout)
		for _, b := range bindings {
			b.drain()
		}

		if !s.waitBindings(bindings, timeout) {
			// Cancel first so handlers watching the context stop on their
			// own, then pull the sockets out from under the rest.
			s.cancelBase()

			forced := 0
			s.inflight.Range(func(_, v any) bool {
				v.(*connState).raw.Close()
				forced++
				return true
			})
			s.logger.Warn("grace period expired, force-closed connections", "count", forced)

			s.waitBindings(bindings, forcedCloseWait)
		} else {
			s.cancelBase()
		}

		close(s.done)
		s.logger.Info("terminated")
	})

	<-s.done
	return nil
}

// waitBindings waits until every binding terminates or d elapses.
func (s *Server) waitBindings(bindings []*Binding, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for _, b := range bindings {
		select {
		case <-b.Done():
		case <-deadline.C:
			return false
		}
	}
	return true
}

// Done is closed once Terminate has fully completed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
