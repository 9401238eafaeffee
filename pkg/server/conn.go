package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"switchboard-net/switchboard/pkg/admission"
	"switchboard-net/switchboard/pkg/correlate"
	"switchboard-net/switchboard/pkg/journal"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
	"switchboard-net/switchboard/pkg/pipeline/http1"
	"switchboard-net/switchboard/pkg/pipeline/http2"
	"switchboard-net/switchboard/pkg/tlsengine"
)

// connState is the per-connection bookkeeping the outcome callback needs
// after the pipeline goroutine is gone.
type connState struct {
	raw      net.Conn
	secure   bool
	protocol atomic.Value // negotiation.Protocol
	requests atomic.Int64
}

func (cs *connState) committedProtocol() string {
	if p, ok := cs.protocol.Load().(negotiation.Protocol); ok {
		return p.String()
	}
	return ""
}

// materialize runs the whole pipeline for one admitted connection: TLS
// engine and protocol cell, the switch, then the committed protocol engine.
// Its error is the connection's outcome; the accept loop never sees it.
func (s *Server) materialize(ctx context.Context, b *Binding, connID string, conn net.Conn) error {
	// The outcome callback removes the entry; it runs after materialize
	// returns and still needs the state.
	cs := &connState{raw: conn, secure: b.secure}
	s.inflight.Store(connID, cs)
	defer conn.Close()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectionAccepted(b.name)
		defer s.opts.Metrics.ConnectionClosed()
	}

	cell := negotiation.NewCell()
	stream := conn

	if b.secure {
		engine := tlsengine.NewEngine(conn, b.tlsConf, cell)
		defer engine.Release()

		if err := engine.Handshake(ctx); err != nil {
			if s.opts.Metrics != nil {
				s.opts.Metrics.HandshakeFailed()
				s.opts.Metrics.ConnectionFailed("handshake")
			}
			return err
		}
		stream = engine.Conn()
	}

	sw := negotiation.NewSwitch(cell, stream, negotiation.SwitchConfig{
		DefaultProtocol: s.opts.DefaultProtocol,
		OnMissing:       s.opts.OnMissing,
	})

	proto, pconn, err := sw.Commit()
	if err != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.ConnectionFailed("negotiation")
		}
		return err
	}
	cs.protocol.Store(proto)

	_, negotiated := cell.Read()
	if s.opts.Metrics != nil {
		s.opts.Metrics.ProtocolCommitted(proto.String(), negotiated)
	}
	s.logger.Debug("connection committed",
		"conn_id", connID,
		"binding", b.name,
		"protocol", proto.String(),
		"negotiated", negotiated,
	)

	corr := correlate.New(s.instrument(cs, proto), correlate.Config{
		Parallelism: s.opts.Parallelism,
		ConnID:      connID,
		Protocol:    proto,
		Logger:      s.logger,
	})
	defer corr.Close()

	switch proto {
	case negotiation.ProtocolHTTP2:
		eng := http2.NewEngine(http2.Config{
			IdleTimeout: s.opts.IdleTimeout,
			Logger:      s.logger,
		})
		return eng.Serve(ctx, pconn, corr)
	default:
		eng := http1.NewEngine(http1.Config{
			IdleTimeout: s.opts.IdleTimeout,
			Logger:      s.logger,
		})
		return eng.Serve(ctx, pconn, corr)
	}
}

// instrument wraps the application handler with per-request accounting.
func (s *Server) instrument(cs *connState, proto negotiation.Protocol) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		cs.requests.Add(1)
		start := time.Now()

		resp, err := s.opts.Handler.Handle(ctx, req)

		if s.opts.Metrics != nil {
			status := "ok"
			switch {
			case err != nil:
				status = "error"
			case resp != nil && resp.StatusCode >= http.StatusInternalServerError:
				status = "5xx"
			case resp != nil && resp.StatusCode >= http.StatusBadRequest:
				status = "4xx"
			}
			s.opts.Metrics.RequestCompleted(proto.String(), status, time.Since(start))
		}
		return resp, err
	})
}

// recordOutcome converts one admission outcome into journal and metric
// records.
func (s *Server) recordOutcome(b *Binding, o admission.Outcome) {
	var cs *connState
	if v, ok := s.inflight.LoadAndDelete(o.ConnID); ok {
		cs = v.(*connState)
	}

	if s.opts.Metrics != nil {
		if o.Panicked {
			s.opts.Metrics.PanicRecovered()
		}
		if o.Failed() && !o.Panicked {
			s.opts.Metrics.ConnectionFailed("pipeline")
		}
	}

	if s.opts.Journal == nil {
		return
	}
	rec := &journal.ConnectionRecord{
		ConnID:     o.ConnID,
		RemoteAddr: o.RemoteAddr.String(),
		Secure:     b.secure,
		AcceptedAt: o.StartedAt,
		ClosedAt:   o.EndedAt,
		Panicked:   o.Panicked,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if cs != nil {
		rec.Protocol = cs.committedProtocol()
		rec.Requests = cs.requests.Load()
	}
	s.opts.Journal.Record(rec)
}
