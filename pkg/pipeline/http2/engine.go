package http2

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"switchboard-net/switchboard/pkg/correlate"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
)

// maxBodyBytes caps how much of a request body is read into memory.
const maxBodyBytes = 10 << 20

// Config configures an HTTP/2 engine.
type Config struct {
	// IdleTimeout closes the connection when no stream is open and none
	// arrives within the window. Zero disables the timeout.
	IdleTimeout time.Duration

	// MaxConcurrentStreams is advertised to the peer. Zero uses the
	// library default. The effective per-connection handler concurrency is
	// still the correlator's parallelism bound; streams beyond it queue.
	MaxConcurrentStreams uint32

	// Logger overrides the component logger.
	Logger *slog.Logger
}

// Engine serves HTTP/2 connections.
type Engine struct {
	srv    *http2.Server
	logger *slog.Logger
}

// NewEngine creates an HTTP/2 engine.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http2")
	}
	return &Engine{
		srv: &http2.Server{
			IdleTimeout:          cfg.IdleTimeout,
			MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		},
		logger: logger,
	}
}

// Serve runs the HTTP/2 connection until the peer goes away, the idle
// timeout fires, or ctx is cancelled. The library opens one goroutine per
// stream; each blocks in the correlator until a parallelism token frees,
// which is the queueing behavior multiplexed requests get instead of
// rejection.
func (e *Engine) Serve(ctx context.Context, conn net.Conn, corr *correlate.Correlator) error {
	defer conn.Close()

	e.srv.ServeConn(conn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			e.handleStream(w, r, corr)
		}),
	})
	return nil
}

func (e *Engine) handleStream(w http.ResponseWriter, r *http.Request, corr *correlate.Correlator) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	var remote net.Addr
	if r.RemoteAddr != "" {
		remote = strAddr(r.RemoteAddr)
	}

	preq := &pipeline.Request{
		Protocol:   negotiation.ProtocolHTTP2,
		Method:     r.Method,
		Path:       r.URL.RequestURI(),
		Header:     r.Header,
		Body:       body,
		RemoteAddr: remote,
	}

	resp, err := corr.Execute(r.Context(), "", preq)
	if err != nil {
		e.logger.Error("handler failed",
			"conn_id", corr.ConnID(),
			"correlation_id", preq.CorrelationID,
			"error", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			e.logger.Debug("writing response body",
				"conn_id", corr.ConnID(),
				"correlation_id", preq.CorrelationID,
				"error", err,
			)
		}
	}
}

// strAddr adapts the string remote address the HTTP/2 library exposes back
// to a net.Addr.
type strAddr string

func (a strAddr) Network() string { return "tcp" }
func (a strAddr) String() string  { return string(a) }
