package http1

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"switchboard-net/switchboard/pkg/correlate"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
)

// maxBodyBytes caps how much of a request body is read into memory.
const maxBodyBytes = 10 << 20

// Config configures an HTTP/1.1 engine.
type Config struct {
	// IdleTimeout closes the connection when no new request arrives within
	// the window. Zero disables the timeout.
	IdleTimeout time.Duration

	// Logger overrides the component logger.
	Logger *slog.Logger
}

// Engine serves HTTP/1.1 connections.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an HTTP/1.1 engine.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http1")
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Serve reads requests off conn until the peer closes, the idle timeout
// fires, or ctx is cancelled. Each request runs through corr synchronously;
// HTTP/1.1 has no stream multiplexing, so in-order handling is the protocol's
// own framing requirement, not a concurrency limit imposed here.
func (e *Engine) Serve(ctx context.Context, conn net.Conn, corr *correlate.Correlator) error {
	defer conn.Close()

	br := bufio.NewReader(conn)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.cfg.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(e.cfg.IdleTimeout)); err != nil {
				return fmt.Errorf("setting idle deadline: %w", err)
			}
		}

		req, err := http.ReadRequest(br)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return nil
			case errors.Is(err, os.ErrDeadlineExceeded):
				e.logger.Debug("closing idle connection",
					"conn_id", corr.ConnID(),
					"remote_addr", conn.RemoteAddr().String(),
				)
				return nil
			default:
				return fmt.Errorf("reading request: %w", err)
			}
		}
		if e.cfg.IdleTimeout > 0 {
			// The idle window covers waiting between requests, not handling.
			if err := conn.SetReadDeadline(time.Time{}); err != nil {
				return fmt.Errorf("clearing idle deadline: %w", err)
			}
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		req.Body.Close()
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}

		preq := &pipeline.Request{
			Protocol:   negotiation.ProtocolHTTP1,
			Method:     req.Method,
			Path:       req.URL.RequestURI(),
			Header:     req.Header,
			Body:       body,
			RemoteAddr: conn.RemoteAddr(),
		}

		resp, err := corr.Execute(ctx, "", preq)
		if err != nil {
			e.logger.Error("handler failed",
				"conn_id", corr.ConnID(),
				"correlation_id", preq.CorrelationID,
				"error", err,
			)
			resp = &pipeline.Response{StatusCode: http.StatusInternalServerError}
		}

		closing := req.Close || wantsClose(req.Header)
		if err := writeResponse(conn, req, resp, closing); err != nil {
			return fmt.Errorf("writing response %s: %w", preq.CorrelationID, err)
		}
		if closing {
			return nil
		}
	}
}

// wantsClose reports whether the peer asked to end the connection after this
// exchange.
func wantsClose(h http.Header) bool {
	for _, v := range h.Values("Connection") {
		if strings.EqualFold(strings.TrimSpace(v), "close") {
			return true
		}
	}
	return false
}

// writeResponse serializes one response onto the wire.
func writeResponse(w io.Writer, req *http.Request, resp *pipeline.Response, closing bool) error {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	hr := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Header:        resp.Header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Close:         closing,
	}
	if hr.Header == nil {
		hr.Header = make(http.Header)
	}
	return hr.Write(w)
}
