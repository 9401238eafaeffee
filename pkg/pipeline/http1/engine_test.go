package http1

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"switchboard-net/switchboard/pkg/correlate"
	"switchboard-net/switchboard/pkg/pipeline"
)

func echoHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		return &pipeline.Response{
			StatusCode: 200,
			Body:       []byte(req.Method + " " + req.Path + " " + string(req.Body)),
		}, nil
	})
}

func serve(t *testing.T, cfg Config, handler pipeline.Handler) (net.Conn, chan error) {
	t.Helper()

	client, server := net.Pipe()
	corr := correlate.New(handler, correlate.Config{Parallelism: 1})

	errc := make(chan error, 1)
	go func() {
		errc <- NewEngine(cfg).Serve(context.Background(), server, corr)
	}()
	t.Cleanup(func() { client.Close() })
	return client, errc
}

func roundTrip(t *testing.T, conn net.Conn, br *bufio.Reader, raw string) *http.Response {
	t.Helper()

	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp
}

func TestEngine_SequentialRequests(t *testing.T) {
	client, _ := serve(t, Config{}, echoHandler())
	br := bufio.NewReader(client)

	for _, path := range []string{"/first", "/second", "/third"} {
		resp := roundTrip(t, client, br, "GET "+path+" HTTP/1.1\r\nHost: x\r\n\r\n")
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if got, want := string(body), "GET "+path+" "; got != want {
			t.Errorf("%s: body %q, want %q", path, got, want)
		}
	}
}

func TestEngine_RequestBodyDelivered(t *testing.T) {
	client, _ := serve(t, Config{}, echoHandler())
	br := bufio.NewReader(client)

	resp := roundTrip(t, client, br,
		"POST /submit HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if got, want := string(body), "POST /submit hello"; got != want {
		t.Errorf("body %q, want %q", got, want)
	}
}

func TestEngine_ConnectionCloseHonored(t *testing.T) {
	client, errc := serve(t, Config{}, echoHandler())
	br := bufio.NewReader(client)

	resp := roundTrip(t, client, br,
		"GET /bye HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve returned %v after connection close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not finish after Connection: close")
	}
}

func TestEngine_PeerDisconnectEndsServeCleanly(t *testing.T) {
	client, errc := serve(t, Config{}, echoHandler())
	client.Close()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve returned %v on peer disconnect", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not finish after peer disconnect")
	}
}

func TestEngine_IdleTimeoutClosesConnection(t *testing.T) {
	client, errc := serve(t, Config{IdleTimeout: 50 * time.Millisecond}, echoHandler())
	br := bufio.NewReader(client)

	resp := roundTrip(t, client, br, "GET /once HTTP/1.1\r\nHost: x\r\n\r\n")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// No further request; the idle window expires and the engine hangs up.
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve returned %v on idle timeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not finish after idle timeout")
	}
}

func TestEngine_HandlerErrorYields500AndKeepsConnection(t *testing.T) {
	handler := pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		if req.Path == "/broken" {
			return nil, errors.New("backend unavailable")
		}
		return &pipeline.Response{StatusCode: 200, Body: []byte("ok")}, nil
	})

	client, _ := serve(t, Config{}, handler)
	br := bufio.NewReader(client)

	resp := roundTrip(t, client, br, "GET /broken HTTP/1.1\r\nHost: x\r\n\r\n")
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", resp.StatusCode)
	}

	// A failed exchange is local to its request.
	resp = roundTrip(t, client, br, "GET /fine HTTP/1.1\r\nHost: x\r\n\r\n")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Errorf("follow-up request got status %d body %q", resp.StatusCode, body)
	}
}

func TestWantsClose(t *testing.T) {
	h := http.Header{"Connection": []string{"keep-alive"}}
	if wantsClose(h) {
		t.Error("keep-alive treated as close")
	}
	h = http.Header{"Connection": []string{"Close"}}
	if !wantsClose(h) {
		t.Error("Close header not detected")
	}
}

func TestWriteResponse_DefaultsStatusTo200(t *testing.T) {
	var sb strings.Builder
	req, _ := http.NewRequest("GET", "/x", nil)
	if err := writeResponse(&sb, req, &pipeline.Response{Body: []byte("y")}, false); err != nil {
		t.Fatalf("writeResponse: %v", err)
	}
	if !strings.HasPrefix(sb.String(), "HTTP/1.1 200 OK") {
		t.Errorf("unexpected status line in %q", sb.String())
	}
}
