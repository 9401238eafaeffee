package http2

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/http2"

	"switchboard-net/switchboard/pkg/correlate"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
)

// clientConn dials the engine over an in-memory pipe and returns an HTTP/2
// client connection speaking to it.
func clientConn(t *testing.T, parallelism int, handler pipeline.Handler) *http2.ClientConn {
	t.Helper()

	client, server := net.Pipe()
	corr := correlate.New(handler, correlate.Config{
		Parallelism: parallelism,
		Protocol:    negotiation.ProtocolHTTP2,
	})

	go func() {
		NewEngine(Config{}).Serve(context.Background(), server, corr)
	}()

	tr := &http2.Transport{AllowHTTP: true}
	cc, err := tr.NewClientConn(client)
	if err != nil {
		t.Fatalf("client conn: %v", err)
	}
	t.Cleanup(func() {
		cc.Close()
		client.Close()
	})
	return cc
}

func get(t *testing.T, cc *http2.ClientConn, path string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "http://switchboard.test"+path, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := cc.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, string(body)
}

func TestEngine_RoundTrip(t *testing.T) {
	handler := pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		return &pipeline.Response{
			StatusCode: 201,
			Header:     http.Header{"X-Served-By": []string{"h2"}},
			Body:       []byte("echo:" + req.Path),
		}, nil
	})

	cc := clientConn(t, 4, handler)

	resp, body := get(t, cc, "/hello")
	if resp.StatusCode != 201 {
		t.Errorf("status %d, want 201", resp.StatusCode)
	}
	if resp.Header.Get("X-Served-By") != "h2" {
		t.Error("response header lost")
	}
	if body != "echo:/hello" {
		t.Errorf("body %q", body)
	}
}

func TestEngine_RequestBodyDelivered(t *testing.T) {
	handler := pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		return &pipeline.Response{StatusCode: 200, Body: req.Body}, nil
	})

	cc := clientConn(t, 1, handler)

	req, err := http.NewRequest(http.MethodPost, "http://switchboard.test/upload",
		strings.NewReader("payload-bytes"))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := cc.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != "payload-bytes" {
		t.Errorf("body %q, want %q", body, "payload-bytes")
	}
}

func TestEngine_SlowStreamDoesNotBlockFastStream(t *testing.T) {
	fastDone := make(chan struct{})
	handler := pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		switch req.Path {
		case "/slow":
			select {
			case <-fastDone:
			case <-time.After(5 * time.Second):
			}
		case "/fast":
			defer close(fastDone)
		}
		return &pipeline.Response{StatusCode: 200, Body: []byte(req.Path)}, nil
	})

	cc := clientConn(t, 2, handler)

	var slowFinished, fastFinished atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, body := get(t, cc, "/slow")
		slowFinished.Store(time.Now().UnixNano())
		if body != "/slow" {
			t.Errorf("slow stream got body %q", body)
		}
	}()
	// Give the slow stream a head start so it occupies a token first.
	time.Sleep(50 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, body := get(t, cc, "/fast")
		fastFinished.Store(time.Now().UnixNano())
		if body != "/fast" {
			t.Errorf("fast stream got body %q", body)
		}
	}()
	wg.Wait()

	if fastFinished.Load() >= slowFinished.Load() {
		t.Error("fast stream finished after slow stream; multiplexing is not working")
	}
}

func TestEngine_ParallelismOneSerializesStreams(t *testing.T) {
	var inFlight, peak atomic.Int64
	handler := pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &pipeline.Response{StatusCode: 200}, nil
	})

	cc := clientConn(t, 1, handler)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			get(t, cc, "/serial")
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 1 {
		t.Errorf("peak handler concurrency %d, want 1", got)
	}
}
