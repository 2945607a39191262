package executor

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/funnyzak/reqput/pkg/request"
)

// newRawServer answers every request on a plain TCP listener with the bytes
// reply returns for its path.
func newRawServer(t *testing.T, reply func(path string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				br := bufio.NewReader(conn)
				for {
					req, err := http.ReadRequest(br)
					if err != nil {
						return
					}
					if _, err := conn.Write([]byte(reply(req.URL.Path))); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return "http://" + ln.Addr().String()
}

func TestExecute_HeaderBlockIsRaw(t *testing.T) {
	url := newRawServer(t, func(string) string {
		return "HTTP/1.1 200 OK\r\nx-zeta: 1\r\nTransfer-Encoding: chunked\r\nalpha: 2\r\n\r\n2\r\nok\r\n0\r\n\r\n"
	})
	exec := newTestExecutor(Options{})
	defer exec.Close()

	resp, err := exec.Execute(context.Background(), &request.Request{Method: "GET", URL: url})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.Body != "ok" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	want := "HTTP/1.1 200 OK\r\nx-zeta: 1\r\nTransfer-Encoding: chunked\r\nalpha: 2\r\n\r\n"
	if resp.Header != want {
		t.Fatalf("header block = %q, want %q", resp.Header, want)
	}
}

func TestExecute_HeaderBlockSkipsInterimResponses(t *testing.T) {
	url := newRawServer(t, func(string) string {
		return "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nx-a: b\r\nContent-Length: 2\r\n\r\nok"
	})
	exec := newTestExecutor(Options{})
	defer exec.Close()

	resp, err := exec.Execute(context.Background(), &request.Request{Method: "GET", URL: url})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\nx-a: b\r\nContent-Length: 2\r\n\r\n"
	if resp.Header != want {
		t.Fatalf("header block = %q, want %q", resp.Header, want)
	}
}

func TestExecute_HeaderBlockOfFinalRedirectHop(t *testing.T) {
	url := newRawServer(t, func(path string) string {
		if path == "/old" {
			return "HTTP/1.1 302 Found\r\nlocation: /new\r\ncontent-length: 0\r\n\r\n"
		}
		return "HTTP/1.1 200 OK\r\nx-final: yes\r\ncontent-length: 5\r\n\r\nmoved"
	})
	exec := newTestExecutor(Options{})
	defer exec.Close()

	resp, err := exec.Execute(context.Background(), &request.Request{Method: "GET", URL: url + "/old"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\nx-final: yes\r\ncontent-length: 5\r\n\r\n"
	if resp.Header != want {
		t.Fatalf("header block = %q, want %q", resp.Header, want)
	}
}

func TestHeaderBlock_RestoresTransferEncoding(t *testing.T) {
	resp := &http.Response{
		Proto:            "HTTP/2.0",
		Status:           "200 OK",
		StatusCode:       200,
		Header:           http.Header{"X-B": {"1"}, "Content-Type": {"text/plain"}},
		TransferEncoding: []string{"chunked"},
	}
	want := "HTTP/2.0 200 OK\r\nContent-Type: text/plain\r\nTransfer-Encoding: chunked\r\nX-B: 1\r\n\r\n"
	if got := headerBlock(resp); got != want {
		t.Fatalf("headerBlock = %q, want %q", got, want)
	}
	if _, ok := resp.Header["Transfer-Encoding"]; ok {
		t.Fatalf("headerBlock must not modify the response header map")
	}
}

func TestHeaderCapture(t *testing.T) {
	t.Run("split reads", func(t *testing.T) {
		hc := &headerCapture{}
		for _, part := range []string{"HTTP/1.1 204 No", " Content\r\nA: 1\r", "\n\r\nignored body"} {
			hc.write([]byte(part))
		}
		got, ok := hc.Block(204)
		if !ok || got != "HTTP/1.1 204 No Content\r\nA: 1\r\n\r\n" {
			t.Fatalf("unexpected capture %q (ok=%v)", got, ok)
		}
	})

	t.Run("status mismatch", func(t *testing.T) {
		hc := &headerCapture{}
		hc.write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		if _, ok := hc.Block(404); ok {
			t.Fatalf("capture for another status must not be used")
		}
	})

	t.Run("switching protocols is final", func(t *testing.T) {
		hc := &headerCapture{}
		hc.write([]byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n"))
		if _, ok := hc.Block(101); !ok {
			t.Fatalf("101 head should be captured")
		}
	})

	t.Run("oversized head", func(t *testing.T) {
		hc := &headerCapture{}
		hc.write([]byte("HTTP/1.1 200 OK\r\nX-Big: " + strings.Repeat("a", maxHeaderCapture)))
		hc.write([]byte("\r\n\r\n"))
		if _, ok := hc.Block(200); ok {
			t.Fatalf("oversized head should not be captured")
		}
	})
}
