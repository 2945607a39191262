package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/web"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

type captureLogger struct {
	noopLogger
	mu     sync.Mutex
	fields [][]interface{}
}

func (c *captureLogger) Debug(msg string, fields ...interface{}) {
	if msg != "API request" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields = append(c.fields, fields)
}

func (c *captureLogger) entries() [][]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]interface{}(nil), c.fields...)
}

func newTestServer(t *testing.T, port int) *Server {
	t.Helper()
	cfg := &config.WebConfig{Enable: true, Port: port, AdminPath: "/api"}
	return New(cfg, noopLogger{}, web.NewService(cfg, noopLogger{}, nil, nil))
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t, 0)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRequestLogger(t *testing.T) {
	log := &captureLogger{}
	handler := requestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/send", nil))

	entries := log.entries()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0]
	found := false
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == "status" && fields[i+1] == http.StatusTeapot {
			found = true
		}
	}
	if !found {
		t.Fatalf("status not logged: %v", fields)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	s := newTestServer(t, ln.Addr().(*net.TCPAddr).Port)
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected listen error for busy port")
	}
}
