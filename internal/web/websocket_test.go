package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebsocketHub_PingsIdleClients(t *testing.T) {
	hub := newWebsocketHub(noopLogger{}, 20*time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := hub.Upgrade(w, r); err != nil {
			t.Errorf("upgrade failed: %v", err)
		}
	}))
	defer srv.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	pinged := make(chan struct{}, 8)
	conn.SetPingHandler(func(data string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-pinged:
		case <-time.After(5 * time.Second):
			t.Fatalf("no ping received after %d pings", i)
		}
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("client should stay connected, count %d", hub.ClientCount())
	}
}
