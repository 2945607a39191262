package executor

import (
	"bytes"
	"net"
	"net/http"
	"strconv"
	"sync"
)

// maxHeaderCapture bounds the bytes buffered while looking for the end of a
// response head. Larger heads fall back to the parsed header map.
const maxHeaderCapture = 64 << 10

var headEnd = []byte("\r\n\r\n")

// recordingConn copies bytes read from a plaintext connection into the
// capture armed for the request currently using it.
type recordingConn struct {
	net.Conn

	mu      sync.Mutex
	capture *headerCapture
}

func (c *recordingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.mu.Lock()
		hc := c.capture
		c.mu.Unlock()
		if hc != nil {
			hc.write(p[:n])
		}
	}
	return n, err
}

func (c *recordingConn) record(hc *headerCapture) {
	c.mu.Lock()
	c.capture = hc
	c.mu.Unlock()
}

// headerCapture keeps the first non-interim response head seen on the wire,
// byte for byte.
type headerCapture struct {
	mu    sync.Mutex
	buf   []byte
	block []byte
	done  bool
}

func (h *headerCapture) write(p []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.buf = append(h.buf, p...)
	for {
		end := bytes.Index(h.buf, headEnd)
		if end < 0 {
			if len(h.buf) > maxHeaderCapture {
				h.buf = nil
				h.done = true
			}
			return
		}
		head := h.buf[:end+len(headEnd)]
		code := statusCode(head)
		// interim heads precede the final one; 101 ends the exchange
		if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
			h.buf = h.buf[len(head):]
			continue
		}
		h.block = append([]byte(nil), head...)
		h.buf = nil
		h.done = true
		return
	}
}

// Block returns the captured head when it belongs to a response with the
// given status code.
func (h *headerCapture) Block(code int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.block == nil || statusCode(h.block) != code {
		return "", false
	}
	return string(h.block), true
}

func statusCode(head []byte) int {
	line, _, _ := bytes.Cut(head, []byte("\r\n"))
	fields := bytes.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return 0
	}
	return code
}
