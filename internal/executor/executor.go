package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/pkg/request"
)

const defaultMaxRedirects = 10

// Executor performs compiled requests over HTTP
type Executor struct {
	client    *http.Client
	logger    logger.Logger
	userAgent string
}

// Options executor configuration
type Options struct {
	Timeout               time.Duration
	MaxRedirects          int
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	TLSHandshakeTimeout   time.Duration
	TLSInsecureSkipVerify bool
	UserAgent             string
}

// NewExecutor creates an executor with its own connection pool
func NewExecutor(log logger.Logger, opts Options) *Executor {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &recordingConn{Conn: conn}, nil
		},
		MaxIdleConns:          positiveOrDefault(opts.MaxIdleConns, 100),
		MaxIdleConnsPerHost:   positiveOrDefault(opts.MaxIdleConnsPerHost, 10),
		IdleConnTimeout:       durationOrDefault(opts.IdleConnTimeout, 90*time.Second),
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   durationOrDefault(opts.TLSHandshakeTimeout, 10*time.Second),
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.TLSInsecureSkipVerify,
		},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn("HTTP/2 disabled for executor transport", "error", err)
	}

	maxRedirects := positiveOrDefault(opts.MaxRedirects, defaultMaxRedirects)

	return &Executor{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		logger:    log,
		userAgent: opts.UserAgent,
	}
}

// Execute performs req and captures the final response. It blocks until the
// body is read, so callers dispatch it off their coordinating goroutine.
func (e *Executor) Execute(ctx context.Context, req *request.Request) (*request.Response, error) {
	if req == nil {
		return nil, &ExecutionError{Cause: errors.New("request is nil")}
	}

	target := BuildURL(req)
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &ExecutionError{Cause: err}
	}

	// each hop of a redirect chain re-arms the capture, so the last armed
	// one holds the head of the final response only
	var capture atomic.Pointer[headerCapture]
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			rc, ok := info.Conn.(*recordingConn)
			if !ok {
				capture.Store(nil)
				return
			}
			hc := &headerCapture{}
			rc.record(hc)
			capture.Store(hc)
		},
	}

	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), req.Method, target, body)
	if err != nil {
		return nil, &ExecutionError{Cause: fmt.Errorf("create request failed: %w", err)}
	}

	// assigned directly so the user's spelling of each key is kept on the wire
	for key, value := range req.Param.Header {
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header[key] = []string{value}
	}
	if contentType != "" && !hasHeader(req.Param.Header, "Content-Type") {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if e.userAgent != "" && !hasHeader(req.Param.Header, "User-Agent") {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	e.logger.Debug("Executing request",
		"id", req.ID,
		"method", req.Method,
		"url", target,
	)

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, &ExecutionError{Cause: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Warn("Failed to close response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExecutionError{Cause: fmt.Errorf("read response body: %w", err)}
	}
	elapsed := time.Since(start)

	head, ok := "", false
	if hc := capture.Load(); hc != nil {
		head, ok = hc.Block(resp.StatusCode)
	}
	if !ok {
		head = headerBlock(resp)
	}

	result := &request.Response{
		Body:   strings.ToValidUTF8(string(raw), "\uFFFD"),
		Header: strings.ToValidUTF8(head, "\uFFFD"),
		Time:   elapsed.Milliseconds(),
	}

	e.logger.Debug("Request completed",
		"id", req.ID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"time_ms", result.Time,
	)
	return result, nil
}

// Close releases idle connections
func (e *Executor) Close() {
	e.client.CloseIdleConnections()
}

// encodeBody returns the wire body and the content type the executor would
// set for it. Only POST, PUT and PATCH carry a body.
func encodeBody(req *request.Request) (io.Reader, string, error) {
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, "", nil
	}

	b := req.Param.Body
	switch b.Kind {
	case request.BodyForm:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, k := range sortedKeys(b.Values) {
			if err := w.WriteField(k, b.Values[k]); err != nil {
				return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("encode form: %w", err)
		}
		return &buf, w.FormDataContentType(), nil
	case request.BodyParams:
		return strings.NewReader(BuildQuery(b.Values)), "application/x-www-form-urlencoded", nil
	case request.BodyJSON:
		return strings.NewReader(b.Text), "application/json", nil
	case request.BodyRaw:
		return strings.NewReader(b.Text), "", nil
	default:
		return nil, "", nil
	}
}

// headerBlock renders the status line and header lines of resp, CRLF
// separated and terminated by an empty line. It serves responses whose raw
// head was not captured (TLS and HTTP/2), so keys come out canonical and
// sorted. Transfer-Encoding is put back since the transport strips it.
func headerBlock(resp *http.Response) string {
	h := resp.Header
	if len(resp.TransferEncoding) > 0 {
		h = h.Clone()
		if h == nil {
			h = http.Header{}
		}
		h["Transfer-Encoding"] = []string{strings.Join(resp.TransferEncoding, ", ")}
	}

	var b strings.Builder
	b.WriteString(resp.Proto)
	b.WriteByte(' ')
	b.WriteString(resp.Status)
	b.WriteString("\r\n")
	_ = h.Write(&b)
	b.WriteString("\r\n")
	return b.String()
}

func hasHeader(headers request.Map, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func positiveOrDefault(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

func durationOrDefault(value, def time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return def
}
