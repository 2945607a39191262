package printer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/i18n"
	"github.com/funnyzak/reqput/pkg/request"
)

func init() {
	color.NoColor = true
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

const jsonHeader = "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nX-Trace: abc\r\n\r\n"

func newTestConsole(t *testing.T, cfg config.BodyViewConfig, locale string) (*ConsolePrinter, *bytes.Buffer) {
	t.Helper()
	t.Setenv("REQPUT_TEST_WIDTH", "80")
	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	p := NewConsolePrinter(noopLogger{}, &cfg, tr.Bind(locale))
	buf := &bytes.Buffer{}
	p.SetOutput(buf)
	return p, buf
}

func TestConsolePrinter_PrintResponse(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	req := &request.Request{ID: 7, Method: "GET", URL: "/users"}
	resp := &request.Response{Body: "hi", Header: jsonHeader, Time: 12}

	if err := p.PrintResponse(req, resp, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"#7 GET /users", "Status: 200 OK | Time: 12 ms | Size: 2 B", "hi"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "X-Trace") {
		t.Fatalf("headers should be hidden:\n%s", output)
	}
}

func TestConsolePrinter_Headers(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	resp := &request.Response{Body: "{}", Header: jsonHeader}

	if err := p.PrintResponse(nil, resp, true); err != nil {
		t.Fatalf("print response failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "HTTP/1.1 200 OK\n") {
		t.Fatalf("status line missing:\n%s", output)
	}
	if strings.Index(output, "Content-Type: application/json") > strings.Index(output, "X-Trace: abc") {
		t.Fatalf("headers should be sorted:\n%s", output)
	}
}

func TestConsolePrinter_BaseURL(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	base := "http://api.test"
	req := &request.Request{ID: 1, Method: "POST", URL: "/items", BaseURL: &base}

	if err := p.PrintResponse(req, &request.Response{}, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "POST http://api.test/items") {
		t.Fatalf("expected full target:\n%s", output)
	}
	if !strings.Contains(output, "[Empty Body]") || !strings.Contains(output, "Status: -") {
		t.Fatalf("expected empty response markers:\n%s", output)
	}
}

func TestConsolePrinter_JSONPretty(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{JSONPretty: true}, "en")
	resp := &request.Response{Body: `{"foo":"bar","nested":{"a":1}}`, Header: jsonHeader}

	if err := p.PrintResponse(nil, resp, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"foo\": \"bar\"") {
		t.Fatalf("expected pretty JSON output, got %s", buf.String())
	}
}

func TestConsolePrinter_JSONPrettyDisabled(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	body := `{"foo":"bar"}`

	if err := p.PrintResponse(nil, &request.Response{Body: body, Header: jsonHeader}, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	if !strings.Contains(buf.String(), body+"\n") {
		t.Fatalf("expected raw JSON body, got %s", buf.String())
	}
}

func TestConsolePrinter_HTMLPretty(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{HTMLPretty: true}, "en")
	resp := &request.Response{
		Body:   "<html><body><p>hi</p></body></html>",
		Header: "HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=utf-8\r\n\r\n",
	}

	if err := p.PrintResponse(nil, resp, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	if !strings.Contains(buf.String(), "    <p>\n      hi\n    </p>") {
		t.Fatalf("expected indented html, got %s", buf.String())
	}
}

func TestConsolePrinter_TruncationNotice(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{MaxPreviewBytes: 8}, "zh-CN")
	resp := &request.Response{Body: "0123456789abcdef", Header: "HTTP/1.1 200 OK\r\n\r\n"}

	if err := p.PrintResponse(nil, resp, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "01234567\n") {
		t.Fatalf("expected preview, got %s", output)
	}
	if strings.Contains(output, "abcdef") {
		t.Fatalf("unexpected full body output when preview limit active")
	}
	if !strings.Contains(output, "8 B") {
		t.Fatalf("expected truncation notice, got %s", output)
	}
}

func TestConsolePrinter_TruncateKeepsRunes(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{MaxPreviewBytes: 4}, "en")

	if err := p.PrintResponse(nil, &request.Response{Body: "中文内容"}, false); err != nil {
		t.Fatalf("print response failed: %v", err)
	}
	if !strings.Contains(buf.String(), "中\n") {
		t.Fatalf("expected cut at rune boundary, got %q", buf.String())
	}
}

func TestConsolePrinter_PrintFailure(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	req := &request.Request{ID: 3, Method: "GET", URL: "http://x"}

	if err := p.PrintFailure(req, errors.New("connection refused"), nil); err != nil {
		t.Fatalf("print failure failed: %v", err)
	}
	if err := p.PrintFailure(req, nil, errors.New("disk full")); err != nil {
		t.Fatalf("print failure failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Request #3 failed", "connection refused", "Response not saved: disk full"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestConsolePrinter_PrintEntries(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	entries := []storage.Entry{
		{Method: "GET", URL: "/a"},
		{Method: "DELETE", URL: "/" + strings.Repeat("x", 100), Title: "cleanup"},
	}

	if err := p.PrintEntries("dev", entries); err != nil {
		t.Fatalf("print entries failed: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d:\n%s", len(lines), output)
	}
	if !strings.HasPrefix(lines[0], "METHOD") {
		t.Fatalf("unexpected header line %q", lines[0])
	}
	if !strings.Contains(lines[1], "GET /a") {
		t.Fatalf("expected display title fallback, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "…") || !strings.HasSuffix(lines[2], "cleanup") {
		t.Fatalf("expected truncated url and title, got %q", lines[2])
	}
}

func TestConsolePrinter_PrintEntriesEmpty(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")

	if err := p.PrintEntries("dev", nil); err != nil {
		t.Fatalf("print entries failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No saved requests in group dev") {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestConsolePrinter_PrintGroups(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	base := "http://api.test"
	groups := []request.Group{
		{ID: "dev", Name: "Development", BaseURL: &base},
		{ID: "Default", Name: "Default"},
	}

	if err := p.PrintGroups(groups); err != nil {
		t.Fatalf("print groups failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Development  http://api.test") {
		t.Fatalf("missing dev group:\n%s", output)
	}
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "Default  Default") || !strings.HasSuffix(last, "  -") {
		t.Fatalf("unexpected default group row %q", last)
	}
}

func TestConsolePrinter_PrintStored(t *testing.T) {
	p, buf := newTestConsole(t, config.BodyViewConfig{}, "en")
	rec := &storage.Record{
		GroupID:  "Default",
		Method:   "GET",
		URL:      "http://x/a",
		Request:  "GET http://x/a\n",
		Response: "pong",
	}

	if err := p.PrintStored(rec); err != nil {
		t.Fatalf("print stored failed: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"GET http://x/a  GET http://x/a", "Request\nGET http://x/a\n", "Last response\npong"} {
		if !strings.Contains(output, want) {
			t.Fatalf("output missing %q:\n%s", want, output)
		}
	}
}

func TestParseHeader(t *testing.T) {
	status, headers := ParseHeader(jsonHeader)
	if status != "HTTP/1.1 200 OK" {
		t.Fatalf("unexpected status %q", status)
	}
	if headers.Get("Content-Type") != "application/json" || headers.Get("X-Trace") != "abc" {
		t.Fatalf("unexpected headers %v", headers)
	}

	status, headers = ParseHeader("")
	if status != "" || len(headers) != 0 {
		t.Fatalf("expected empty result, got %q %v", status, headers)
	}
}
