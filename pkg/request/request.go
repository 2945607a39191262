package request

import (
	"fmt"
	"strings"
)

// Map is a string to string mapping used for path, query, header and form values
type Map = map[string]string

// Group is a named environment with an optional base URL and variables
type Group struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	BaseURL *string           `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// BodyKind tells which body source a request carries
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyParams
	BodyForm
	BodyJSON
	BodyRaw
)

func (k BodyKind) String() string {
	switch k {
	case BodyParams:
		return "params"
	case BodyForm:
		return "form"
	case BodyJSON:
		return "json"
	case BodyRaw:
		return "body"
	default:
		return "none"
	}
}

// Body is the request payload. Values is set for BodyParams and BodyForm,
// Text for BodyJSON and BodyRaw.
type Body struct {
	Kind   BodyKind `json:"kind"`
	Values Map      `json:"values,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// RequestParam holds the optional parts of a request. A nil map means the key was absent.
type RequestParam struct {
	Path   Map  `json:"path,omitempty"`
	Query  Map  `json:"query,omitempty"`
	Header Map  `json:"header,omitempty"`
	Body   Body `json:"body"`
}

// Request is a compiled request definition
type Request struct {
	ID      uint32       `json:"id"`
	Method  string       `json:"method"`
	URL     string       `json:"url"`
	Param   RequestParam `json:"param"`
	BaseURL *string      `json:"base_url,omitempty"`
	Raw     string       `json:"raw"`
}

// Key returns "<METHOD> <URL>", the identity of a request inside a group.
func (r *Request) Key() string {
	return Key(r.Method, r.URL)
}

// Clone returns a deep copy that can be handed to another goroutine.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.BaseURL != nil {
		base := *r.BaseURL
		c.BaseURL = &base
	}
	c.Param.Path = cloneMap(r.Param.Path)
	c.Param.Query = cloneMap(r.Param.Query)
	c.Param.Header = cloneMap(r.Param.Header)
	c.Param.Body.Values = cloneMap(r.Param.Body.Values)
	return &c
}

// Response is the captured result of an executed request
type Response struct {
	Body   string `json:"body"`
	Header string `json:"header"`
	// Time is the elapsed wall-clock time in milliseconds
	Time int64 `json:"time_ms"`
}

// Status returns the text after the first space of the status line, e.g. "200 OK".
func (r *Response) Status() (string, bool) {
	if r == nil {
		return "", false
	}
	pos := strings.Index(r.Header, "\r\n")
	if pos < 0 {
		return "", false
	}
	line := r.Header[:pos]
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return "", false
	}
	return line[sp+1:], true
}

// Key builds the catalog key of a method and url
func Key(method, url string) string {
	return fmt.Sprintf("%s %s", method, url)
}

func cloneMap(m Map) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
