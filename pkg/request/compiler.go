package request

import (
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Counter issues correlation ids. The zero value starts at 0.
type Counter struct {
	next atomic.Uint32
}

// Next returns the current id and advances the counter
func (c *Counter) Next() uint32 {
	return c.next.Add(1) - 1
}

// Compiler turns request definition text into Requests
type Compiler struct {
	counter *Counter
}

// NewCompiler creates a compiler drawing ids from counter. A nil counter gets a private one.
func NewCompiler(counter *Counter) *Compiler {
	if counter == nil {
		counter = &Counter{}
	}
	return &Compiler{counter: counter}
}

// bodyDocument is the structured section following the header line
type bodyDocument struct {
	Path   Map       `yaml:"path"`
	Query  Map       `yaml:"query"`
	Header Map       `yaml:"header"`
	Params Map       `yaml:"params"`
	Form   Map       `yaml:"form"`
	JSON   yaml.Node `yaml:"json"`
	Body   *string   `yaml:"body"`
}

// Compile parses text into a Request, substituting the group's variables first.
func (c *Compiler) Compile(text string, group *Group) (*Request, error) {
	source := text
	if group != nil && len(group.Env) > 0 {
		source = Substitute(text, group.Env)
	}

	line, rest, ok := splitHeaderLine(source)
	if !ok {
		return nil, ErrEmptyContent
	}

	method, url, ok := parseMethodURL(line)
	if !ok {
		return nil, &InvalidFormatError{Line: line}
	}

	param, err := decodeParam(rest)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: strings.ToUpper(method),
		URL:    url,
		Param:  param,
		Raw:    text,
	}
	if group != nil && group.BaseURL != nil {
		base := *group.BaseURL
		req.BaseURL = &base
	}
	req.ID = c.counter.Next()
	return req, nil
}

// splitHeaderLine skips blank and "#" lines and returns the first remaining line
// together with everything after it.
func splitHeaderLine(s string) (string, string, bool) {
	for {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", "", false
		}
		line, rest, found := strings.Cut(s, "\n")
		if strings.HasPrefix(line, "#") {
			if !found {
				return "", "", false
			}
			s = rest
			continue
		}
		return line, rest, true
	}
}

func parseMethodURL(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i <= 0 {
		return "", "", false
	}
	url := strings.TrimSpace(line[i+1:])
	if url == "" {
		return "", "", false
	}
	return line[:i], url, true
}

func decodeParam(section string) (RequestParam, error) {
	if strings.TrimSpace(section) == "" {
		return RequestParam{}, nil
	}

	var doc bodyDocument
	if err := yaml.Unmarshal([]byte(section), &doc); err != nil {
		return RequestParam{}, &BodyDecodeError{Cause: err}
	}

	param := RequestParam{
		Path:   doc.Path,
		Query:  doc.Query,
		Header: doc.Header,
	}

	switch {
	case doc.Params != nil:
		param.Body = Body{Kind: BodyParams, Values: doc.Params}
	case doc.Form != nil:
		param.Body = Body{Kind: BodyForm, Values: doc.Form}
	case doc.JSON.Kind != 0:
		value, err := ValueFromNode(&doc.JSON)
		if err != nil {
			return RequestParam{}, &BodyDecodeError{Cause: err}
		}
		if value.IsNull() {
			param.Body = bodyFromRaw(doc.Body)
		} else {
			param.Body = Body{Kind: BodyJSON, Text: value.String()}
		}
	default:
		param.Body = bodyFromRaw(doc.Body)
	}

	return param, nil
}

func bodyFromRaw(raw *string) Body {
	if raw == nil {
		return Body{}
	}
	return Body{Kind: BodyRaw, Text: *raw}
}
