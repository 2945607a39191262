package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	nethtml "golang.org/x/net/html"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/pkg/i18n"
)

type bodyFormatter struct {
	cfg    *config.BodyViewConfig
	logger logger.Logger
	intl   *i18n.Localizer
}

type formattedBody struct {
	Text    string
	Notices []string
}

func newBodyFormatter(cfg *config.BodyViewConfig, log logger.Logger, intl *i18n.Localizer) *bodyFormatter {
	if cfg == nil {
		cfg = &config.BodyViewConfig{}
	}
	return &bodyFormatter{cfg: cfg, logger: log, intl: intl}
}

// Format pretty-prints body according to its content type, then applies the
// preview limit.
func (f *bodyFormatter) Format(contentType, body string) formattedBody {
	if body == "" {
		return formattedBody{}
	}
	mediaType := normalizeMediaType(contentType)

	var res formattedBody
	switch {
	case f.cfg.JSONPretty && looksLikeJSON(mediaType, body):
		res = f.formatJSON(body)
	case f.cfg.HTMLPretty && (strings.Contains(mediaType, "html") || looksLikeHTML(body)):
		res = f.formatHTML(body)
	default:
		res = formattedBody{Text: body}
	}
	return f.truncate(res)
}

func (f *bodyFormatter) formatJSON(body string) formattedBody {
	trimmed := bytes.TrimSpace([]byte(body))
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		if f.logger != nil {
			f.logger.Debug("json indent failed", "error", err)
		}
		return formattedBody{Text: body}
	}
	return formattedBody{Text: buf.String()}
}

func (f *bodyFormatter) formatHTML(body string) formattedBody {
	formatted, err := prettyHTML(body)
	if err != nil {
		if f.logger != nil {
			f.logger.Debug("html pretty failed", "error", err)
		}
		return formattedBody{Text: body}
	}
	return formattedBody{Text: formatted}
}

func (f *bodyFormatter) truncate(res formattedBody) formattedBody {
	limit := f.cfg.MaxPreviewBytes
	if limit <= 0 || len(res.Text) <= limit {
		return res
	}
	cut := limit
	// back off to a rune boundary
	for cut > 0 && !isRuneStart(res.Text[cut]) {
		cut--
	}
	rest := len(res.Text) - cut
	res.Text = res.Text[:cut]
	res.Notices = append(res.Notices, f.intl.Tf(keyBodyTruncate,
		humanize.Bytes(uint64(rest)),
		humanize.Bytes(uint64(limit)),
	))
	return res
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func normalizeMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mediaType)
}

func looksLikeJSON(mediaType, body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return false
	}
	if strings.Contains(mediaType, "json") {
		return true
	}
	first := trimmed[0]
	last := trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	if len(trimmed) < 5 {
		return false
	}
	lower := strings.ToLower(trimmed[:5])
	return strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<!doc")
}

func prettyHTML(data string) (string, error) {
	node, err := nethtml.Parse(strings.NewReader(data))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	renderHTMLNode(&builder, node, 0)
	return builder.String(), nil
}

func renderHTMLNode(builder *strings.Builder, node *nethtml.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch node.Type {
	case nethtml.DocumentNode:
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			renderHTMLNode(builder, child, depth)
		}
	case nethtml.DoctypeNode:
		builder.WriteString("<!DOCTYPE " + node.Data + ">\n")
	case nethtml.ElementNode:
		builder.WriteString(indent + "<" + node.Data)
		for _, attr := range node.Attr {
			fmt.Fprintf(builder, " %s=\"%s\"", attr.Key, html.EscapeString(attr.Val))
		}
		if isVoidElement(node.Data) {
			builder.WriteString(" />\n")
			return
		}
		builder.WriteString(">\n")
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			renderHTMLNode(builder, child, depth+1)
		}
		builder.WriteString(indent + "</" + node.Data + ">\n")
	case nethtml.TextNode:
		if text := strings.TrimSpace(node.Data); text != "" {
			builder.WriteString(indent + text + "\n")
		}
	case nethtml.CommentNode:
		builder.WriteString(indent + "<!--" + strings.TrimSpace(node.Data) + "-->\n")
	}
}

func isVoidElement(tag string) bool {
	switch strings.ToLower(tag) {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "source", "track", "wbr":
		return true
	default:
		return false
	}
}
