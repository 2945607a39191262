package executor

import (
	"sort"
	"strings"

	"github.com/funnyzak/reqput/pkg/request"
)

// BuildURL assembles the final URL of req. Path parameters are substituted
// in the url alone, then relative urls get the base URL prefix and the query
// string is appended when a query map is present.
func BuildURL(req *request.Request) string {
	target := req.URL
	if len(req.Param.Path) > 0 {
		target = ReplacePath(target, req.Param.Path)
	}
	if req.BaseURL != nil && !isAbsolute(target) {
		target = *req.BaseURL + target
	}
	if req.Param.Query != nil {
		target += "?" + BuildQuery(req.Param.Query)
	}
	return target
}

func isAbsolute(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// ReplacePath substitutes ":name" segments that sit between two slashes.
// A trailing slash is added for the duration of the replacement so a final
// ":name" segment matches as well.
func ReplacePath(url string, params request.Map) string {
	added := false
	if !strings.HasSuffix(url, "/") {
		url += "/"
		added = true
	}
	for _, k := range sortedKeys(params) {
		url = strings.ReplaceAll(url, "/:"+k+"/", "/"+params[k]+"/")
	}
	if added {
		url = strings.TrimSuffix(url, "/")
	}
	return url
}

// BuildQuery encodes params as k=v pairs joined by '&'. Every byte that is
// not an ASCII letter or digit is percent-encoded. Keys are emitted in order.
func BuildQuery(params request.Map) string {
	var b strings.Builder
	for i, k := range sortedKeys(params) {
		if i > 0 {
			b.WriteByte('&')
		}
		writeEncoded(&b, k)
		b.WriteByte('=')
		writeEncoded(&b, params[k])
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

func writeEncoded(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func sortedKeys(m request.Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
