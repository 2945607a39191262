package printer

import (
	"bufio"
	"io"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/i18n"
	"github.com/funnyzak/reqput/pkg/request"
)

// Printer 抽象输出接口
type Printer interface {
	// PrintResponse shows an executed request. Headers are printed when withHeaders is set.
	PrintResponse(req *request.Request, resp *request.Response, withHeaders bool) error
	// PrintFailure shows an execution or store error for req
	PrintFailure(req *request.Request, execErr, storeErr error) error
	PrintEntries(groupID string, entries []storage.Entry) error
	PrintGroups(groups []request.Group) error
	// PrintStored shows a catalog row
	PrintStored(rec *storage.Record) error
	SetOutput(w io.Writer)
}

// New 创建指定模式的 Printer
func New(mode string, log logger.Logger, cfg *config.OutputConfig, translator *i18n.Translator) Printer {
	if cfg == nil {
		cfg = &config.OutputConfig{}
	}
	switch mode {
	case "json":
		return NewJSONPrinter(log)
	default:
		return NewConsolePrinter(log, &cfg.BodyView, translator.Bind(cfg.Locale))
	}
}

// ParseHeader splits a raw response header block into its status line and fields.
func ParseHeader(block string) (string, http.Header) {
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(block)))
	status, err := reader.ReadLine()
	if err != nil {
		return "", http.Header{}
	}
	fields, err := reader.ReadMIMEHeader()
	if err != nil && len(fields) == 0 {
		return status, http.Header{}
	}
	return status, http.Header(fields)
}
