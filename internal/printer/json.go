package printer

import (
	"encoding/json"
	"io"
	"os"

	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/request"
)

// JSONPrinter 以 JSON 行输出结果
type JSONPrinter struct {
	encoder *json.Encoder
	logger  logger.Logger
	out     io.Writer
}

// NewJSONPrinter 创建 JSON 输出器
func NewJSONPrinter(log logger.Logger) *JSONPrinter {
	p := &JSONPrinter{logger: log}
	p.SetOutput(os.Stdout)
	return p
}

// SetOutput 替换输出目标，便于测试
func (p *JSONPrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	p.out = w
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	p.encoder = encoder
}

type jsonResponseEnvelope struct {
	Type     string            `json:"type"`
	Request  *request.Request  `json:"request,omitempty"`
	Status   string            `json:"status,omitempty"`
	Response *request.Response `json:"response"`
}

type jsonErrorEnvelope struct {
	Type       string `json:"type"`
	ID         uint32 `json:"id"`
	Error      string `json:"error,omitempty"`
	StoreError string `json:"store_error,omitempty"`
}

type jsonEntriesEnvelope struct {
	Type    string          `json:"type"`
	GroupID string          `json:"group_id"`
	Entries []storage.Entry `json:"entries"`
}

type jsonGroupsEnvelope struct {
	Type   string          `json:"type"`
	Groups []request.Group `json:"groups"`
}

type jsonStoredEnvelope struct {
	Type   string          `json:"type"`
	Record *storage.Record `json:"record"`
}

// PrintResponse 输出响应 JSON，headers 始终包含在 response.header 中
func (p *JSONPrinter) PrintResponse(req *request.Request, resp *request.Response, _ bool) error {
	env := jsonResponseEnvelope{Type: "response", Request: req, Response: resp}
	if status, ok := resp.Status(); ok {
		env.Status = status
	}
	return p.encode(env)
}

// PrintFailure 输出错误 JSON
func (p *JSONPrinter) PrintFailure(req *request.Request, execErr, storeErr error) error {
	env := jsonErrorEnvelope{Type: "error"}
	if req != nil {
		env.ID = req.ID
	}
	if execErr != nil {
		env.Error = execErr.Error()
	}
	if storeErr != nil {
		env.StoreError = storeErr.Error()
	}
	return p.encode(env)
}

// PrintEntries 输出目录列表
func (p *JSONPrinter) PrintEntries(groupID string, entries []storage.Entry) error {
	if entries == nil {
		entries = []storage.Entry{}
	}
	return p.encode(jsonEntriesEnvelope{Type: "entries", GroupID: groupID, Entries: entries})
}

// PrintGroups 输出分组列表
func (p *JSONPrinter) PrintGroups(groups []request.Group) error {
	if groups == nil {
		groups = []request.Group{}
	}
	return p.encode(jsonGroupsEnvelope{Type: "groups", Groups: groups})
}

// PrintStored 输出已保存的记录
func (p *JSONPrinter) PrintStored(rec *storage.Record) error {
	return p.encode(jsonStoredEnvelope{Type: "stored", Record: rec})
}

func (p *JSONPrinter) encode(v interface{}) error {
	if err := p.encoder.Encode(v); err != nil {
		if p.logger != nil {
			p.logger.Error("Failed to encode JSON output", "error", err)
		}
		return err
	}
	return nil
}
