package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
)

func TestBoxContentWidth(t *testing.T) {
	for _, center := range []bool{true, false} {
		for _, content := range []string{"plain", "中文标题", "📊 Log Level:      info"} {
			line := boxContent(content, 50, center)
			inner := strings.TrimSuffix(strings.TrimPrefix(line, "│"), "│")
			if got := runewidth.StringWidth(inner); got != 48 {
				t.Errorf("boxContent(%q, center=%v) inner width = %d, want 48", content, center, got)
			}
		}
	}
}

func TestPrintStartupBanner(t *testing.T) {
	cfg := &config.Config{
		Log:      config.LogConfig{Level: "debug"},
		Storage:  config.StorageConfig{Path: "/tmp/reqput.db", ListLimit: 200},
		Executor: config.ExecutorConfig{Timeout: 30, MaxRedirects: 10},
		Groups:   config.GroupsConfig{Path: "./group.json"},
		Web:      config.WebConfig{Enable: true, Port: 38889, AdminPath: "/api"},
	}

	var buf bytes.Buffer
	printStartupBanner(&buf, cfg, logger.Nop())

	output := buf.String()
	for _, want := range []string{"http://0.0.0.0:38889/api", "ws://0.0.0.0:38889/api/ws", "/tmp/reqput.db", "File Logging:   Disabled"} {
		if !strings.Contains(output, want) {
			t.Fatalf("banner missing %q:\n%s", want, output)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("db", "", "")
	cmd.Flags().String("output", "", "")
	cmd.Flags().Int("timeout", 0, "")
	cmd.Flags().Bool("insecure", false, "")
	cmd.Flags().Int("port", 0, "")
	if err := cmd.Flags().Parse([]string{"--db", "/tmp/x.db", "--output", "json", "--insecure", "--port", "9000"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := &config.Config{
		Executor: config.ExecutorConfig{Timeout: 30, TLSInsecureSkipVerify: false},
		Web:      config.WebConfig{Port: 38889},
	}
	applyOverrides(cmd, cfg)

	if cfg.Storage.Path != "/tmp/x.db" || cfg.Output.Mode != "json" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.Executor.Timeout != 30 {
		t.Fatalf("unset timeout must not override, got %d", cfg.Executor.Timeout)
	}
	if !cfg.Executor.TLSInsecureSkipVerify || cfg.Web.Port != 9000 {
		t.Fatalf("flag overrides not applied: %+v", cfg)
	}
}

func TestReadDefinition(t *testing.T) {
	text, err := readDefinition(strings.NewReader("GET /a"), nil)
	if err != nil || text != "GET /a" {
		t.Fatalf("stdin read failed: %q %v", text, err)
	}
	if _, err := readDefinition(nil, []string{"/nonexistent/def.txt"}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
