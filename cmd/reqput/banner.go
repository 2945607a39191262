package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
)

func bannerLines(cfg *config.Config) []string {
	lines := []string{
		fmt.Sprintf("ReqPut v%s", version),
		"HTTP Request Composer & Catalog",
		"",
		fmt.Sprintf("🚀 API:            http://0.0.0.0:%d%s", cfg.Web.Port, cfg.Web.AdminPath),
		fmt.Sprintf("📡 Results:        ws://0.0.0.0:%d%s/ws", cfg.Web.Port, strings.TrimRight(cfg.Web.AdminPath, "/")),
		fmt.Sprintf("📊 Log Level:      %s", cfg.Log.Level),
		fmt.Sprintf("🗂️ Catalog:        %s (list limit %d)", cfg.Storage.Path, cfg.Storage.ListLimit),
		fmt.Sprintf("👥 Groups File:    %s", cfg.Groups.Path),
		fmt.Sprintf("⏱️ Timeout:        %ds, %d redirects", cfg.Executor.Timeout, cfg.Executor.MaxRedirects),
		"",
	}

	if cfg.Log.FileLogging.Enable {
		compress := "Disabled"
		if cfg.Log.FileLogging.Compress {
			compress = "Enabled"
		}
		lines = append(lines, "💾 File Logging:   Enabled")
		lines = append(lines, fmt.Sprintf("   └─ %s (%dMB, %d backups, %d days, compress: %s)",
			cfg.Log.FileLogging.Path,
			cfg.Log.FileLogging.MaxSizeMB,
			cfg.Log.FileLogging.MaxBackups,
			cfg.Log.FileLogging.MaxAgeDays,
			compress))
	} else {
		lines = append(lines, "💾 File Logging:   Disabled")
	}

	return append(lines, "", "(Press Ctrl+C to stop)")
}

func printStartupBanner(w io.Writer, cfg *config.Config, log logger.Logger) {
	lines := bannerLines(cfg)

	maxLength := 0
	for _, line := range lines {
		if width := runewidth.StringWidth(line); width > maxLength {
			maxLength = width
		}
	}

	// 2 characters margin on left and right
	boxWidth := maxLength + 4
	if boxWidth < 50 {
		boxWidth = 50
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintln(w, boxContent(lines[0], boxWidth, true))
	fmt.Fprintln(w, boxContent(lines[1], boxWidth, true))
	fmt.Fprintf(w, "├%s┤\n", strings.Repeat("─", boxWidth-2))
	for _, line := range lines[3:] {
		fmt.Fprintln(w, boxContent(line, boxWidth, false))
	}
	fmt.Fprintf(w, "└%s┘\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintln(w)

	log.Info("ReqPut starting",
		"version", version,
		"port", cfg.Web.Port,
		"admin_path", cfg.Web.AdminPath,
		"log_level", cfg.Log.Level,
		"storage", cfg.Storage.Path,
		"groups", cfg.Groups.Path,
	)
}

// boxContent renders one line of the box, centered or indented by two spaces
func boxContent(content string, boxWidth int, center bool) string {
	padding := boxWidth - 2 - runewidth.StringWidth(content)
	if padding < 2 {
		padding = 2
	}

	var leftPad, rightPad string
	if center {
		leftPad = strings.Repeat(" ", padding/2)
		rightPad = strings.Repeat(" ", padding-padding/2)
	} else {
		leftPad = "  "
		rightPad = strings.Repeat(" ", padding-2)
	}
	return "│" + leftPad + content + rightPad + "│"
}
