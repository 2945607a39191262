package printer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/funnyzak/reqput/internal/config"
	"github.com/funnyzak/reqput/internal/logger"
	"github.com/funnyzak/reqput/internal/storage"
	"github.com/funnyzak/reqput/pkg/i18n"
	"github.com/funnyzak/reqput/pkg/request"
)

// ColorScheme color scheme
type ColorScheme struct {
	MethodGET      *color.Color
	MethodPOST     *color.Color
	MethodPUT      *color.Color
	MethodDELETE   *color.Color
	MethodPATCH    *color.Color
	StatusOK       *color.Color
	StatusRedirect *color.Color
	StatusError    *color.Color
	HeaderKey      *color.Color
	HeaderValue    *color.Color
	Separator      *color.Color
	BodyContent    *color.Color
	TruncateNotice *color.Color
	ErrorText      *color.Color
	Muted          *color.Color
}

// NewColorScheme creates a new color scheme
func NewColorScheme() *ColorScheme {
	return &ColorScheme{
		MethodGET:      color.New(color.FgBlue, color.Bold),
		MethodPOST:     color.New(color.FgGreen, color.Bold),
		MethodPUT:      color.New(color.FgYellow, color.Bold),
		MethodDELETE:   color.New(color.FgRed, color.Bold),
		MethodPATCH:    color.New(color.FgMagenta, color.Bold),
		StatusOK:       color.New(color.FgGreen, color.Bold),
		StatusRedirect: color.New(color.FgYellow, color.Bold),
		StatusError:    color.New(color.FgRed, color.Bold),
		HeaderKey:      color.New(color.FgCyan),
		HeaderValue:    color.New(color.FgWhite),
		Separator:      color.New(color.FgYellow, color.Bold),
		BodyContent:    color.New(color.FgWhite),
		TruncateNotice: color.New(color.FgHiYellow, color.Bold),
		ErrorText:      color.New(color.FgHiRed, color.Bold),
		Muted:          color.New(color.FgHiBlack),
	}
}

// ConsolePrinter console printer
type ConsolePrinter struct {
	colorScheme *ColorScheme
	logger      logger.Logger
	formatter   *bodyFormatter
	intl        *i18n.Localizer
	out         io.Writer
}

// NewConsolePrinter creates a new console printer
func NewConsolePrinter(log logger.Logger, cfg *config.BodyViewConfig, intl *i18n.Localizer) *ConsolePrinter {
	return &ConsolePrinter{
		colorScheme: NewColorScheme(),
		logger:      log,
		formatter:   newBodyFormatter(cfg, log, intl),
		intl:        intl,
		out:         os.Stdout,
	}
}

// SetOutput 替换输出目标
func (p *ConsolePrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	p.out = w
}

// getTerminalWidth gets the current terminal width with fallback
func (p *ConsolePrinter) getTerminalWidth() int {
	if testWidth := os.Getenv("REQPUT_TEST_WIDTH"); testWidth != "" {
		if width, err := strconv.Atoi(testWidth); err == nil {
			return clampWidth(width)
		}
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return clampWidth(width)
}

func clampWidth(width int) int {
	switch {
	case width < 40:
		return 40
	case width > 150:
		return 150
	default:
		return width
	}
}

// PrintResponse prints the summary line, optional headers and the formatted body
func (p *ConsolePrinter) PrintResponse(req *request.Request, resp *request.Response, withHeaders bool) error {
	if resp == nil {
		resp = &request.Response{}
	}
	width := p.getTerminalWidth()
	separator := strings.Repeat("-", width)

	p.colorScheme.Separator.Fprintln(p.out, separator)
	if req != nil {
		p.printRequestLine(req)
	}
	p.printSummary(resp)
	p.colorScheme.Separator.Fprintln(p.out, separator)

	status, headers := ParseHeader(resp.Header)
	if withHeaders {
		p.colorScheme.Muted.Fprintln(p.out, p.intl.T(keyHeadersTitle))
		if status != "" {
			fmt.Fprintln(p.out, status)
		}
		p.printHeaders(headers, width)
		fmt.Fprintln(p.out)
	}

	p.printBody(headers.Get("Content-Type"), resp.Body)
	return nil
}

func (p *ConsolePrinter) printRequestLine(req *request.Request) {
	method := strings.ToUpper(req.Method)
	p.getMethodColor(method).Fprintf(p.out, "#%d %s ", req.ID, method)
	target := req.URL
	if req.BaseURL != nil {
		target = *req.BaseURL + req.URL
	}
	fmt.Fprintln(p.out, target)
}

func (p *ConsolePrinter) printSummary(resp *request.Response) {
	status, ok := resp.Status()
	if !ok {
		status = "-"
	}
	fmt.Fprintf(p.out, "%s: ", p.intl.T(keySummaryStatus))
	p.statusColor(status).Fprint(p.out, status)
	fmt.Fprintf(p.out, " | %s: %d ms", p.intl.T(keySummaryTime), resp.Time)
	fmt.Fprintf(p.out, " | %s: %s\n", p.intl.T(keySummarySize), humanize.Bytes(uint64(len(resp.Body))))
}

func (p *ConsolePrinter) statusColor(status string) *color.Color {
	switch {
	case strings.HasPrefix(status, "2"):
		return p.colorScheme.StatusOK
	case strings.HasPrefix(status, "3"):
		return p.colorScheme.StatusRedirect
	case strings.HasPrefix(status, "4"), strings.HasPrefix(status, "5"):
		return p.colorScheme.StatusError
	default:
		return p.colorScheme.HeaderValue
	}
}

func (p *ConsolePrinter) printHeaders(headers http.Header, width int) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		p.printHeaderLine(key, strings.Join(headers[key], ", "), width)
	}
}

func (p *ConsolePrinter) printHeaderLine(key, value string, width int) {
	prefix := key + ": "
	available := width - runewidth.StringWidth(prefix)
	if available < 20 {
		available = 20
	}

	lines := wrapText(value, available)
	p.colorScheme.HeaderKey.Fprint(p.out, prefix)
	p.colorScheme.HeaderValue.Fprintln(p.out, lines[0])

	indent := strings.Repeat(" ", runewidth.StringWidth(prefix))
	for _, line := range lines[1:] {
		fmt.Fprint(p.out, indent)
		p.colorScheme.HeaderValue.Fprintln(p.out, line)
	}
}

// wrapText wraps text to fit within maxWidth display columns, preserving words
func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || maxWidth <= 0 {
		return []string{text}
	}

	var lines []string
	current := words[0]
	currentWidth := runewidth.StringWidth(current)
	for _, word := range words[1:] {
		w := runewidth.StringWidth(word)
		if currentWidth+1+w > maxWidth {
			lines = append(lines, current)
			current = word
			currentWidth = w
			continue
		}
		current += " " + word
		currentWidth += 1 + w
	}
	return append(lines, current)
}

func (p *ConsolePrinter) printBody(contentType, body string) {
	if body == "" {
		p.colorScheme.Muted.Fprintln(p.out, p.intl.T(keyBodyEmpty))
		return
	}

	formatted := p.formatter.Format(contentType, body)
	for _, line := range strings.Split(formatted.Text, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if trimmed == "" {
			fmt.Fprintln(p.out)
			continue
		}
		p.colorScheme.BodyContent.Fprintln(p.out, trimmed)
	}
	for _, notice := range formatted.Notices {
		p.colorScheme.TruncateNotice.Fprintln(p.out, notice)
	}
}

// PrintFailure prints an execution error, or the store error that kept a
// successful response out of the catalog.
func (p *ConsolePrinter) PrintFailure(req *request.Request, execErr, storeErr error) error {
	var id uint32
	if req != nil {
		id = req.ID
	}
	if execErr != nil {
		p.colorScheme.ErrorText.Fprintln(p.out, p.intl.Tf(keyErrorTitle, id))
		fmt.Fprintln(p.out, execErr.Error())
	}
	if storeErr != nil {
		p.colorScheme.TruncateNotice.Fprintln(p.out, p.intl.Tf(keyErrorStore, storeErr.Error()))
	}
	return nil
}

// PrintEntries prints the visible catalog as a table
func (p *ConsolePrinter) PrintEntries(groupID string, entries []storage.Entry) error {
	if len(entries) == 0 {
		p.colorScheme.Muted.Fprintln(p.out, p.intl.Tf(keyListEmpty, groupID))
		return nil
	}

	width := p.getTerminalWidth()
	methodWidth := runewidth.StringWidth(p.intl.T(keyListMethod))
	for _, e := range entries {
		if w := runewidth.StringWidth(e.Method); w > methodWidth {
			methodWidth = w
		}
	}
	// remaining columns are split between url and title
	rest := width - methodWidth - 4
	urlWidth := rest / 2
	titleWidth := rest - urlWidth

	p.colorScheme.Muted.Fprintf(p.out, "%s  %s  %s\n",
		runewidth.FillRight(p.intl.T(keyListMethod), methodWidth),
		runewidth.FillRight(p.intl.T(keyListURL), urlWidth),
		p.intl.T(keyListTitle),
	)
	for _, e := range entries {
		p.getMethodColor(e.Method).Fprint(p.out, runewidth.FillRight(e.Method, methodWidth))
		fmt.Fprintf(p.out, "  %s  %s\n",
			runewidth.FillRight(runewidth.Truncate(e.URL, urlWidth, "…"), urlWidth),
			runewidth.Truncate(e.DisplayTitle(), titleWidth, "…"),
		)
	}
	return nil
}

// PrintGroups prints every group with its base url
func (p *ConsolePrinter) PrintGroups(groups []request.Group) error {
	idWidth := runewidth.StringWidth(p.intl.T(keyGroupsID))
	nameWidth := runewidth.StringWidth(p.intl.T(keyGroupsName))
	for _, g := range groups {
		idWidth = max(idWidth, runewidth.StringWidth(g.ID))
		nameWidth = max(nameWidth, runewidth.StringWidth(g.Name))
	}

	p.colorScheme.Muted.Fprintf(p.out, "%s  %s  %s\n",
		runewidth.FillRight(p.intl.T(keyGroupsID), idWidth),
		runewidth.FillRight(p.intl.T(keyGroupsName), nameWidth),
		p.intl.T(keyGroupsBaseURL),
	)
	for _, g := range groups {
		base := "-"
		if g.BaseURL != nil {
			base = *g.BaseURL
		}
		p.colorScheme.HeaderKey.Fprint(p.out, runewidth.FillRight(g.ID, idWidth))
		fmt.Fprintf(p.out, "  %s  %s\n", runewidth.FillRight(g.Name, nameWidth), base)
	}
	return nil
}

// PrintStored prints a saved request and its last response body
func (p *ConsolePrinter) PrintStored(rec *storage.Record) error {
	if rec == nil {
		return nil
	}
	entry := storage.Entry{Method: rec.Method, URL: rec.URL, Title: rec.Title}
	p.getMethodColor(rec.Method).Fprint(p.out, rec.Method+" ")
	fmt.Fprintf(p.out, "%s  %s\n", rec.URL, entry.DisplayTitle())

	p.colorScheme.Separator.Fprintln(p.out, p.intl.T(keyStoredRequest))
	fmt.Fprintln(p.out, strings.TrimRight(rec.Request, "\n"))
	p.colorScheme.Separator.Fprintln(p.out, p.intl.T(keyStoredResponse))
	p.printBody("", rec.Response)
	return nil
}

// getMethodColor gets the corresponding color based on HTTP method
func (p *ConsolePrinter) getMethodColor(method string) *color.Color {
	switch strings.ToUpper(method) {
	case "GET":
		return p.colorScheme.MethodGET
	case "POST":
		return p.colorScheme.MethodPOST
	case "PUT":
		return p.colorScheme.MethodPUT
	case "DELETE":
		return p.colorScheme.MethodDELETE
	case "PATCH":
		return p.colorScheme.MethodPATCH
	default:
		return color.New(color.FgWhite, color.Bold)
	}
}
