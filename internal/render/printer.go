package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atinylittleshell/cmdk/internal/daemon"
	"github.com/atinylittleshell/cmdk/internal/detect"
	"github.com/atinylittleshell/cmdk/internal/history"
	"github.com/atinylittleshell/cmdk/internal/ipc"
	"github.com/atinylittleshell/cmdk/internal/procinfo"
	"github.com/atinylittleshell/cmdk/internal/safety"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
)

const (
	DefaultWidth = 100
	// MaxOutputLines is how much of captured text is shown, from the end.
	MaxOutputLines = 20

	labelWidth = 10
)

// Printer writes results either as aligned text or as indented JSON.
type Printer struct {
	w     io.Writer
	json  bool
	width int
	now   func() time.Time
}

type Option func(*Printer)

// WithJSON selects JSON output.
func WithJSON(enabled bool) Option {
	return func(p *Printer) {
		p.json = enabled
	}
}

// WithWidth sets the column at which captured text is cut.
func WithWidth(width int) Option {
	return func(p *Printer) {
		if width > 0 {
			p.width = width
		}
	}
}

func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, width: DefaultWidth, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Printer) encode(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) flush(b *strings.Builder) error {
	_, err := io.WriteString(p.w, b.String())
	return err
}

func field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(fmt.Sprintf("%-*s", labelWidth, label)), value)
}

// block prints the tail of text, one indented line at a time, each cut to
// the printer width.
func (p *Printer) block(b *strings.Builder, label, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")
	if skipped := len(lines) - MaxOutputLines; skipped > 0 {
		lines = lines[skipped:]
		lines = append([]string{fmt.Sprintf("… %d earlier lines", skipped)}, lines...)
	}
	cut := uint(max(p.width-4, 8))
	for i, line := range lines {
		lines[i] = truncate.StringWithTail(line, cut, "…")
	}

	b.WriteString(LabelStyle.Render(label))
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(indent.String(strings.Join(lines, "\n"), 4)))
	b.WriteString("\n")
}

// Context prints the application context returned by context.get.
func (p *Printer) Context(app *detect.AppContext) error {
	if p.json {
		return p.encode(app)
	}
	var b strings.Builder
	p.context(&b, app)
	return p.flush(&b)
}

func (p *Printer) context(b *strings.Builder, app *detect.AppContext) {
	if app == nil {
		fmt.Fprintf(b, "%s %s\n", StyledSymbol(SymbolWarning), "no application context")
		return
	}
	field(b, "app", app.AppName)
	if t := app.Terminal; t != nil {
		field(b, "shell", t.ShellType)
		field(b, "cwd", t.Cwd)
		field(b, "running", t.RunningProcess)
	}
	if app.ConsoleDetected {
		field(b, "console", StyledSymbol(SymbolSuccess)+" "+app.ConsoleLastLine)
	}
	if app.Terminal != nil {
		p.block(b, "output", app.Terminal.VisibleOutput)
	}
	p.block(b, "text", app.VisibleText)
}

// WindowKey prints the key of the captured window.
func (p *Printer) WindowKey(key string) error {
	if p.json {
		return p.encode(ipc.WindowKeyResult{WindowKey: key})
	}
	if key == "" {
		_, err := fmt.Fprintf(p.w, "%s no window captured yet\n", StyledSymbol(SymbolWarning))
		return err
	}
	_, err := fmt.Fprintln(p.w, key)
	return err
}

// Outcome prints what a hotkey trigger did.
func (p *Printer) Outcome(result ipc.TriggerResult) error {
	if p.json {
		return p.encode(result)
	}
	_, err := fmt.Fprintf(p.w, "%s overlay %s\n", StyledSymbol(SymbolArrow), result.Outcome)
	return err
}

// History prints entries oldest first.
func (p *Printer) History(entries []history.HistoryEntry) error {
	if p.json {
		if entries == nil {
			entries = []history.HistoryEntry{}
		}
		return p.encode(entries)
	}

	var b strings.Builder
	if len(entries) == 0 {
		fmt.Fprintf(&b, "%s no history for this window\n", StyledSymbol(SymbolWarning))
		return p.flush(&b)
	}
	for _, e := range entries {
		symbol := SymbolSuccess
		if e.IsError {
			symbol = SymbolError
		}
		when := humanize.RelTime(time.UnixMilli(e.Timestamp), p.now(), "ago", "from now")
		fmt.Fprintf(&b, "%s %s %s\n", StyledSymbol(symbol), e.Query, DimStyle.Render(when))
		if e.Response != "" {
			fmt.Fprintf(&b, "  %s %s\n", StyledSymbol(SymbolArrow), e.Response)
		}
	}
	return p.flush(&b)
}

// Verdict prints the destructive-command check for command.
func (p *Printer) Verdict(command string, v safety.Verdict) error {
	if p.json {
		return p.encode(v)
	}
	var b strings.Builder
	if !v.Destructive {
		fmt.Fprintf(&b, "%s %s\n", StyledSymbol(SymbolSuccess), command)
		return p.flush(&b)
	}
	fmt.Fprintf(&b, "%s %s\n", StyledSymbol(SymbolWarning), WarningStyle.Render(command))
	for _, reason := range v.Reasons {
		fmt.Fprintf(&b, "  %s %s\n", StyledSymbol(SymbolArrow), reason)
	}
	return p.flush(&b)
}

// Permissions prints the accessibility permission state.
func (p *Printer) Permissions(result ipc.PermissionsResult) error {
	if p.json {
		return p.encode(result)
	}
	var b strings.Builder
	if result.Granted {
		fmt.Fprintf(&b, "%s accessibility permission granted\n", StyledSymbol(SymbolSuccess))
	} else {
		fmt.Fprintf(&b, "%s accessibility permission missing\n", StyledSymbol(SymbolError))
		field(&b, "fix", result.Message)
	}
	return p.flush(&b)
}

// Inspection prints a local capture of one application.
func (p *Printer) Inspection(in *daemon.Inspection) error {
	if p.json {
		return p.encode(in)
	}
	var b strings.Builder
	id := in.Capture.Identity
	field(&b, "pid", fmt.Sprint(id.PID))
	field(&b, "bundle", id.BundleID)
	field(&b, "name", id.DisplayName)
	field(&b, "key", in.Capture.WindowKey)
	field(&b, "tab cwd", in.Capture.FocusedCwd)
	shell(&b, in.Shell)
	if !in.PermissionGranted {
		fmt.Fprintf(&b, "%s accessibility permission missing; text capture is disabled\n", StyledSymbol(SymbolError))
	}
	p.block(&b, "captured", in.Capture.PreCapturedText)
	b.WriteString("\n")
	p.context(&b, in.Context)
	return p.flush(&b)
}

func shell(b *strings.Builder, s procinfo.ShellState) {
	if !s.Found() {
		field(b, "shell pid", DimStyle.Render("none"))
		return
	}
	field(b, "shell pid", fmt.Sprint(s.ShellPID))
	field(b, "shell", s.ShellType)
	field(b, "cwd", s.Cwd)
	field(b, "running", s.RunningProcess)
}
